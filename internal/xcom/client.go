// Package xcom reads a user's bookmarks from X.com using the web client's
// GraphQL endpoint and the browser session cookies.
package xcom

import (
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mcao2/x-seed-notes/internal/logger"
)

const (
	defaultBaseURL = "https://x.com"
	// DefaultBookmarksQueryID is the GraphQL operation id of the web client's
	// Bookmarks query. X rotates these; override with WithQueryID.
	DefaultBookmarksQueryID = "QUjXply7fA7fk05FRyajEg"
	// public bearer token embedded in the x.com web client
	webBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"
	defaultTimeout = 30 * time.Second
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Credentials are the X.com session cookies
type Credentials struct {
	AuthToken string // auth_token cookie
	CSRFToken string // ct0 cookie
}

// CookieHeader renders the credentials as a Cookie header value
func (c Credentials) CookieHeader() string {
	return "auth_token=" + c.AuthToken + "; ct0=" + c.CSRFToken
}

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches bookmarks for one authenticated session
type Client struct {
	creds      Credentials
	baseURL    string
	queryID    string
	insecure   bool
	httpClient HTTPClient
	renderer   ArticleRenderer
	log        *logger.Logger
}

// ClientOption allows configuring the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithQueryID overrides the Bookmarks GraphQL operation id
func WithQueryID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.queryID = id
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Only for
// users behind an intercepting proxy; ignored when WithHTTPClient is used.
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		c.insecure = skip
	}
}

// WithRenderer sets the renderer used to expand link-only article posts
func WithRenderer(r ArticleRenderer) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithLogger sets the client logger
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a bookmarks client. Both cookies are required.
func NewClient(creds Credentials, opts ...ClientOption) (*Client, error) {
	if creds.AuthToken == "" || creds.CSRFToken == "" {
		return nil, errors.New("both auth_token and ct0 cookies are required")
	}

	client := &Client{
		creds:    creds,
		baseURL:  defaultBaseURL,
		queryID:  DefaultBookmarksQueryID,
		renderer: UnavailableRenderer{},
		log:      logger.Named("xcom"),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = newHTTPClient(client.insecure)
	}

	return client, nil
}

func newHTTPClient(insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user opted out of verification
	}
	return &http.Client{Timeout: defaultTimeout, Transport: transport}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+webBearerToken)
	req.Header.Set("X-Csrf-Token", c.creds.CSRFToken)
	req.Header.Set("Cookie", c.creds.CookieHeader())
	req.Header.Set("X-Twitter-Auth-Type", "OAuth2Session")
	req.Header.Set("X-Twitter-Active-User", "yes")
	req.Header.Set("X-Twitter-Client-Language", "en")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}
