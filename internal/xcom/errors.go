package xcom

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies fetch failures for the caller's remediation hint
type ErrorKind int

const (
	// KindRemote covers transport, status and decode failures
	KindRemote ErrorKind = iota
	// KindAuth means X rejected the session cookies
	KindAuth
	// KindTLS means certificate verification failed
	KindTLS
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTLS:
		return "tls"
	default:
		return "remote"
	}
}

// FetchError is returned by FetchBookmarks for every failure
type FetchError struct {
	Kind   ErrorKind
	Status int // HTTP status, 0 when the request never got a response
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindTLS:
		return fmt.Sprintf("TLS certificate error: %v", e.Err)
	case KindAuth:
		return fmt.Sprintf("X.com rejected the session: %v", e.Err)
	default:
		return fmt.Sprintf("failed to fetch bookmarks: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Hint returns what the user should do about the failure
func (e *FetchError) Hint() string {
	switch e.Kind {
	case KindTLS:
		return "Behind a proxy or VPN that intercepts TLS? Set verify_certificates: false in the config or pass --insecure."
	case KindAuth:
		return "The X.com cookies are invalid or expired. Log in to x.com again and refresh auth_token and ct0 (x-seed-notes setup)."
	default:
		return "The session cookies may have expired, or X changed its API (try updating bookmarks_query_id)."
	}
}

// IsKind reports whether err is a FetchError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// classifyTransportError wraps an error returned by HTTPClient.Do
func classifyTransportError(err error) *FetchError {
	if isTLSError(err) {
		return &FetchError{Kind: KindTLS, Err: err}
	}
	return &FetchError{Kind: KindRemote, Err: err}
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr),
		errors.As(err, &recordErr):
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls:")
}

// graphQLError is one entry of the GraphQL "errors" array
type graphQLError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// X's legacy API codes for bad or expired sessions
var authErrorCodes = map[int]bool{
	32:  true, // could not authenticate you
	89:  true, // invalid or expired token
	215: true, // bad authentication data
	239: true, // bad guest token
	353: true, // csrf mismatch
}

func classifyGraphQLErrors(errs []graphQLError) *FetchError {
	msgs := make([]string, 0, len(errs))
	kind := KindRemote
	for _, e := range errs {
		msgs = append(msgs, e.Message)
		lower := strings.ToLower(e.Message)
		if authErrorCodes[e.Code] || strings.Contains(lower, "authenticat") || strings.Contains(lower, "authoriz") {
			kind = KindAuth
		}
	}
	return &FetchError{Kind: kind, Err: fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))}
}
