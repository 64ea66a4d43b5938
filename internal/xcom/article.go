package xcom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Renderer modes accepted by NewRenderer
const (
	RendererAuto   = "auto"
	RendererChrome = "chrome"
	RendererOff    = "off"
)

const (
	navigateTimeout = 60 * time.Second
	selectorTimeout = 10 * time.Second
)

// ErrRendererUnavailable is returned when no headless browser is configured
var ErrRendererUnavailable = errors.New("article renderer unavailable")

// ArticleRenderer loads an X article page with the session cookies and
// returns its visible text
type ArticleRenderer interface {
	Render(ctx context.Context, articleURL string, creds Credentials) (string, error)
}

// UnavailableRenderer never renders; link-only posts keep their link
type UnavailableRenderer struct{}

// Render always fails with ErrRendererUnavailable
func (UnavailableRenderer) Render(context.Context, string, Credentials) (string, error) {
	return "", ErrRendererUnavailable
}

// articleSelectors are tried in order; the first one with matches wins
var articleSelectors = []string{
	`[data-testid="tweetText"]`,
	`[data-testid="article"]`,
	`article [data-testid="tweetText"]`,
}

func extractScript() string {
	quoted := make([]string, len(articleSelectors))
	for i, s := range articleSelectors {
		quoted[i] = "'" + s + "'"
	}
	return `(() => {
	const selectors = [` + strings.Join(quoted, ", ") + `];
	for (const selector of selectors) {
		const elements = document.querySelectorAll(selector);
		if (elements.length > 0) {
			return Array.from(elements).map(el => el.innerText).join('\n\n');
		}
	}
	return '';
})()`
}

// ChromeRenderer renders articles in headless Chrome via the DevTools protocol
type ChromeRenderer struct {
	ExecPath string // empty lets chromedp search the usual locations
	Insecure bool   // ignore certificate errors, mirrors verify_certificates=false
}

// Render opens a fresh browser, sets the session cookies on .x.com, navigates
// to the article and extracts its text
func (r *ChromeRenderer) Render(ctx context.Context, articleURL string, creds Credentials) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}
	if r.Insecure {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// start the browser on the long-lived context so timeouts below only
	// bound individual steps
	if err := chromedp.Run(browserCtx); err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}

	cookies := []*network.CookieParam{
		{Name: "auth_token", Value: creds.AuthToken, Domain: ".x.com", Path: "/"},
		{Name: "ct0", Value: creds.CSRFToken, Domain: ".x.com", Path: "/"},
	}

	navCtx, cancelNav := context.WithTimeout(browserCtx, navigateTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx,
		network.SetCookies(cookies),
		chromedp.Navigate(articleURL),
	); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(browserCtx, selectorTimeout)
	defer cancelWait()
	// a missing text node is not fatal; the fallback selectors may still match
	_ = chromedp.Run(waitCtx, chromedp.WaitVisible(articleSelectors[0], chromedp.ByQuery))

	var text string
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(extractScript(), &text)); err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

// chromeCandidates are executable names and paths probed in auto mode
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// FindChrome returns the first Chrome-like executable found, or ""
func FindChrome() string {
	for _, c := range chromeCandidates {
		if strings.HasPrefix(c, "/") {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c
			}
			continue
		}
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}

// NewRenderer selects the article renderer at start-up. "auto" uses Chrome
// when an executable is found, "chrome" forces it and "off" disables
// article expansion.
func NewRenderer(mode string, insecure bool) (ArticleRenderer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", RendererAuto:
		if path := FindChrome(); path != "" {
			return &ChromeRenderer{ExecPath: path, Insecure: insecure}, nil
		}
		return UnavailableRenderer{}, nil
	case RendererChrome:
		return &ChromeRenderer{ExecPath: FindChrome(), Insecure: insecure}, nil
	case RendererOff:
		return UnavailableRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown article renderer %q", mode)
	}
}

// expandArticle replaces a link-only post's text with the rendered article
// when that works; any failure keeps the original text
func (c *Client) expandArticle(ctx context.Context, post *Post, articleURL string) {
	log := c.log.With().Str("post_id", post.ID).Str("article", articleURL).Logger()

	text, err := c.renderer.Render(ctx, articleURL, c.creds)
	switch {
	case errors.Is(err, ErrRendererUnavailable):
		log.Debug().Msg("article renderer unavailable; keeping link text")
		return
	case err != nil:
		log.Warn().Err(err).Msg("article render failed; keeping link text")
		return
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= minArticleLength {
		log.Warn().Int("chars", utf8.RuneCountInString(text)).Msg("rendered article too short; keeping link text")
		return
	}

	log.Info().Int("chars", utf8.RuneCountInString(text)).Msg("article expanded")
	post.Text = text
}
