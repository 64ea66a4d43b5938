package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Cookie names X.com uses for the web session
const (
	CookieAuthToken = "auth_token"
	CookieCT0       = "ct0"
)

// ErrNoCredentials is returned when neither the environment, a .env file nor
// the config file supplies both session cookies
var ErrNoCredentials = errors.New("X.com session cookies not found")

// CredentialsHint tells the user how to supply cookies
const CredentialsHint = `Supply both X.com cookies in one of these ways:
  1. Run "x-seed-notes setup" and import them from the clipboard
  2. Put X_AUTH_TOKEN=... and X_CT0=... in a .env file or the environment
  3. Set credentials.auth_token and credentials.ct0 in the config file
  (log in to x.com, then copy them from DevTools > Application > Cookies)`

// Credentials are the two session cookies needed to read bookmarks
type Credentials struct {
	AuthToken string
	CT0       string
}

// Complete reports whether both cookies are present
func (c Credentials) Complete() bool {
	return c.AuthToken != "" && c.CT0 != ""
}

// LoadCredentials resolves session cookies. Environment variables win, after
// .env files in the working directory and the config directory are loaded
// without overriding anything already set; the config file comes last.
func LoadCredentials(cfg *Config) (Credentials, error) {
	loadDotEnv(".env", filepath.Join(cfg.Dir(), ".env"))

	creds := Credentials{
		AuthToken: strings.TrimSpace(os.Getenv("X_AUTH_TOKEN")),
		CT0:       strings.TrimSpace(os.Getenv("X_CT0")),
	}
	if creds.AuthToken == "" {
		creds.AuthToken = cfg.Credentials.AuthToken
	}
	if creds.CT0 == "" {
		creds.CT0 = cfg.Credentials.CT0
	}

	if !creds.Complete() {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// ParseCookieHeader extracts auth_token and ct0 from a browser Cookie header
// ("a=1; b=2"), from name=value lines, or from a pasted .env snippet using the
// X_AUTH_TOKEN / X_CT0 names
func ParseCookieHeader(raw string) Credentials {
	var creds Credentials
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "Cookie:")
	raw = strings.TrimPrefix(raw, "cookie:")

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})
	for _, f := range fields {
		name, value, ok := strings.Cut(strings.TrimSpace(f), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch name {
		case CookieAuthToken, "X_AUTH_TOKEN":
			creds.AuthToken = value
		case CookieCT0, "X_CT0":
			creds.CT0 = value
		}
	}
	return creds
}
