package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/huh"

	"github.com/mcao2/x-seed-notes/internal/config"
)

// Cookie sources offered by the setup form
const (
	CookiesKeep      = "keep"
	CookiesClipboard = "clipboard"
	CookiesManual    = "manual"
)

// readClipboard is swapped out in tests
var readClipboard = clipboard.ReadAll

// SetupForm collects the config values with a Huh form
type SetupForm struct {
	form   *huh.Form
	result *SetupResult
}

// SetupResult contains the entered values as typed
type SetupResult struct {
	InboxPath          string
	GenerationURL      string
	GenerationModel    string
	GenerationFormat   string
	BatchSize          string
	VerifyCertificates bool
	ArticleRenderer    string
	CookieSource       string
	AuthToken          string
	CT0                string
}

// NewSetupForm creates the setup form prefilled from cfg
func NewSetupForm(cfg *config.Config) *SetupForm {
	result := &SetupResult{
		InboxPath:          cfg.TargetInboxPath,
		GenerationURL:      cfg.GenerationURL,
		GenerationModel:    cfg.GenerationModel,
		GenerationFormat:   cfg.GenerationFormat,
		BatchSize:          strconv.Itoa(cfg.FetchBatchSize),
		VerifyCertificates: cfg.VerifyCertificates,
		ArticleRenderer:    cfg.ArticleRenderer,
		CookieSource:       CookiesClipboard,
	}
	if cfg.Credentials.AuthToken != "" && cfg.Credentials.CT0 != "" {
		result.CookieSource = CookiesKeep
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Obsidian inbox folder").
				Value(&result.InboxPath).
				Validate(required("inbox folder")),

			huh.NewInput().
				Title("Bookmarks per run").
				Value(&result.BatchSize).
				Validate(validateBatchSize),
		).Title("🌱 Notes"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Generation API").
				Options(
					huh.NewOption("Ollama", config.FormatOllama),
					huh.NewOption("OpenAI-compatible", config.FormatOpenAI),
				).
				Value(&result.GenerationFormat),

			huh.NewInput().
				Title("Service URL").
				Value(&result.GenerationURL).
				Validate(required("service URL")),

			huh.NewInput().
				Title("Model").
				Value(&result.GenerationModel).
				Validate(required("model")),
		).Title("Local model"),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Verify TLS certificates?").
				Description("Say no only behind a proxy that re-signs TLS").
				Value(&result.VerifyCertificates),

			huh.NewSelect[string]().
				Title("Expand X articles with headless Chrome").
				Options(
					huh.NewOption("When Chrome is installed", config.RendererAuto),
					huh.NewOption("Always (fail if missing)", config.RendererChrome),
					huh.NewOption("Never", config.RendererOff),
				).
				Value(&result.ArticleRenderer),
		).Title("Network"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("X.com session cookies").
				Description("Copy the Cookie header of an x.com request from DevTools").
				Options(cookieOptions(result.CookieSource == CookiesKeep)...).
				Value(&result.CookieSource),
		).Title("Credentials"),

		huh.NewGroup(
			huh.NewInput().
				Title("auth_token").
				EchoMode(huh.EchoModePassword).
				Value(&result.AuthToken),

			huh.NewInput().
				Title("ct0").
				EchoMode(huh.EchoModePassword).
				Value(&result.CT0),
		).WithHideFunc(func() bool { return result.CookieSource != CookiesManual }),
	)

	return &SetupForm{
		form:   form,
		result: result,
	}
}

func cookieOptions(haveStored bool) []huh.Option[string] {
	var opts []huh.Option[string]
	if haveStored {
		opts = append(opts, huh.NewOption("Keep stored cookies", CookiesKeep))
	}
	return append(opts,
		huh.NewOption("Import from clipboard 📋", CookiesClipboard),
		huh.NewOption("Enter manually", CookiesManual),
	)
}

// Run executes the form and returns the result
func (sf *SetupForm) Run() (*SetupResult, error) {
	if err := sf.form.Run(); err != nil {
		return nil, err
	}
	return sf.result, nil
}

// GetForm returns the underlying Huh form for Bubble Tea integration
func (sf *SetupForm) GetForm() *huh.Form {
	return sf.form
}

// ApplyTo copies the result into cfg, importing cookies from the clipboard
// when requested, and validates the outcome
func (r *SetupResult) ApplyTo(cfg *config.Config) error {
	n, err := strconv.Atoi(strings.TrimSpace(r.BatchSize))
	if err != nil {
		return fmt.Errorf("bookmarks per run: %w", err)
	}

	cfg.TargetInboxPath = strings.TrimSpace(r.InboxPath)
	cfg.GenerationURL = strings.TrimRight(strings.TrimSpace(r.GenerationURL), "/")
	cfg.GenerationModel = strings.TrimSpace(r.GenerationModel)
	cfg.GenerationFormat = r.GenerationFormat
	cfg.FetchBatchSize = n
	cfg.VerifyCertificates = r.VerifyCertificates
	cfg.ArticleRenderer = r.ArticleRenderer

	switch r.CookieSource {
	case CookiesClipboard:
		raw, err := readClipboard()
		if err != nil {
			return fmt.Errorf("failed to read clipboard: %w", err)
		}
		creds := config.ParseCookieHeader(raw)
		if !creds.Complete() {
			return errors.New("clipboard does not contain both auth_token and ct0")
		}
		cfg.Credentials = config.CredentialsConfig{AuthToken: creds.AuthToken, CT0: creds.CT0}
	case CookiesManual:
		auth, ct0 := strings.TrimSpace(r.AuthToken), strings.TrimSpace(r.CT0)
		if auth == "" || ct0 == "" {
			return errors.New("both auth_token and ct0 are required")
		}
		cfg.Credentials = config.CredentialsConfig{AuthToken: auth, CT0: ct0}
	}

	return cfg.Validate()
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateBatchSize(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 100 {
		return errors.New("enter a number between 1 and 100")
	}
	return nil
}
