package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcao2/x-seed-notes/internal/config"
	"github.com/mcao2/x-seed-notes/internal/state"
	"github.com/mcao2/x-seed-notes/internal/ui"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

const bookmarksBody = `{"data":{"bookmark_timeline_v2":{"timeline":{"instructions":[{"type":"TimelineAddEntries","entries":[
{"entryId":"tweet-101","content":{"entryType":"TimelineTimelineItem","itemContent":{"itemType":"TimelineTweet","tweet_results":{"result":{
"__typename":"Tweet","rest_id":"101",
"core":{"user_results":{"result":{"legacy":{"name":"Alice","screen_name":"alice"}}}},
"legacy":{"id_str":"101","full_text":"Agency is the rarest skill.","created_at":"Wed Oct 30 12:00:00 +0000 2024","entities":{"urls":[]}}}}}}},
{"entryId":"cursor-bottom-1","content":{"entryType":"TimelineTimelineCursor","value":"abc"}}
]}]}}}}`

const generated = `TITLE: Agency beats permission
CLAIM: Acting first is undervalued.
Q1: What counts as permission?
Q2: Who benefits from waiting?
Q3: Where does agency backfire?
LINKS: Agency, Permission
TAGS: career, agency`

// env isolates the test from the caller's environment and returns a config path
type env struct {
	dir    string
	config string
	inbox  string
	state  string
}

func newEnv(t *testing.T, genURL string, withCookies bool) *env {
	t.Helper()
	for _, k := range []string{"X_AUTH_TOKEN", "X_CT0", "SEEDS_INBOX_PATH", "SEEDS_GENERATION_URL",
		"SEEDS_GENERATION_MODEL", "SEEDS_GENERATION_FORMAT", "SEEDS_FETCH_BATCH_SIZE",
		"SEEDS_VERIFY_CERTIFICATES", "SEEDS_ARTICLE_RENDERER", "SEEDS_STATE_DSN", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	e := &env{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		inbox:  filepath.Join(dir, "Inbox"),
		state:  filepath.Join(dir, "state.json"),
	}

	cfg := fmt.Sprintf(`target_inbox_path: %q
generation_service_url: %q
generation_model_name: "llama3.2"
generation_api_format: "ollama"
fetch_batch_size: 5
verify_certificates: true
article_renderer: "off"
state_dsn: %q
log_level: "error"
`, e.inbox, genURL, e.state)
	if withCookies {
		cfg += "credentials:\n  auth_token: \"tok\"\n  ct0: \"csrf\"\n"
	}
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o600))
	return e
}

func generationServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/generate":
			fmt.Fprintf(w, `{"model":"llama3.2","response":%q,"done":true}`, generated)
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func xServer(t *testing.T, status int, body string, calls *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, opts *RootOptions, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), newRootCommand(opts), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSyncEndToEnd(t *testing.T) {
	gen := generationServer(t)
	calls := 0
	x := xServer(t, http.StatusOK, bookmarksBody, &calls)
	e := newEnv(t, gen.URL, true)
	opts := &RootOptions{xcomOptions: []xcom.ClientOption{xcom.WithBaseURL(x.URL)}}

	code, stdout, stderr := run(t, opts, "--config", e.config)
	require.Equal(t, ExitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Created 1 note(s)")

	entries, err := os.ReadDir(e.inbox)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), " Agency beats permission.md"), entries[0].Name())

	data, err := os.ReadFile(filepath.Join(e.inbox, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "> Agency is the rarest skill.")
	assert.Contains(t, string(data), "- What counts as permission?")

	store := state.Open(state.NewJSONFileBackend(e.state))
	assert.True(t, store.IsProcessed("101"))
	assert.Equal(t, 1, store.TotalNotes())

	// second run finds nothing new
	code, stdout, _ = run(t, opts, "sync", "--config", e.config)
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "Nothing new")
	assert.Equal(t, 2, calls)

	entries, err = os.ReadDir(e.inbox)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSyncFatalErrors(t *testing.T) {
	gen := generationServer(t)

	tests := []struct {
		name     string
		cookies  bool
		status   int
		body     string
		wantHint string
	}{
		{"missing credentials", false, http.StatusOK, bookmarksBody, "X_AUTH_TOKEN"},
		{"expired cookies", true, http.StatusUnauthorized, `{"errors":[{"message":"Could not authenticate you","code":32}]}`, "invalid or expired"},
		{"api changed", true, http.StatusNotFound, `not found`, "bookmarks_query_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := xServer(t, tt.status, tt.body, nil)
			e := newEnv(t, gen.URL, tt.cookies)
			opts := &RootOptions{xcomOptions: []xcom.ClientOption{xcom.WithBaseURL(x.URL)}}

			code, _, stderr := run(t, opts, "--config", e.config)
			assert.Equal(t, ExitFatal, code)
			assert.Contains(t, stderr, tt.wantHint)

			_, err := os.Stat(e.inbox)
			assert.True(t, os.IsNotExist(err), "no notes may be written on a fatal error")
		})
	}
}

func TestUsageErrors(t *testing.T) {
	gen := generationServer(t)
	e := newEnv(t, gen.URL, true)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"unknown command", []string{"frobnicate"}},
		{"batch size out of range", []string{"--config", e.config, "--batch-size", "500"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, &RootOptions{}, tt.args...)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	e := newEnv(t, "http://localhost:1", true)
	require.NoError(t, os.WriteFile(e.config, []byte("generation_api_format: grpc\n"), 0o600))

	code, _, stderr := run(t, &RootOptions{}, "--config", e.config)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "invalid config")
}

func TestDoctor(t *testing.T) {
	gen := generationServer(t)
	e := newEnv(t, gen.URL, true)

	code, stdout, stderr := run(t, &RootOptions{}, "doctor", "--config", e.config)
	require.Equal(t, ExitOK, code, "stdout: %s\nstderr: %s", stdout, stderr)

	for _, want := range []string{"Config", "X.com cookies", "Inbox", "State", "empty", "llama3.2 (ollama)", "disabled"} {
		assert.Contains(t, stdout, want)
	}
	assert.NotContains(t, stdout, ui.MarkFail)
}

func TestDoctorReportsFailures(t *testing.T) {
	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"qwen2.5:7b"}]}`)
	}))
	defer gen.Close()
	e := newEnv(t, gen.URL, false)

	code, stdout, _ := run(t, &RootOptions{}, "doctor", "--config", e.config)
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stdout, ui.MarkFail+" X.com cookies")
	assert.Contains(t, stdout, ui.MarkWarn+" Generation service")
	assert.Contains(t, stdout, `model "llama3.2" not listed`)
}

func TestCheckState(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))

	good := filepath.Join(dir, "good.json")
	store := state.Open(state.NewJSONFileBackend(good))
	require.NoError(t, store.MarkProcessed("1"))

	tests := []struct {
		name string
		dsn  string
		mark string
	}{
		{"missing", filepath.Join(dir, "missing.json"), ui.MarkOK},
		{"populated", good, ui.MarkOK},
		{"corrupt", corrupt, ui.MarkWarn},
		{"bad scheme", "ftp://host/state", ui.MarkFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkState(tt.dsn)
			assert.Equal(t, tt.mark, got.Mark, got.Detail)
		})
	}
}

func TestCheckRenderer(t *testing.T) {
	got := checkRenderer(config.RendererOff)
	assert.Equal(t, ui.MarkOK, got.Mark)
	assert.Equal(t, "disabled", got.Detail)

	got = checkRenderer(config.RendererAuto)
	assert.NotEqual(t, ui.MarkFail, got.Mark, "auto mode never fails the doctor")
}

func TestSetup(t *testing.T) {
	e := newEnv(t, "http://localhost:11434", false)
	opts := &RootOptions{setupForm: func(cfg *config.Config) (*ui.SetupResult, error) {
		return &ui.SetupResult{
			InboxPath:          "~/notes/Inbox",
			GenerationURL:      "http://localhost:8080",
			GenerationModel:    "qwen2.5",
			GenerationFormat:   config.FormatOpenAI,
			BatchSize:          "12",
			VerifyCertificates: true,
			ArticleRenderer:    config.RendererAuto,
			CookieSource:       ui.CookiesManual,
			AuthToken:          "tok",
			CT0:                "csrf",
		}, nil
	}}

	code, stdout, stderr := run(t, opts, "setup", "--config", e.config)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Config saved")

	cfg, err := config.Load(e.config)
	require.NoError(t, err)
	assert.Equal(t, "~/notes/Inbox", cfg.TargetInboxPath)
	assert.Equal(t, config.FormatOpenAI, cfg.GenerationFormat)
	assert.Equal(t, 12, cfg.FetchBatchSize)
	assert.Equal(t, "tok", cfg.Credentials.AuthToken)

	info, err := os.Stat(e.config)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetupDoesNotPersistEnvOverrides(t *testing.T) {
	e := newEnv(t, "http://localhost:11434", false)
	t.Setenv("SEEDS_GENERATION_API_KEY", "secret")
	t.Setenv("SEEDS_STATE_DSN", "memory://")
	t.Setenv("SEEDS_GENERATION_MODEL", "gemma3")

	var seen *config.Config
	opts := &RootOptions{setupForm: func(cfg *config.Config) (*ui.SetupResult, error) {
		seen = cfg
		return &ui.SetupResult{
			InboxPath:          cfg.TargetInboxPath,
			GenerationURL:      cfg.GenerationURL,
			GenerationModel:    cfg.GenerationModel,
			GenerationFormat:   cfg.GenerationFormat,
			BatchSize:          "5",
			VerifyCertificates: true,
			ArticleRenderer:    cfg.ArticleRenderer,
			CookieSource:       ui.CookiesKeep,
		}, nil
	}}

	code, _, stderr := run(t, opts, "setup", "--config", e.config)
	require.Equal(t, ExitOK, code, stderr)
	require.NotNil(t, seen)
	assert.Equal(t, "llama3.2", seen.GenerationModel)

	data, err := os.ReadFile(e.config)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "memory://")
	assert.NotContains(t, string(data), "gemma3")
	assert.Contains(t, string(data), e.state)
}

func TestSetupCancelled(t *testing.T) {
	e := newEnv(t, "http://localhost:11434", false)
	before, err := os.ReadFile(e.config)
	require.NoError(t, err)

	opts := &RootOptions{setupForm: func(*config.Config) (*ui.SetupResult, error) {
		return nil, huh.ErrUserAborted
	}}
	code, stdout, _ := run(t, opts, "setup", "--config", e.config)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "cancelled")

	after, err := os.ReadFile(e.config)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
