package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SEEDS_INBOX_PATH", "SEEDS_GENERATION_URL", "SEEDS_GENERATION_MODEL",
		"SEEDS_GENERATION_FORMAT", "SEEDS_GENERATION_API_KEY", "SEEDS_FETCH_BATCH_SIZE",
		"SEEDS_VERIFY_CERTIFICATES", "SEEDS_ARTICLE_RENDERER", "SEEDS_STATE_DSN",
		"SEEDS_BOOKMARKS_QUERY_ID", "LOG_LEVEL", "LOG_FORMAT", "X_AUTH_TOKEN", "X_CT0",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GenerationURL != "http://localhost:11434" {
		t.Errorf("expected default generation url, got %q", cfg.GenerationURL)
	}
	if cfg.GenerationModel != "llama3.2" {
		t.Errorf("expected default model, got %q", cfg.GenerationModel)
	}
	if cfg.FetchBatchSize != 5 {
		t.Errorf("expected batch size 5, got %d", cfg.FetchBatchSize)
	}
	if !cfg.VerifyCertificates {
		t.Error("expected certificate verification on by default")
	}
	if cfg.GenerationFormat != FormatOllama {
		t.Errorf("expected ollama format, got %q", cfg.GenerationFormat)
	}
	if cfg.GenerationTimeout != 300*time.Second {
		t.Errorf("expected 300s timeout, got %v", cfg.GenerationTimeout)
	}
	if got := cfg.StateLocation(); got != filepath.Join(filepath.Dir(path), "state.json") {
		t.Errorf("unexpected state location %q", got)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `target_inbox_path: /vault/Inbox
generation_service_url: http://gpu-box:11434/
generation_model_name: qwen2.5
fetch_batch_size: 20
verify_certificates: false
generation_timeout: 90s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SEEDS_GENERATION_MODEL", "gemma3")
	t.Setenv("SEEDS_FETCH_BATCH_SIZE", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TargetInboxPath != "/vault/Inbox" {
		t.Errorf("inbox = %q", cfg.TargetInboxPath)
	}
	if cfg.GenerationURL != "http://gpu-box:11434" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.GenerationURL)
	}
	if cfg.GenerationModel != "gemma3" {
		t.Errorf("env should override model, got %q", cfg.GenerationModel)
	}
	if cfg.FetchBatchSize != 20 {
		t.Errorf("invalid env int should be ignored, got %d", cfg.FetchBatchSize)
	}
	if cfg.VerifyCertificates {
		t.Error("expected verify_certificates false from file")
	}
	if cfg.GenerationTimeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.GenerationTimeout)
	}
}

func TestLoadFileIgnoresEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("generation_model_name: qwen2.5\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SEEDS_GENERATION_MODEL", "gemma3")
	t.Setenv("SEEDS_GENERATION_API_KEY", "secret")
	t.Setenv("SEEDS_STATE_DSN", "memory://")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.GenerationModel != "qwen2.5" {
		t.Errorf("model = %q, want file value", cfg.GenerationModel)
	}
	if cfg.GenerationAPIKey != "" || cfg.StateDSN != "" {
		t.Errorf("env leaked into file config: key=%q dsn=%q", cfg.GenerationAPIKey, cfg.StateDSN)
	}
	if cfg.Path() != path {
		t.Errorf("path = %q", cfg.Path())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"batch too large", "fetch_batch_size: 1000\n", "FetchBatchSize"},
		{"negative batch", "fetch_batch_size: -1\n", "FetchBatchSize"},
		{"unknown format", "generation_api_format: grpc\n", "GenerationFormat"},
		{"unknown renderer", "article_renderer: firefox\n", "ArticleRenderer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.GenerationModel = "mistral"
	cfg.Credentials.AuthToken = "tok"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 perms, got %v", info.Mode().Perm())
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.GenerationModel != "mistral" {
		t.Errorf("model = %q", reloaded.GenerationModel)
	}
	if reloaded.Credentials.AuthToken != "tok" {
		t.Errorf("auth token not persisted")
	}
}

func TestSaveExampleConfigDoesNotOverwrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveExampleConfig(path); err != nil {
		t.Fatalf("SaveExampleConfig failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("example config should load: %v", err)
	}

	if err := os.WriteFile(path, []byte("fetch_batch_size: 9\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := SaveExampleConfig(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "fetch_batch_size: 9\n" {
		t.Errorf("existing config was overwritten: %q", data)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/notes"); got != filepath.Join(home, "notes") {
		t.Errorf("ExpandPath(~/notes) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}
