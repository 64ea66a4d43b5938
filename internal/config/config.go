package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Generation API formats
const (
	FormatOllama = "ollama"
	FormatOpenAI = "openai"
)

// Article renderer modes
const (
	RendererAuto   = "auto"
	RendererChrome = "chrome"
	RendererOff    = "off"
)

const (
	defaultInboxPath     = "~/Library/Mobile Documents/iCloud~md~obsidian/Documents/Inbox"
	defaultGenerationURL = "http://localhost:11434"
	defaultModel         = "llama3.2"
	defaultBatchSize     = 5
	maxBatchSize         = 100
	defaultGenTimeout    = 300 * time.Second
)

// CredentialsConfig holds manually supplied X.com session cookies
type CredentialsConfig struct {
	AuthToken string `yaml:"auth_token,omitempty"`
	CT0       string `yaml:"ct0,omitempty"`
}

// Config holds application configuration
type Config struct {
	TargetInboxPath    string            `yaml:"target_inbox_path"`
	GenerationURL      string            `yaml:"generation_service_url"`
	GenerationModel    string            `yaml:"generation_model_name"`
	GenerationFormat   string            `yaml:"generation_api_format"`
	GenerationAPIKey   string            `yaml:"generation_api_key,omitempty"`
	GenerationTimeout  time.Duration     `yaml:"generation_timeout,omitempty"`
	FetchBatchSize     int               `yaml:"fetch_batch_size"`
	VerifyCertificates bool              `yaml:"verify_certificates"`
	ArticleRenderer    string            `yaml:"article_renderer"`
	StateDSN           string            `yaml:"state_dsn,omitempty"`
	BookmarksQueryID   string            `yaml:"bookmarks_query_id,omitempty"`
	LogLevel           string            `yaml:"log_level,omitempty"`
	LogFormat          string            `yaml:"log_format,omitempty"`
	Credentials        CredentialsConfig `yaml:"credentials,omitempty"`

	path string
}

// Default returns a Config populated with the documented defaults
func Default() *Config {
	return &Config{
		TargetInboxPath:    defaultInboxPath,
		GenerationURL:      defaultGenerationURL,
		GenerationModel:    defaultModel,
		GenerationFormat:   FormatOllama,
		GenerationTimeout:  defaultGenTimeout,
		FetchBatchSize:     defaultBatchSize,
		VerifyCertificates: true,
		ArticleRenderer:    RendererAuto,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// Load loads configuration from the config file and environment variables.
// Environment variables take precedence over config file values. An empty
// path means the default location; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	if cfg.path == "" {
		cfg.path = getConfigPath()
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.loadFromEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads only the config file and defaults, without environment
// overrides, so the result can be edited and saved back
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	if cfg.path == "" {
		cfg.path = getConfigPath()
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// Path returns the file this config was loaded from (or will be saved to)
func (c *Config) Path() string {
	if c.path == "" {
		return getConfigPath()
	}
	return c.path
}

// Dir returns the directory holding the config file
func (c *Config) Dir() string {
	return filepath.Dir(c.Path())
}

// InboxDir returns the inbox path with ~ expanded
func (c *Config) InboxDir() string {
	return ExpandPath(c.TargetInboxPath)
}

// StateLocation returns the configured state DSN, defaulting to state.json
// next to the config file
func (c *Config) StateLocation() string {
	if c.StateDSN != "" {
		return ExpandPath(c.StateDSN)
	}
	return filepath.Join(c.Dir(), "state.json")
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TargetInboxPath, validation.Required),
		validation.Field(&c.GenerationURL, validation.Required),
		validation.Field(&c.GenerationModel, validation.Required),
		validation.Field(&c.GenerationFormat, validation.Required, validation.In(FormatOllama, FormatOpenAI)),
		validation.Field(&c.FetchBatchSize, validation.Required, validation.Min(1), validation.Max(maxBatchSize)),
		validation.Field(&c.ArticleRenderer, validation.In(RendererAuto, RendererChrome, RendererOff)),
		validation.Field(&c.GenerationTimeout, validation.Min(time.Second)),
	)
}

func (c *Config) loadFromFile() error {
	if c.path == "" {
		return os.ErrNotExist
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SEEDS_INBOX_PATH"); v != "" {
		c.TargetInboxPath = v
	}
	if v := os.Getenv("SEEDS_GENERATION_URL"); v != "" {
		c.GenerationURL = v
	}
	if v := os.Getenv("SEEDS_GENERATION_MODEL"); v != "" {
		c.GenerationModel = v
	}
	if v := os.Getenv("SEEDS_GENERATION_FORMAT"); v != "" {
		c.GenerationFormat = v
	}
	if v := os.Getenv("SEEDS_GENERATION_API_KEY"); v != "" {
		c.GenerationAPIKey = v
	}
	if v := os.Getenv("SEEDS_FETCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FetchBatchSize = n
		}
	}
	if v := os.Getenv("SEEDS_VERIFY_CERTIFICATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.VerifyCertificates = b
		}
	}
	if v := os.Getenv("SEEDS_ARTICLE_RENDERER"); v != "" {
		c.ArticleRenderer = v
	}
	if v := os.Getenv("SEEDS_STATE_DSN"); v != "" {
		c.StateDSN = v
	}
	if v := os.Getenv("SEEDS_BOOKMARKS_QUERY_ID"); v != "" {
		c.BookmarksQueryID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

func (c *Config) normalize() {
	c.GenerationFormat = strings.ToLower(strings.TrimSpace(c.GenerationFormat))
	c.ArticleRenderer = strings.ToLower(strings.TrimSpace(c.ArticleRenderer))
	if c.ArticleRenderer == "" {
		c.ArticleRenderer = RendererAuto
	}
	if c.GenerationTimeout == 0 {
		c.GenerationTimeout = defaultGenTimeout
	}
	c.GenerationURL = strings.TrimRight(strings.TrimSpace(c.GenerationURL), "/")
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// getConfigPath returns the path to the config file
// Priority: $X_SEED_NOTES_CONFIG > ~/.config/x-seed-notes/config.yaml
func getConfigPath() string {
	if configPath := os.Getenv("X_SEED_NOTES_CONFIG"); configPath != "" {
		return configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "x-seed-notes", "config.yaml")
}

// EnsureDir ensures the config directory exists
func (c *Config) EnsureDir() (string, error) {
	if c.Path() == "" {
		return "", fmt.Errorf("cannot determine config path")
	}
	dir := c.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// SaveExampleConfig writes a commented example config to path unless a file
// already exists there
func SaveExampleConfig(path string) error {
	if path == "" {
		path = getConfigPath()
	}
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	example := `# x-seed-notes configuration

# Obsidian inbox folder that receives one note per new bookmark
target_inbox_path: "` + defaultInboxPath + `"

# Local generation service (ollama by default; "openai" for any OpenAI-compatible server)
generation_service_url: "` + defaultGenerationURL + `"
generation_model_name: "` + defaultModel + `"
generation_api_format: "ollama"
# generation_api_key: ""

# Number of bookmarks requested per run
fetch_batch_size: 5

# Set to false behind an intercepting proxy/VPN that re-signs TLS
verify_certificates: true

# Headless Chrome expansion of X articles: auto, chrome, off
article_renderer: "auto"

# Optional: manual cookies (X_AUTH_TOKEN / X_CT0 env vars or a .env file also work)
# credentials:
#   auth_token: ""
#   ct0: ""
`

	return os.WriteFile(path, []byte(example), 0600)
}

// Save writes the configuration back to its file
func (c *Config) Save() error {
	if _, err := c.EnsureDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# x-seed-notes configuration\n# Note: cookies can also be supplied via X_AUTH_TOKEN / X_CT0 or a .env file\n\n")
	return os.WriteFile(c.Path(), append(header, data...), 0600)
}
