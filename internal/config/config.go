package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Source     SourceConfig         `yaml:"source"`
	Staging    StagingConfig        `yaml:"staging,omitempty"`
	Output     OutputConfig         `yaml:"output"`
	Tokens     map[string]string    `yaml:"tokens"`
	Types      map[string][]string  `yaml:"types"`
	Formats    []string             `yaml:"formats,omitempty"`
	Templates  TemplatesConfig      `yaml:"templates"`
	Converters ConvertersConfig     `yaml:"converters,omitempty"`
	Server     ServerConfig         `yaml:"server,omitempty"`
	History    *HistoryConfig       `yaml:"history,omitempty"`
	Notify     *NotifyConfig        `yaml:"notifications,omitempty"`
	Metrics    MetricsConfig        `yaml:"metrics,omitempty"`
}

// SourceConfig locates the documentation source tree. Either a local root
// directory or a git repository to clone into the workspace.
type SourceConfig struct {
	Root string           `yaml:"root,omitempty"`
	Git  *GitSourceConfig `yaml:"git,omitempty"`
}

// GitSourceConfig describes a git-hosted documentation source.
type GitSourceConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch,omitempty"`
}

// StagingConfig controls the staging area. An empty directory means an
// ephemeral workspace is created per run and removed afterwards.
type StagingConfig struct {
	Directory string `yaml:"directory,omitempty"`
}

// OutputConfig controls the conversion output root.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"`
}

// TemplatesConfig locates the per-type pandoc templates (<type>.html,
// <type>.epub).
type TemplatesConfig struct {
	Directory string `yaml:"directory"`
}

// ConvertersConfig names the external converter binaries and fixed
// rendering options.
type ConvertersConfig struct {
	Pandoc       string `yaml:"pandoc,omitempty"`
	EbookConvert string `yaml:"ebook_convert,omitempty"`
	WKHTMLToPDF  string `yaml:"wkhtmltopdf,omitempty"`
	FooterFont   string `yaml:"footer_font,omitempty"`
}

// ServerConfig controls the ephemeral HTTP server used for PDF rendering.
// ReadyTimeout is a Go duration string (e.g. "15s").
type ServerConfig struct {
	Port         int    `yaml:"port,omitempty"`
	App          string `yaml:"app,omitempty"`
	ReadyTimeout string `yaml:"ready_timeout,omitempty"`
}

// ReadyTimeoutDuration returns the parsed readiness timeout, falling back
// to the default when unset or unparseable (validation reports the latter).
func (s ServerConfig) ReadyTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ReadyTimeout)
	if err != nil || d <= 0 {
		return DefaultReadyTimeout
	}
	return d
}

// HistoryConfig enables the SQLite build-history store.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig enables publishing build reports to NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig enables the Prometheus /metrics endpoint on the ephemeral
// server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RequiredTokens are the substitution tokens every configuration must
// provide values for.
var RequiredTokens = []string{"documentVersion", "projectVersion"}

// Load loads configuration from the specified file. Environment variables
// referenced in the YAML content are expanded, and a .env file in the
// working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment variables from .env")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
