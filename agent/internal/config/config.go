package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultBufferSize   = 1000
)

// Source types.
const (
	TypeFile       = "file"
	TypeHTTP       = "http"
	TypeInline     = "inline"
	TypePrometheus = "prometheus"
)

// Config is the agent-side configuration parsed from the `agent:` section of
// config.yaml. The `server:` key in the same file is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of bitdiag-server, e.g. http://localhost:8080.
	ServerEndpoint string `yaml:"server_endpoint"`

	// PollInterval controls how often each source is read and diagnosed.
	PollInterval time.Duration `yaml:"poll_interval"`

	// BufferSize is the maximum number of reports held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// LogLevel is one of: debug | info | warn | error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Sources is the list of diagnostic inputs to poll.
	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to bitdiag-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Source describes one diagnostic input.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is one of: file | http | inline | prometheus.
	Type string `yaml:"type"`

	// Path is the input file for type "file".
	Path string `yaml:"path"`

	// Watch re-reads a "file" source as soon as it changes instead of
	// waiting for the next poll.
	Watch bool `yaml:"watch"`

	// Endpoint is the URL for types "http" and "prometheus".
	Endpoint string `yaml:"endpoint"`

	// Data is the literal record text for type "inline".
	Data string `yaml:"data"`

	// Auth configures how the agent authenticates to an HTTP source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header the API key is sent in. Defaults to x-api-key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token, used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Level maps LogLevel to a slog.Level. Unknown values fall back to info.
func (a AgentConfig) Level() slog.Level {
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			PollInterval: DefaultPollInterval,
			BufferSize:   DefaultBufferSize,
			LogLevel:     "info",
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Agent.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if cfg.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if cfg.Agent.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if err := validateAuthMode("agent.server_auth", cfg.Agent.ServerAuth.Mode); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Agent.Sources))
	for i, src := range cfg.Agent.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Type {
		case TypeFile:
			if src.Path == "" {
				return fmt.Errorf("sources[%d] %q: path is required for type file", i, src.ID)
			}
		case TypeHTTP, TypePrometheus:
			if src.Endpoint == "" {
				return fmt.Errorf("sources[%d] %q: endpoint is required for type %s", i, src.ID, src.Type)
			}
		case TypeInline:
			if strings.TrimSpace(src.Data) == "" {
				return fmt.Errorf("sources[%d] %q: data is required for type inline", i, src.ID)
			}
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		if src.Watch && src.Type != TypeFile {
			return fmt.Errorf("sources[%d] %q: watch is only supported for type file", i, src.ID)
		}
		if err := validateAuthMode(fmt.Sprintf("sources[%d] %q", i, src.ID), src.Auth.Mode); err != nil {
			return err
		}
	}
	return nil
}

func validateAuthMode(field, mode string) error {
	switch mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
		return nil
	}
	return fmt.Errorf("%s: unknown auth mode %q", field, mode)
}
