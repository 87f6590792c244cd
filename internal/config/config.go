package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete taskbridge configuration
type Config struct {
	Cloud   CloudConfig   `mapstructure:"cloud" yaml:"cloud"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CloudConfig controls how the cloud task backend is reached
type CloudConfig struct {
	// BaseURL is the backend root. chatgpt.com hosts get /backend-api appended.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// UserAgent is sent on every request (default: "taskbridge")
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// Mock serves canned tasks instead of calling the network
	Mock bool `mapstructure:"mock" yaml:"mock"`
	// TimeoutSeconds bounds each HTTP request (0 = no timeout)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// ParallelQueries bounds concurrent per-repository environment queries (default: 4)
	ParallelQueries int `mapstructure:"parallel_queries" yaml:"parallel_queries"`
}

// AuthConfig controls credential resolution
type AuthConfig struct {
	// Home is the directory holding auth.json. Empty means $CODEX_HOME or ~/.codex.
	Home string `mapstructure:"home" yaml:"home"`
	// BearerToken, when set, wins over every persisted credential
	BearerToken string `mapstructure:"bearer_token" yaml:"bearer_token"`
	// AccountID accompanies BearerToken
	AccountID string `mapstructure:"account_id" yaml:"account_id"`
	// RefreshURL is the OAuth token endpoint used to refresh stale access tokens
	RefreshURL string `mapstructure:"refresh_url" yaml:"refresh_url"`
	// ClientID is the OAuth client id sent with refresh requests
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

// EngineConfig controls the local conversation engine process
type EngineConfig struct {
	// Command is the engine executable (default: "codex")
	Command string `mapstructure:"command" yaml:"command"`
	// Args are passed before any -c overrides (default: ["proto"])
	Args []string `mapstructure:"args" yaml:"args"`
	// Originator tags requests made on behalf of this bridge
	Originator string `mapstructure:"originator" yaml:"originator"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Debug emits credential-resolution diagnostics regardless of Level
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// Dir holds taskbridge.log. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// DefaultBaseURL is the backend used when none is configured.
const DefaultBaseURL = "https://chatgpt.com/backend-api"

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Cloud: CloudConfig{
			BaseURL:         DefaultBaseURL,
			UserAgent:       "taskbridge",
			Mock:            false,
			TimeoutSeconds:  30,
			ParallelQueries: 4,
		},
		Auth: AuthConfig{
			Home:        "", // Empty means $CODEX_HOME or ~/.codex
			BearerToken: "",
			AccountID:   "",
			RefreshURL:  "https://auth.openai.com/oauth/token",
			ClientID:    "app_EMoamEEZ73f0CkXaXp7hrann",
		},
		Engine: EngineConfig{
			Command:    "codex",
			Args:       []string{"proto"},
			Originator: "taskbridge",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Debug:      false,
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Timeout returns the per-request timeout as a time.Duration (0 means none)
func (c *CloudConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with the given viper instance
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("cloud.base_url", defaults.Cloud.BaseURL)
	v.SetDefault("cloud.user_agent", defaults.Cloud.UserAgent)
	v.SetDefault("cloud.mock", defaults.Cloud.Mock)
	v.SetDefault("cloud.timeout_seconds", defaults.Cloud.TimeoutSeconds)
	v.SetDefault("cloud.parallel_queries", defaults.Cloud.ParallelQueries)

	v.SetDefault("auth.home", defaults.Auth.Home)
	v.SetDefault("auth.bearer_token", defaults.Auth.BearerToken)
	v.SetDefault("auth.account_id", defaults.Auth.AccountID)
	v.SetDefault("auth.refresh_url", defaults.Auth.RefreshURL)
	v.SetDefault("auth.client_id", defaults.Auth.ClientID)

	v.SetDefault("engine.command", defaults.Engine.Command)
	v.SetDefault("engine.args", defaults.Engine.Args)
	v.SetDefault("engine.originator", defaults.Engine.Originator)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.debug", defaults.Logging.Debug)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskbridge"
	}
	return filepath.Join(home, ".config", "taskbridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// WriteDefault writes the default configuration as YAML to path.
// It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	header := []byte("# taskbridge configuration\n")
	return os.WriteFile(path, append(header, data...), 0600)
}
