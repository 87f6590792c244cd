package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Cloud.BaseURL != DefaultBaseURL {
		t.Errorf("Cloud.BaseURL = %q, want %q", cfg.Cloud.BaseURL, DefaultBaseURL)
	}
	if cfg.Cloud.UserAgent != "taskbridge" {
		t.Errorf("Cloud.UserAgent = %q, want %q", cfg.Cloud.UserAgent, "taskbridge")
	}
	if cfg.Cloud.Mock {
		t.Error("Cloud.Mock should be false by default")
	}
	if cfg.Cloud.ParallelQueries != 4 {
		t.Errorf("Cloud.ParallelQueries = %d, want 4", cfg.Cloud.ParallelQueries)
	}

	if cfg.Engine.Command != "codex" {
		t.Errorf("Engine.Command = %q, want %q", cfg.Engine.Command, "codex")
	}
	if len(cfg.Engine.Args) != 1 || cfg.Engine.Args[0] != "proto" {
		t.Errorf("Engine.Args = %v, want [proto]", cfg.Engine.Args)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.MaxSizeMB != 10 || cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging rotation = %d/%d, want 10/3", cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should be valid, got: %v", ValidationErrors(errs))
	}
}

func TestCloudConfig_Timeout(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{30, 30 * time.Second},
	}
	for _, tt := range tests {
		c := CloudConfig{TimeoutSeconds: tt.seconds}
		if got := c.Timeout(); got != tt.want {
			t.Errorf("Timeout() with %d = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/taskbridge" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/taskbridge")
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		want := filepath.Join(home, ".config", "taskbridge")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/taskbridge/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestLoadFrom(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		v := viper.New()
		SetDefaultsOn(v)

		cfg, err := LoadFrom(v)
		if err != nil {
			t.Fatalf("LoadFrom failed: %v", err)
		}
		if cfg.Cloud.BaseURL != DefaultBaseURL {
			t.Errorf("Cloud.BaseURL = %q", cfg.Cloud.BaseURL)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "cloud:\n  base_url: https://example.test/api\n  mock: true\nengine:\n  args: [proto, --verbose]\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		v := viper.New()
		SetDefaultsOn(v)
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig failed: %v", err)
		}

		cfg, err := LoadFrom(v)
		if err != nil {
			t.Fatalf("LoadFrom failed: %v", err)
		}
		if cfg.Cloud.BaseURL != "https://example.test/api" {
			t.Errorf("Cloud.BaseURL = %q", cfg.Cloud.BaseURL)
		}
		if !cfg.Cloud.Mock {
			t.Error("Cloud.Mock should be true")
		}
		if len(cfg.Engine.Args) != 2 || cfg.Engine.Args[1] != "--verbose" {
			t.Errorf("Engine.Args = %v", cfg.Engine.Args)
		}
		// untouched keys keep defaults
		if cfg.Cloud.UserAgent != "taskbridge" {
			t.Errorf("Cloud.UserAgent = %q", cfg.Cloud.UserAgent)
		}
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaultsOn(v)
		v.Set("cloud.parallel_queries", 0)
		v.Set("logging.level", "loud")

		_, err := LoadFrom(v)
		if err == nil {
			t.Fatal("expected validation error")
		}
		verrs, ok := err.(ValidationErrors)
		if !ok {
			t.Fatalf("error type = %T, want ValidationErrors", err)
		}
		if len(verrs) != 2 {
			t.Errorf("got %d errors, want 2: %v", len(verrs), verrs)
		}
	})
}

func TestGet(t *testing.T) {
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Engine.Command != "codex" {
		t.Errorf("Get().Engine.Command = %q, want codex", cfg.Engine.Command)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# taskbridge configuration") {
		t.Errorf("missing header: %q", string(data)[:20])
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written file is not valid YAML: %v", err)
	}
	if cfg.Cloud.BaseURL != DefaultBaseURL {
		t.Errorf("round-tripped base_url = %q", cfg.Cloud.BaseURL)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("expected error when config file already exists")
	}
}
