// Package settings manages persistent service configuration for netvald.
package settings

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AI holds LLM bridge configuration. The bridge is a capability flag for
// the UI, never a dependency of the core.
type AI struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// Settings holds service configuration, loaded from
// ~/.netval/config.yaml and overridable via NETVAL_* environment variables.
type Settings struct {
	Port              int    `yaml:"port"`
	DBPath            string `yaml:"db_path"`
	LogLevel          string `yaml:"log_level"`
	MaxSSHConnections int    `yaml:"max_ssh_connections"`
	RetentionHours    int    `yaml:"plan_retention_hours"`
	AI                AI     `yaml:"ai"`
}

// Defaults returns the built-in configuration.
func Defaults() *Settings {
	return &Settings{
		Port:              8742,
		DBPath:            filepath.Join(baseDir(), "netval.db"),
		LogLevel:          "info",
		MaxSSHConnections: 5,
		RetentionHours:    24,
		AI: AI{
			Provider: "ollama",
			Model:    "llama3.2:3b",
			BaseURL:  "http://localhost:11434",
		},
	}
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".netval"
	}
	return filepath.Join(home, ".netval")
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// Load reads settings from the default location, applying environment
// overrides on top. A missing config file is not an error.
func Load() (*Settings, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom reads settings from a specific path.
func LoadFrom(path string) (*Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}

	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("NETVAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Port = port
		}
	}
	if v := os.Getenv("NETVAL_DB_PATH"); v != "" {
		s.DBPath = v
	}
	if v := os.Getenv("NETVAL_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv("NETVAL_MAX_SSH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxSSHConnections = n
		}
	}
	if v := os.Getenv("NETVAL_LLM_PROVIDER"); v != "" {
		s.AI.Provider = v
	}
	if v := os.Getenv("NETVAL_LLM_MODEL"); v != "" {
		s.AI.Model = v
	}
	if v := os.Getenv("NETVAL_LLM_BASE_URL"); v != "" {
		s.AI.BaseURL = v
	}
	if v := os.Getenv("NETVAL_LLM_API_KEY"); v != "" {
		s.AI.APIKey = v
	}
}

// Save writes settings to a specific path, creating the directory if needed.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
