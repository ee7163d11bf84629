package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds machine-wide giftwrap settings from ~/.giftwrap/config.yaml.
type GlobalConfig struct {
	Engine string      `yaml:"engine"`
	Debug  DebugConfig `yaml:"debug"`
}

// DebugConfig holds debug log settings.
type DebugConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultGlobalConfig returns the default global configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Engine: "podman",
		Debug: DebugConfig{
			RetentionDays: 14,
		},
	}
}

// LoadGlobal reads ~/.giftwrap/config.yaml and applies environment overrides.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	// Try to load from file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".giftwrap", "config.yaml")
		if data, err := os.ReadFile(configPath); err == nil {
			_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
		}
	}

	// Apply environment overrides
	if engine := os.Getenv("GW_ENGINE"); engine != "" {
		cfg.Engine = engine
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.giftwrap.
func GlobalConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".giftwrap")
	}
	return filepath.Join(homeDir, ".giftwrap")
}

// DebugLogDir returns the directory debug log files are written to.
func (c *GlobalConfig) DebugLogDir() string {
	if c.Debug.Dir != "" {
		return c.Debug.Dir
	}
	return filepath.Join(GlobalConfigDir(), "logs")
}
