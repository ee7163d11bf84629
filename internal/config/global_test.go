package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGlobalConfig(t *testing.T) {
	// Create temp home directory
	tmpHome := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", origHome)

	// Create config file
	configDir := filepath.Join(tmpHome, ".giftwrap")
	os.MkdirAll(configDir, 0755)
	configPath := filepath.Join(configDir, "config.yaml")

	content := `
engine: docker
`
	os.WriteFile(configPath, []byte(content), 0644)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Engine != "docker" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "docker")
	}
}

func TestLoadGlobalConfigDefaults(t *testing.T) {
	// Create temp home with no config
	tmpHome := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", origHome)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Engine != "podman" {
		t.Errorf("Engine = %q, want default %q", cfg.Engine, "podman")
	}
}

func TestLoadGlobalConfigEnvOverride(t *testing.T) {
	tmpHome := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", origHome)

	os.Setenv("GW_ENGINE", "docker")
	defer os.Unsetenv("GW_ENGINE")

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Engine != "docker" {
		t.Errorf("Engine = %q, want %q from env", cfg.Engine, "docker")
	}
}

func TestLoadGlobal_DebugConfig(t *testing.T) {
	tmpHome := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", origHome)

	configDir := filepath.Join(tmpHome, ".giftwrap")
	os.MkdirAll(configDir, 0755)
	content := `
debug:
  retention_days: 7
`
	os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal failed: %v", err)
	}

	if cfg.Debug.RetentionDays != 7 {
		t.Errorf("expected RetentionDays=7, got %d", cfg.Debug.RetentionDays)
	}
	// Engine keeps its default when the file does not mention it.
	if cfg.Engine != "podman" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "podman")
	}
}

func TestDefaultGlobalConfig_DebugDefaults(t *testing.T) {
	cfg := DefaultGlobalConfig()
	if cfg.Debug.RetentionDays != 14 {
		t.Errorf("expected default RetentionDays=14, got %d", cfg.Debug.RetentionDays)
	}
}

func TestDebugLogDir(t *testing.T) {
	tmpHome := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", origHome)

	cfg := DefaultGlobalConfig()
	want := filepath.Join(tmpHome, ".giftwrap", "logs")
	if got := cfg.DebugLogDir(); got != want {
		t.Errorf("DebugLogDir() = %q, want %q", got, want)
	}

	cfg.Debug.Dir = "/var/log/giftwrap"
	if got := cfg.DebugLogDir(); got != "/var/log/giftwrap" {
		t.Errorf("DebugLogDir() = %q, want %q", got, "/var/log/giftwrap")
	}
}
