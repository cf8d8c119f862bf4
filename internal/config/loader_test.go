package config_test

import (
	"strings"
	"testing"

	"github.com/oraclab/oraccore/internal/config"
)

func TestLoadFromReader_MinimalValid(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.MaxSize != 500 {
		t.Errorf("Cache.MaxSize default = %d, want 500", cfg.Cache.MaxSize)
	}
	if cfg.DataDir != "/var/lib/orac-core" {
		t.Errorf("DataDir default = %q, want /var/lib/orac-core", cfg.DataDir)
	}
	if cfg.Heartbeat.ActiveThresholdSeconds != 35 || cfg.Heartbeat.IdleThresholdSeconds != 70 {
		t.Errorf("heartbeat defaults = %+v, want 35/70", cfg.Heartbeat)
	}
}

func TestLoadFromReader_MissingBinaryPath(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  model_dir: /opt/models
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing models.binary_path, got nil")
	}
	if !strings.Contains(err.Error(), "binary_path") {
		t.Errorf("error should mention binary_path, got: %v", err)
	}
}

func TestLoadFromReader_DuplicateModelIDs(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
  catalogue:
    - id: small
      file: small.gguf
    - id: small
      file: other.gguf
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate model ids, got nil")
	}
	if !strings.Contains(err.Error(), "duplicates") {
		t.Errorf("error should mention duplicates, got: %v", err)
	}
}

func TestLoadFromReader_DefaultModelMustExist(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
favourites:
  default_model: ghost
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown default_model, got nil")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error should mention the unknown model id, got: %v", err)
	}
}

func TestLoadFromReader_DuplicateBackendNames(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
backends:
  - name: home
    type: homeassistant
    base_url: http://ha.local:8123
  - name: home
    type: homeassistant
    base_url: http://ha2.local:8123
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate backend names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicates") {
		t.Errorf("error should mention duplicates, got: %v", err)
	}
}

func TestLoadFromReader_HomeAssistantRequiresBaseURL(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
backends:
  - name: home
    type: homeassistant
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing base_url, got nil")
	}
	if !strings.Contains(err.Error(), "base_url") {
		t.Errorf("error should mention base_url, got: %v", err)
	}
}

func TestLoadFromReader_HeartbeatThresholdOrdering(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
heartbeat:
  active_threshold_seconds: 100
  idle_threshold_seconds: 50
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for inverted heartbeat thresholds, got nil")
	}
	if !strings.Contains(err.Error(), "active_threshold_seconds") {
		t.Errorf("error should mention active_threshold_seconds, got: %v", err)
	}
}

func TestLoadFromReader_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: extremely_verbose
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  binary_path: /usr/local/bin/llama-server
  model_dir: /opt/models
bogus_top_level_field: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected decode error for unknown field, got nil")
	}
}
