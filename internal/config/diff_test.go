package config_test

import (
	"testing"

	"github.com/oraclab/oraccore/internal/config"
)

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged = true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %v, want debug", d.NewLogLevel)
	}
}

func TestDiff_BackendAddedAndRemoved(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Backends: []config.BackendSeed{
			{Name: "kitchen", Type: "homeassistant", BaseURL: "http://a"},
		},
	}
	new := &config.Config{
		Backends: []config.BackendSeed{
			{Name: "garage", Type: "homeassistant", BaseURL: "http://b"},
		},
	}

	d := config.Diff(old, new)
	if !d.BackendsChanged {
		t.Fatal("expected BackendsChanged = true")
	}

	var sawAdded, sawRemoved bool
	for _, bd := range d.BackendChanges {
		switch bd.Name {
		case "garage":
			sawAdded = bd.Added
		case "kitchen":
			sawRemoved = bd.Removed
		}
	}
	if !sawAdded {
		t.Error("expected garage backend reported as Added")
	}
	if !sawRemoved {
		t.Error("expected kitchen backend reported as Removed")
	}
}

func TestDiff_BackendBaseURLChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Backends: []config.BackendSeed{{Name: "kitchen", BaseURL: "http://a"}},
	}
	new := &config.Config{
		Backends: []config.BackendSeed{{Name: "kitchen", BaseURL: "http://b"}},
	}

	d := config.Diff(old, new)
	if !d.BackendsChanged || len(d.BackendChanges) != 1 {
		t.Fatalf("unexpected diff: %+v", d)
	}
	if !d.BackendChanges[0].BaseURLChanged {
		t.Error("expected BaseURLChanged = true")
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogInfo},
		Backends: []config.BackendSeed{{Name: "kitchen", BaseURL: "http://a"}},
	}

	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged || d.BackendsChanged || d.HeartbeatChanged || d.CacheChanged {
		t.Errorf("expected no changes, got %+v", d)
	}
}
