package config

import (
	"path/filepath"
	"testing"
)

func TestLoadFavoritesTOML_MissingFileReturnsZeroValue(t *testing.T) {
	ff, err := LoadFavoritesTOML(filepath.Join(t.TempDir(), "favorites.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ff.DefaultModel != "" || ff.DefaultTopic != "" {
		t.Errorf("got %+v, want zero value", ff)
	}
}

func TestLoadFavoritesTOML_DecodesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.toml")
	writeFile(t, path, "default_model = \"qwen-7b\"\ndefault_topic = \"kitchen\"\n")

	ff, err := LoadFavoritesTOML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ff.DefaultModel != "qwen-7b" || ff.DefaultTopic != "kitchen" {
		t.Errorf("got %+v", ff)
	}
}

func TestApplyFavoritesTOML_YAMLTakesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.toml")
	writeFile(t, path, "default_model = \"qwen-7b\"\ndefault_topic = \"kitchen\"\n")

	cfg := &Config{}
	cfg.Favourites.DefaultModel = "llama-3"

	if err := ApplyFavoritesTOML(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Favourites.DefaultModel != "llama-3" {
		t.Errorf("DefaultModel = %q, want llama-3 (YAML should win)", cfg.Favourites.DefaultModel)
	}
	if cfg.Favourites.DefaultTopic != "kitchen" {
		t.Errorf("DefaultTopic = %q, want kitchen (filled from TOML)", cfg.Favourites.DefaultTopic)
	}
}
