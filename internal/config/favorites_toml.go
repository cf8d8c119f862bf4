package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FavoritesFile is the decoded shape of an optional favorites.toml,
// mirroring original_source's favorites.py persistence but as a small
// structured document instead of a bare JSON array, since ORAC Core tracks
// one default model and one default topic rather than an open-ended set.
type FavoritesFile struct {
	DefaultModel string `toml:"default_model"`
	DefaultTopic string `toml:"default_topic"`
}

// LoadFavoritesTOML reads path and decodes it as a [FavoritesFile]. A
// missing file is not an error — it returns the zero value, since favorites
// are optional and Load's default YAML config may already set them.
func LoadFavoritesTOML(path string) (FavoritesFile, error) {
	var ff FavoritesFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ff, nil
		}
		return ff, fmt.Errorf("config: read favorites %q: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &ff); err != nil {
		return ff, fmt.Errorf("config: decode favorites %q: %w", path, err)
	}
	return ff, nil
}

// ApplyFavoritesTOML loads path and, for each field it sets, overrides the
// corresponding field on cfg.Favourites only if the YAML config left it
// empty. TOML favorites take precedence only where YAML is silent, so an
// operator's main config always wins over the legacy-style favorites file.
func ApplyFavoritesTOML(cfg *Config, path string) error {
	ff, err := LoadFavoritesTOML(path)
	if err != nil {
		return err
	}
	if cfg.Favourites.DefaultModel == "" {
		cfg.Favourites.DefaultModel = ff.DefaultModel
	}
	if cfg.Favourites.DefaultTopic == "" {
		cfg.Favourites.DefaultTopic = ff.DefaultTopic
	}
	return nil
}
