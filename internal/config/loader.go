package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// KnownBackendTypes lists recognised backend adapter types. Used by
// [Validate] to warn about unrecognised backend types before the factory
// would reject them at construction time.
var KnownBackendTypes = []string{"homeassistant"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued tunables with the defaults documented on
// each config field's doc comment.
func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "/var/lib/orac-core"
	}
	if cfg.Cache.MaxSize <= 0 {
		cfg.Cache.MaxSize = 500
	}
	if cfg.Cache.ErrorCorrectionTimeoutSeconds <= 0 {
		cfg.Cache.ErrorCorrectionTimeoutSeconds = 60
	}
	if cfg.Pipeline.DispatchTimeoutSeconds <= 0 {
		cfg.Pipeline.DispatchTimeoutSeconds = 10
	}
	if cfg.Pipeline.InferenceTimeoutSeconds <= 0 {
		cfg.Pipeline.InferenceTimeoutSeconds = 30
	}
	if cfg.Pipeline.PerformanceLogCapacity <= 0 {
		cfg.Pipeline.PerformanceLogCapacity = 200
	}
	if len(cfg.Pipeline.WakeWords) == 0 {
		cfg.Pipeline.WakeWords = []string{"computer", "hey computer", "ok computer", "orac", "hey orac"}
	}
	if len(cfg.Pipeline.ErrorCorrectionPhrases) == 0 {
		cfg.Pipeline.ErrorCorrectionPhrases = []string{"computer error", "that was wrong"}
	}
	if cfg.Supervisor.MaxConcurrentStarts <= 0 {
		cfg.Supervisor.MaxConcurrentStarts = 2
	}
	if cfg.Supervisor.MaxConcurrentServes <= 0 {
		cfg.Supervisor.MaxConcurrentServes = 8
	}
	if cfg.Supervisor.ReadinessTimeoutSeconds <= 0 {
		cfg.Supervisor.ReadinessTimeoutSeconds = 30
	}
	if cfg.Supervisor.MaxReadinessFailures <= 0 {
		cfg.Supervisor.MaxReadinessFailures = 3
	}
	if cfg.Supervisor.Host == "" {
		cfg.Supervisor.Host = "127.0.0.1"
	}
	if cfg.Supervisor.BasePort <= 0 {
		cfg.Supervisor.BasePort = 8900
	}
	if cfg.Heartbeat.ActiveThresholdSeconds <= 0 {
		cfg.Heartbeat.ActiveThresholdSeconds = 35
	}
	if cfg.Heartbeat.IdleThresholdSeconds <= 0 {
		cfg.Heartbeat.IdleThresholdSeconds = 70
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Models.BinaryPath == "" {
		errs = append(errs, errors.New("models.binary_path is required"))
	}

	seenModels := make(map[string]int, len(cfg.Models.Catalogue))
	for i, m := range cfg.Models.Catalogue {
		prefix := fmt.Sprintf("models.catalogue[%d]", i)
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
			continue
		}
		if prev, ok := seenModels[m.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q duplicates catalogue[%d]", prefix, m.ID, prev))
		}
		seenModels[m.ID] = i
		if m.File == "" {
			errs = append(errs, fmt.Errorf("%s.file is required", prefix))
		}
	}

	if cfg.Favourites.DefaultModel != "" {
		if _, ok := seenModels[cfg.Favourites.DefaultModel]; !ok {
			errs = append(errs, fmt.Errorf("favourites.default_model %q is not present in models.catalogue", cfg.Favourites.DefaultModel))
		}
	}

	seenBackends := make(map[string]int, len(cfg.Backends))
	for i, b := range cfg.Backends {
		prefix := fmt.Sprintf("backends[%d]", i)
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := seenBackends[b.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q duplicates backends[%d]", prefix, b.Name, prev))
		}
		seenBackends[b.Name] = i
		validateBackendType(prefix, b.Type)
		if b.Type == "homeassistant" && b.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for type homeassistant", prefix))
		}
	}

	if cfg.Cache.MaxSize <= 0 {
		errs = append(errs, errors.New("cache.max_size must be positive"))
	}
	if cfg.Cache.ErrorCorrectionTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("cache.error_correction_timeout_seconds must be positive"))
	}

	if cfg.Heartbeat.ActiveThresholdSeconds >= cfg.Heartbeat.IdleThresholdSeconds {
		errs = append(errs, errors.New("heartbeat.active_threshold_seconds must be less than idle_threshold_seconds"))
	}

	if cfg.Supervisor.MaxConcurrentStarts <= 0 {
		errs = append(errs, errors.New("supervisor.max_concurrent_starts must be positive"))
	}
	if cfg.Supervisor.MaxConcurrentServes <= 0 {
		errs = append(errs, errors.New("supervisor.max_concurrent_serves must be positive"))
	}

	return errors.Join(errs...)
}

// validateBackendType logs a warning if typ is non-empty and not found in
// [KnownBackendTypes]. Unknown types are a warning, not a hard failure,
// since third-party backend adapters may be registered at runtime.
func validateBackendType(prefix, typ string) {
	if typ == "" {
		return
	}
	for _, known := range KnownBackendTypes {
		if typ == known {
			return
		}
	}
	slog.Warn("unknown backend type — may be a typo or third-party adapter",
		"field", prefix+".type",
		"type", typ,
		"known", KnownBackendTypes,
	)
}
