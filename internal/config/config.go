// Package config provides the configuration schema, loader, and change
// detection for ORAC Core.
package config

// Config is the root configuration structure for ORAC Core.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DataDir    string           `yaml:"data_dir"`
	Models     ModelsConfig     `yaml:"models"`
	Favourites FavouritesConfig `yaml:"favourites"`
	Backends   []BackendSeed    `yaml:"backends"`
	Cache      CacheConfig      `yaml:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Store      StoreConfig      `yaml:"store"`
}

// StoreConfig selects an optional durable backing store for the
// performance log, alongside the in-memory ring that always exists.
type StoreConfig struct {
	// SQLitePath, when set, enables a modernc.org/sqlite-backed append log
	// at "<SQLitePath>/performance_log.db" alongside the in-memory ring.
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds network and logging settings for the ORAC Core process.
type ServerConfig struct {
	// ListenAddr is the TCP address the external surface listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated logging verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError, "":
		return true
	}
	return false
}

// ModelsConfig describes where the llama.cpp server binary and GGUF model
// files live, plus the static catalogue of installable models.
type ModelsConfig struct {
	// BinaryPath is the path to the llama.cpp server executable.
	BinaryPath string `yaml:"binary_path"`

	// ModelDir is the directory containing GGUF model files.
	ModelDir string `yaml:"model_dir"`

	// Catalogue lists known models and their default sampling/template.
	Catalogue []ModelDescriptor `yaml:"catalogue"`
}

// ModelDescriptor is a static entry in the model catalogue.
type ModelDescriptor struct {
	// ID is the logical model identifier referenced by Topics.
	ID string `yaml:"id"`

	// File is the GGUF filename, resolved relative to ModelDir.
	File string `yaml:"file"`

	// ContextSize is the context window, in tokens, passed to the server.
	ContextSize int `yaml:"context_size"`

	// PromptTemplate is the chat template used when no grammar constrains output.
	PromptTemplate string `yaml:"prompt_template"`

	// DefaultTemperature, DefaultTopP, DefaultTopK, DefaultMaxTokens are the
	// model-level sampling defaults, overridden by topic and request settings.
	DefaultTemperature float64 `yaml:"default_temperature"`
	DefaultTopP        float64 `yaml:"default_top_p"`
	DefaultTopK        int     `yaml:"default_top_k"`
	DefaultMaxTokens   int     `yaml:"default_max_tokens"`
}

// FavouritesConfig names the model and topic the supervisor pre-loads at
// startup, mirroring the original implementation's favourites file.
type FavouritesConfig struct {
	DefaultModel string `yaml:"default_model"`
	DefaultTopic string `yaml:"default_topic"`
}

// BackendSeed declares a backend connection to create at startup if no
// persisted backend record with the same Name already exists on disk.
type BackendSeed struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	BaseURL string            `yaml:"base_url"`
	Token   string            `yaml:"token"`
	Options map[string]string `yaml:"options"`
}

// CacheConfig tunes the STT-response cache.
type CacheConfig struct {
	// MaxSize is the maximum number of entries retained across all topics
	// before LRU eviction. Default: 500.
	MaxSize int `yaml:"max_size"`

	// ErrorCorrectionTimeoutSeconds bounds how long after a store an
	// error-correction phrase may still undo it. Default: 60.
	ErrorCorrectionTimeoutSeconds int `yaml:"error_correction_timeout_seconds"`

	// SnapshotPath overrides the default "<data_dir>/stt_cache.json" location.
	SnapshotPath string `yaml:"snapshot_path"`

	// RedisAddr, when set, switches the cache to the shared Redis-backed
	// implementation instead of the on-disk LRU.
	RedisAddr string `yaml:"redis_addr"`
}

// PipelineConfig configures wake-word stripping and error-correction phrases.
type PipelineConfig struct {
	// WakeWords lists prefixes stripped (case-insensitively) from the start
	// of an utterance before cache lookup and inference.
	WakeWords []string `yaml:"wake_words"`

	// ErrorCorrectionPhrases lists utterances that trigger cache undo instead
	// of normal generation.
	ErrorCorrectionPhrases []string `yaml:"error_correction_phrases"`

	// DispatchTimeoutSeconds bounds a single backend dispatch call.
	DispatchTimeoutSeconds int `yaml:"dispatch_timeout_seconds"`

	// InferenceTimeoutSeconds bounds a single model generation call.
	InferenceTimeoutSeconds int `yaml:"inference_timeout_seconds"`

	// PerformanceLogCapacity bounds the in-memory timed-command ring.
	PerformanceLogCapacity int `yaml:"performance_log_capacity"`
}

// SupervisorConfig tunes the LLM server supervisor's concurrency policy.
type SupervisorConfig struct {
	// MaxConcurrentStarts caps simultaneous subprocess spawns. Default: 2.
	MaxConcurrentStarts int `yaml:"max_concurrent_starts"`

	// MaxConcurrentServes caps simultaneous completion requests across all
	// sessions. Default: 8.
	MaxConcurrentServes int `yaml:"max_concurrent_serves"`

	// ReadinessTimeoutSeconds bounds how long a subprocess has to become
	// ready before startup fails. Default: 30.
	ReadinessTimeoutSeconds int `yaml:"readiness_timeout_seconds"`

	// MaxReadinessFailures is the number of consecutive readiness-probe
	// failures before a session is permanently Terminated. Default: 3.
	MaxReadinessFailures int `yaml:"max_readiness_failures"`

	// Host is the loopback interface the spawned servers bind to.
	Host string `yaml:"host"`

	// BasePort is the first port allocated to a spawned server; subsequent
	// sessions take consecutive ports.
	BasePort int `yaml:"base_port"`
}

// HeartbeatConfig tunes topic liveness thresholds.
type HeartbeatConfig struct {
	// ActiveThresholdSeconds: last_seen age below this is "active". Default: 35.
	ActiveThresholdSeconds int `yaml:"active_threshold_seconds"`

	// IdleThresholdSeconds: last_seen age below this (and above active) is
	// "idle"; beyond it is "stale". Default: 70.
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`
}
