// Package pipeline implements the Generation Pipeline: the orchestration
// that takes one incoming prompt through wake-word stripping,
// error-correction handling, topic resolution, cache lookup, grammar
// resolution, inference, post-processing, dispatch, and cache write-back.
package pipeline

import "time"

// UpstreamTiming carries the STT front-end's own timing fields, when the
// caller supplies them, used to compute end-to-end duration in Step L.
type UpstreamTiming struct {
	WakeWordTime     time.Time
	RecordingEndTime time.Time
	STTStartTime     time.Time
	STTEndTime       time.Time
}

// Overrides are the per-request knobs a caller may supply, taking
// precedence over the topic's and model's own defaults.
type Overrides struct {
	Model              string
	GrammarFilePathSet bool
	GrammarFilePath    string
	Temperature        *float64
	TopP               *float64
	TopK               *int
	MaxTokens          *int
}

// Request is one incoming generation call.
type Request struct {
	TopicID   string
	Prompt    string
	Overrides Overrides
	Upstream  UpstreamTiming
}

// Response is the Generation Pipeline's result for one [Request].
type Response struct {
	Status          string
	ResponseText    string
	Model           string
	ElapsedMs       int64
	EndToEndMs      int64
	CacheHit        bool
	LLMSkipped      bool
	ErrorCorrection bool
	Dispatch        *DispatchOutcome
}

// DispatchOutcome mirrors the backend dispatch result surfaced to callers,
// decoupled from the backend package so pipeline callers need not import it.
type DispatchOutcome struct {
	Attempted bool
	Success   bool
	Message   string
	Error     string
	EntityID  string
}

// Config tunes behavior that is not per-topic: wake words, error-correction
// phrases, and timeouts.
type Config struct {
	WakeWords              []string
	ErrorCorrectionPhrases []string
	ErrorCorrectionWindow  time.Duration
	InferenceTimeout       time.Duration
	DispatchTimeout        time.Duration
	DataDir                string
	DefaultSamplingProfile SamplingDefaults
}

// SamplingDefaults is the model-level fallback when neither the request nor
// the topic specify a sampling parameter.
type SamplingDefaults struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}
