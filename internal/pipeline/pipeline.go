package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oraclab/oraccore/internal/backend"
	"github.com/oraclab/oraccore/internal/cache"
	"github.com/oraclab/oraccore/internal/grammar"
	"github.com/oraclab/oraccore/internal/mapping"
	"github.com/oraclab/oraccore/internal/orerr"
	"github.com/oraclab/oraccore/internal/supervisor"
	"github.com/oraclab/oraccore/internal/timing"
	"github.com/oraclab/oraccore/internal/topic"
)

const defaultErrorCorrectionWindow = 10 * time.Second

// Pipeline ties the topic, cache, mapping, backend, and supervisor
// components into the Generation Pipeline described by steps A-L. It is
// safe for concurrent use; requests for distinct topics run fully in
// parallel, requests for the same topic share the underlying inference
// session.
type Pipeline struct {
	cfg Config

	topics   topic.Store
	caches   cache.Cache
	mappings mapping.Store
	backends *backend.Registry
	sv       *supervisor.Supervisor
	times    *timing.Store
	logger   *slog.Logger

	binaryPath string
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithLogger attaches a structured logger; the zero value uses slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New constructs a Pipeline. binaryPath is the inference CLI invoked by the
// supervisor for every session it starts.
func New(cfg Config, binaryPath string, topics topic.Store, caches cache.Cache, mappings mapping.Store, backends *backend.Registry, sv *supervisor.Supervisor, times *timing.Store, opts ...Option) *Pipeline {
	if cfg.ErrorCorrectionWindow <= 0 {
		cfg.ErrorCorrectionWindow = defaultErrorCorrectionWindow
	}
	p := &Pipeline{
		cfg:        cfg,
		topics:     topics,
		caches:     caches,
		mappings:   mappings,
		backends:   backends,
		sv:         sv,
		times:      times,
		binaryPath: binaryPath,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Generate runs steps A-L of the Generation Pipeline for req.
func (p *Pipeline) Generate(ctx context.Context, req Request) (Response, error) {
	cmdID := uuid.NewString()
	now := time.Now()

	// Step A: bookkeeping.
	p.times.StartCommand(cmdID, req.TopicID, now)
	p.times.Update(func(c *timing.Command) {
		c.Stages.WakeWordDetectedAt = req.Upstream.WakeWordTime
	})

	// Step B: wake-word stripping.
	stripped := stripWakeWord(req.Prompt, p.cfg.WakeWords)

	// Step C: error-correction check.
	if isErrorCorrectionPhrase(req.Prompt, stripped, p.cfg.ErrorCorrectionPhrases) {
		windowSeconds := int(p.cfg.ErrorCorrectionWindow / time.Second)
		removed, err := p.caches.RemoveLast(ctx, windowSeconds)
		if err != nil {
			p.logger.Warn("pipeline: error-correction cache remove_last failed", "error", err)
		}
		p.times.Complete(time.Now(), "")
		p.logger.Info("pipeline: error-correction acknowledged", "topic", req.TopicID, "removed_entry", removed)
		return Response{
			Status:          "ok",
			ResponseText:    "acknowledged",
			ErrorCorrection: true,
			CacheHit:        false,
			LLMSkipped:      true,
		}, nil
	}

	// Step D: topic resolution.
	tp, err := p.topics.GetOrAutocreate(ctx, req.TopicID)
	if err != nil {
		p.failCommand(err)
		return Response{}, orerr.Wrap(orerr.KindValidation, "pipeline.generate", "topic resolution failed", err)
	}
	if !tp.Enabled {
		err := orerr.New(orerr.KindValidation, "pipeline.generate", fmt.Sprintf("topic %q is disabled", tp.ID))
		p.failCommand(err)
		return Response{}, err
	}
	_ = p.topics.MarkUsed(ctx, tp.ID, time.Now())

	// Step E: cache lookup.
	p.times.Update(func(c *timing.Command) { c.Stages.CacheLookupAt = time.Now() })
	if entry, hit, err := p.caches.Get(ctx, tp.ID, stripped); err == nil && hit {
		p.times.Update(func(c *timing.Command) {
			c.CacheHit = true
			c.LLMSkipped = true
		})
		resp := p.dispatchAndFinalize(ctx, tp, entry.JSONOutput, true, req.Upstream)
		return resp, nil
	}

	// Step F: grammar resolution.
	grammarPath, vocab, warn, err := p.resolveGrammar(ctx, tp, req.Overrides)
	if err != nil {
		p.failCommand(err)
		return Response{}, orerr.Wrap(orerr.KindValidation, "pipeline.generate", "grammar resolution failed", err)
	}
	if warn != "" {
		p.logger.Warn("pipeline: grammar resolution", "topic", tp.ID, "warning", warn)
	}

	// Step G: prompt formatting.
	prompt := formatPrompt(stripped, tp, grammarPath, vocab)

	// Step H: inference.
	sampling := effectiveSampling(req.Overrides, tp, p.cfg.DefaultSamplingProfile)
	model := req.Overrides.Model
	if model == "" {
		model = tp.Model
	}
	key := supervisor.SessionKey{ModelID: model, GrammarFilePath: grammarPath, Sampling: sampling}

	p.times.Update(func(c *timing.Command) { c.Stages.InferenceStartAt = time.Now() })
	handle, err := p.sv.EnsureReady(ctx, key, p.binaryPath, model)
	if err != nil {
		p.failCommand(err)
		return Response{}, orerr.Wrap(orerr.KindInference, "pipeline.generate", "inference session unavailable", err)
	}

	deadline := time.Now().Add(p.cfg.InferenceTimeout)
	result, err := p.sv.Generate(ctx, handle, prompt, deadline)
	p.times.Update(func(c *timing.Command) { c.Stages.InferenceEndAt = time.Now() })
	if err != nil {
		kind := orerr.KindInference
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			kind = orerr.KindTimeout
		}
		p.failCommand(err)
		return Response{}, orerr.Wrap(kind, "pipeline.generate", "inference failed", err)
	}

	// Step I: response post-processing.
	jsonOutput, ok := repairJSON(result.Text)
	if !ok {
		p.failCommand(fmt.Errorf("unparseable model output"))
		return Response{}, orerr.New(orerr.KindInference, "pipeline.generate", "model output was not valid JSON after repair")
	}

	resp := p.dispatchAndFinalize(ctx, tp, jsonOutput, false, req.Upstream)
	resp.Model = model
	if !resp.CacheHit {
		// Step K: cache write-back, only on miss + valid JSON + dispatch success.
		if resp.Dispatch != nil && resp.Dispatch.Success {
			_ = p.caches.Store(ctx, tp.ID, stripped, jsonOutput, resp.Dispatch.EntityID)
		}
	}
	return resp, nil
}

// dispatchAndFinalize runs Step J (dispatch) and Step L (finalization) for
// both cache-hit and cache-miss paths.
func (p *Pipeline) dispatchAndFinalize(ctx context.Context, tp topic.Topic, jsonOutput map[string]any, cacheHit bool, upstream UpstreamTiming) Response {
	p.times.Update(func(c *timing.Command) { c.Stages.DispatchStartAt = time.Now() })

	var outcome *DispatchOutcome
	if tp.BackendID != "" {
		rec, err := p.mappings.Get(ctx, tp.BackendID)
		if err != nil {
			outcome = &DispatchOutcome{Attempted: true, Success: false, Error: err.Error()}
		} else {
			adapter, err := p.backends.New(rec, p.mappings)
			if err != nil {
				outcome = &DispatchOutcome{Attempted: true, Success: false, Error: err.Error()}
			} else {
				dispatchCtx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
				cmd := backend.Command{
					Device:   stringField(jsonOutput, "device"),
					Action:   stringField(jsonOutput, "action"),
					Location: stringField(jsonOutput, "location"),
				}
				result, err := adapter.DispatchCommand(dispatchCtx, cmd)
				cancel()
				if err != nil {
					outcome = &DispatchOutcome{Attempted: true, Success: false, Error: err.Error()}
				} else {
					outcome = &DispatchOutcome{
						Attempted: true,
						Success:   result.Success,
						Message:   result.Message,
						Error:     result.Error,
						EntityID:  result.EntityID,
					}
				}
			}
		}
	}
	p.times.Update(func(c *timing.Command) { c.Stages.DispatchEndAt = time.Now() })

	text, _ := json.Marshal(jsonOutput)

	// Step L: finalization.
	completed := p.times.Complete(time.Now(), "")
	endToEnd := int64(0)
	if !upstream.WakeWordTime.IsZero() {
		endToEnd = completed.Stages.CompletedAt.Sub(upstream.WakeWordTime).Milliseconds()
	}

	return Response{
		Status:       "ok",
		ResponseText: string(text),
		ElapsedMs:    completed.ElapsedMs(),
		EndToEndMs:   endToEnd,
		CacheHit:     cacheHit,
		LLMSkipped:   cacheHit,
		Dispatch:     outcome,
	}
}

func (p *Pipeline) failCommand(err error) {
	p.times.Complete(time.Now(), err.Error())
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// stripWakeWord removes a leading wake-word phrase from prompt,
// case-insensitively and tolerating trailing punctuation.
func stripWakeWord(prompt string, wakeWords []string) string {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)
	for _, w := range wakeWords {
		wl := strings.ToLower(w)
		if strings.HasPrefix(lower, wl) {
			rest := trimmed[len(wl):]
			rest = strings.TrimLeft(rest, ",.! ")
			return strings.TrimSpace(rest)
		}
	}
	return trimmed
}

// isErrorCorrectionPhrase reports whether original or stripped exactly
// equals or begins with any configured error-correction phrase.
func isErrorCorrectionPhrase(original, stripped string, phrases []string) bool {
	for _, candidate := range []string{strings.ToLower(strings.TrimSpace(original)), strings.ToLower(strings.TrimSpace(stripped))} {
		for _, phrase := range phrases {
			pl := strings.ToLower(phrase)
			if candidate == pl || strings.HasPrefix(candidate, pl) {
				return true
			}
		}
	}
	return false
}

// effectiveSampling applies the precedence request > topic > model default.
func effectiveSampling(o Overrides, tp topic.Topic, def SamplingDefaults) supervisor.SamplingProfile {
	s := supervisor.SamplingProfile{
		Temperature: def.Temperature,
		TopP:        def.TopP,
		TopK:        def.TopK,
		MaxTokens:   def.MaxTokens,
		JSONMode:    tp.Grammar.Enabled,
	}
	if tp.Settings.Temperature != nil {
		s.Temperature = *tp.Settings.Temperature
	}
	if tp.Settings.TopP != nil {
		s.TopP = *tp.Settings.TopP
	}
	if tp.Settings.TopK != nil {
		s.TopK = *tp.Settings.TopK
	}
	if tp.Settings.MaxTokens != nil {
		s.MaxTokens = *tp.Settings.MaxTokens
	}
	if o.Temperature != nil {
		s.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		s.TopP = *o.TopP
	}
	if o.TopK != nil {
		s.TopK = *o.TopK
	}
	if o.MaxTokens != nil {
		s.MaxTokens = *o.MaxTokens
	}
	return s
}

// resolveGrammar implements Step F's precedence: explicit request override,
// then the topic's linked backend's generated grammar (auto-generating it
// if missing), then the topic's static grammar file. Returns ("", nil, "",
// nil) when no grammar applies.
func (p *Pipeline) resolveGrammar(ctx context.Context, tp topic.Topic, o Overrides) (path string, vocab grammar.Vocabulary, warning string, err error) {
	if o.GrammarFilePathSet && o.GrammarFilePath != "" {
		v, readErr := grammar.ParseFile(o.GrammarFilePath)
		if readErr != nil {
			return "", grammar.Vocabulary{}, fmt.Sprintf("explicit grammar file unreadable: %v", readErr), nil
		}
		return o.GrammarFilePath, v, "", nil
	}

	if tp.BackendID != "" {
		rec, getErr := p.mappings.Get(ctx, tp.BackendID)
		if getErr != nil {
			return "", grammar.Vocabulary{}, "", fmt.Errorf("linked backend not found: %w", getErr)
		}
		path := grammar.FilePath(p.cfg.DataDir, tp.BackendID)
		v, readErr := grammar.ParseFile(path)
		if readErr != nil {
			result, genErr := grammar.GenerateAndSave(p.cfg.DataDir, rec)
			if genErr != nil {
				return "", grammar.Vocabulary{}, fmt.Sprintf("backend grammar missing and regeneration failed: %v", genErr), nil
			}
			return result.Path, grammar.Vocabulary{DeviceTypes: result.DeviceTypes, Locations: result.Locations}, "", nil
		}
		return path, v, "", nil
	}

	if tp.Grammar.Enabled && tp.Grammar.File != "" {
		v, readErr := grammar.ParseFile(tp.Grammar.File)
		if readErr != nil {
			return "", grammar.Vocabulary{}, fmt.Sprintf("static grammar file missing: %v", readErr), nil
		}
		return tp.Grammar.File, v, "", nil
	}

	return "", grammar.Vocabulary{}, "", nil
}

// formatPrompt implements Step G's two prompt shapes.
func formatPrompt(stripped string, tp topic.Topic, grammarPath string, vocab grammar.Vocabulary) string {
	if grammarPath != "" {
		hint := fmt.Sprintf("Allowed devices: %s. Allowed locations: %s. Use UNKNOWN if unsure.",
			strings.Join(vocab.DeviceTypes, ", "), strings.Join(vocab.Locations, ", "))
		return fmt.Sprintf("%s\n\nUser: %s\nAssistant: {\"device\":\"", hint, stripped)
	}

	system := tp.Settings.SystemPrompt
	if tp.Settings.ForceJSON {
		system = "Output only a single JSON object and nothing else."
	}

	var b strings.Builder
	if tp.Settings.NoThink {
		b.WriteString("/no_think\n")
	}
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(stripped)
	b.WriteString("\nAssistant:")
	return b.String()
}

// repairJSON implements Step I: ensure text is valid JSON, attempting to
// recover an object followed by extra text by trimming to the first balanced
// brace match. A truncated (unbalanced) object is rejected, not completed.
// It never attempts semantic repair.
func repairJSON(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if out, ok := tryUnmarshal(trimmed); ok {
		return out, true
	}

	if balanced, ok := trimToBalancedBraces(trimmed); ok {
		if out, ok := tryUnmarshal(balanced); ok {
			return out, true
		}
	}

	return nil, false
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

// trimToBalancedBraces scans for the first top-level {...} span, ignoring
// braces inside string literals.
func trimToBalancedBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
