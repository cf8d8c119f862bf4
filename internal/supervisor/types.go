// Package supervisor implements the LLM Server Supervisor: it manages one
// inference subprocess per (model, grammar file, sampling profile) key,
// handling spawn, readiness probing, request serving, restart-on-failure,
// and concurrency caps on starts versus serves.
package supervisor

import (
	"errors"
	"fmt"
	"time"
)

// State is a session's position in the NotStarted -> Starting -> Ready ->
// (Serving | Degraded) -> Restarting -> Ready | Terminated state machine.
type State int

const (
	NotStarted State = iota
	Starting
	Ready
	Serving
	Degraded
	Restarting
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Serving:
		return "serving"
	case Degraded:
		return "degraded"
	case Restarting:
		return "restarting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SamplingProfile captures every generation parameter that distinguishes one
// inference session from another sharing the same model and grammar.
// All fields are comparable, so SessionKey can be used directly as a map key.
type SamplingProfile struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	JSONMode    bool
}

// SessionKey identifies one logical inference session.
type SessionKey struct {
	ModelID         string
	GrammarFilePath string
	Sampling        SamplingProfile
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s|%s|%+v", k.ModelID, k.GrammarFilePath, k.Sampling)
}

// SessionHandle is an opaque reference to a Ready session, returned by
// EnsureReady and consumed by Generate.
type SessionHandle struct {
	key SessionKey
}

// GenerationResult is the outcome of a single Generate call.
type GenerationResult struct {
	Text       string
	TokenCount int
	ElapsedMs  int64
}

// Health is an operator-facing snapshot of one session's status.
type Health struct {
	Key            SessionKey
	State          State
	RestartCount   int
	LastError      string
	ReadinessFails int
	BreakerState   string
}

// ErrTerminated is returned by EnsureReady when a session exceeded its
// readiness-failure bound and was permanently terminated.
var ErrTerminated = errors.New("supervisor: session terminated after repeated readiness failures")

// ErrShuttingDown is returned by EnsureReady and Generate once ShutdownAll
// has been called.
var ErrShuttingDown = errors.New("supervisor: supervisor is shutting down")

// Config tunes the supervisor's concurrency and readiness policy.
type Config struct {
	Host                    string
	BasePort                int
	MaxConcurrentStarts     int
	MaxConcurrentServes     int
	ReadinessTimeout        time.Duration
	MaxReadinessFailures    int
}
