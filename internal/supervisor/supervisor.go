package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oraclab/oraccore/internal/resilience"
)

// session is the supervisor's private bookkeeping for one [SessionKey].
type session struct {
	key SessionKey

	mu                     sync.Mutex
	state                  State
	proc                   process
	restartCount           int
	consecutiveReadyFails  int
	lastError              string
	breaker                *resilience.CircuitBreaker

	// starting is non-nil exactly while a start is in flight; concurrent
	// EnsureReady callers for the same key wait on it instead of launching
	// a second subprocess.
	starting chan struct{}
	startErr error
}

// Supervisor manages inference subprocesses keyed by (model, grammar file,
// sampling profile). It is safe for concurrent use.
type Supervisor struct {
	cfg      Config
	launcher launcher
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[SessionKey]*session
	nextPort int

	startSem chan struct{}
	serveSem chan struct{}

	shuttingDown bool
}

// New constructs a Supervisor. binaryPath and modelPaths are resolved by the
// caller; Supervisor itself only knows session keys and file paths handed to
// EnsureReady.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if cfg.MaxConcurrentStarts <= 0 {
		cfg.MaxConcurrentStarts = 2
	}
	if cfg.MaxConcurrentServes <= 0 {
		cfg.MaxConcurrentServes = 8
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = 30 * time.Second
	}
	if cfg.MaxReadinessFailures <= 0 {
		cfg.MaxReadinessFailures = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		launcher: newSubprocessLauncher(),
		logger:   logger,
		sessions: make(map[SessionKey]*session),
		nextPort: cfg.BasePort,
		startSem: make(chan struct{}, cfg.MaxConcurrentStarts),
		serveSem: make(chan struct{}, cfg.MaxConcurrentServes),
	}
}

// EnsureReady returns a handle to a Ready session for key, starting one if
// necessary. Concurrent callers for the same key share a single startup.
func (sv *Supervisor) EnsureReady(ctx context.Context, key SessionKey, binaryPath, modelPath string) (SessionHandle, error) {
	sv.mu.Lock()
	if sv.shuttingDown {
		sv.mu.Unlock()
		return SessionHandle{}, ErrShuttingDown
	}
	s, ok := sv.sessions[key]
	if !ok {
		s = &session{
			key:     key,
			state:   NotStarted,
			breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: key.String()}),
		}
		sv.sessions[key] = s
	}
	sv.mu.Unlock()

	for {
		s.mu.Lock()
		switch s.state {
		case Ready, Serving, Degraded:
			s.mu.Unlock()
			return SessionHandle{key: key}, nil
		case Terminated:
			s.mu.Unlock()
			return SessionHandle{}, ErrTerminated
		case Starting, Restarting:
			wait := s.starting
			s.mu.Unlock()
			if wait == nil {
				continue
			}
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return SessionHandle{}, ctx.Err()
			}
		default: // NotStarted
			s.state = Starting
			s.starting = make(chan struct{})
			s.mu.Unlock()
			sv.startLocked(ctx, s, binaryPath, modelPath)

			s.mu.Lock()
			state, err := s.state, s.startErr
			s.mu.Unlock()
			if err != nil {
				if state == Terminated {
					return SessionHandle{}, ErrTerminated
				}
				return SessionHandle{}, err
			}
			return SessionHandle{key: key}, nil
		}
	}
}

// startLocked performs the actual spawn + readiness wait for s, respecting
// the max-concurrent-starts semaphore, then resolves s.starting for every
// waiter.
func (sv *Supervisor) startLocked(ctx context.Context, s *session, binaryPath, modelPath string) {
	select {
	case sv.startSem <- struct{}{}:
	case <-ctx.Done():
		s.mu.Lock()
		s.state = NotStarted
		s.mu.Unlock()
		sv.finishStart(s, ctx.Err())
		return
	}
	defer func() { <-sv.startSem }()

	port := sv.allocatePort()
	proc, err := sv.launcher.launch(s.key, binaryPath, modelPath, sv.cfg.Host, port)
	if err != nil {
		sv.onReadinessFailure(s, err)
		return
	}

	deadline := time.Now().Add(sv.cfg.ReadinessTimeout)
	if err := proc.waitReady(ctx, deadline); err != nil {
		sv.onReadinessFailure(s, err)
		return
	}

	s.mu.Lock()
	s.proc = proc
	s.state = Ready
	s.consecutiveReadyFails = 0
	s.lastError = ""
	pid := proc.pid()
	restarts := s.restartCount
	s.mu.Unlock()
	sv.logger.Info("supervisor: session ready",
		"key", s.key.String(), "model", s.key.ModelID, "pid", pid, "restart_count", restarts)
	sv.finishStart(s, nil)
}

func (sv *Supervisor) onReadinessFailure(s *session, err error) {
	s.mu.Lock()
	s.consecutiveReadyFails++
	s.lastError = err.Error()
	if s.consecutiveReadyFails >= sv.cfg.MaxReadinessFailures {
		s.state = Terminated
	} else {
		s.state = NotStarted
	}
	s.mu.Unlock()
	sv.logger.Warn("supervisor: session failed readiness", "key", s.key.String(), "error", err, "fails", s.consecutiveReadyFails)
	sv.finishStart(s, err)
}

func (sv *Supervisor) finishStart(s *session, err error) {
	s.mu.Lock()
	s.startErr = err
	waiters := s.starting
	s.starting = nil
	s.mu.Unlock()
	if waiters != nil {
		close(waiters)
	}
}

func (sv *Supervisor) allocatePort() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	port := sv.nextPort
	sv.nextPort++
	return port
}

// Generate submits prompt to handle's session. Safe under concurrent calls
// across distinct sessions; appears atomic to each caller.
func (sv *Supervisor) Generate(ctx context.Context, handle SessionHandle, prompt string, deadline time.Time) (GenerationResult, error) {
	sv.mu.Lock()
	if sv.shuttingDown {
		sv.mu.Unlock()
		return GenerationResult{}, ErrShuttingDown
	}
	s, ok := sv.sessions[handle.key]
	sv.mu.Unlock()
	if !ok {
		return GenerationResult{}, fmt.Errorf("supervisor: unknown session %s", handle.key.String())
	}

	select {
	case sv.serveSem <- struct{}{}:
	case <-ctx.Done():
		return GenerationResult{}, ctx.Err()
	}
	defer func() { <-sv.serveSem }()

	s.mu.Lock()
	proc := s.proc
	breaker := s.breaker
	if s.state == Ready {
		s.state = Serving
	}
	s.mu.Unlock()

	if proc == nil {
		return GenerationResult{}, fmt.Errorf("supervisor: session %s has no running process", handle.key.String())
	}

	var result GenerationResult
	err := breaker.Execute(func() error {
		var innerErr error
		result, innerErr = proc.generate(ctx, prompt, deadline)
		return innerErr
	})

	s.mu.Lock()
	if err != nil {
		s.lastError = err.Error()
		s.state = Degraded
	} else if s.state == Serving {
		s.state = Ready
	}
	s.mu.Unlock()

	return result, err
}

// Restart force-cycles the session identified by key, used when its grammar
// changes or it has become Degraded.
func (sv *Supervisor) Restart(ctx context.Context, key SessionKey, binaryPath, modelPath string) error {
	sv.mu.Lock()
	s, ok := sv.sessions[key]
	sv.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: unknown session %s", key.String())
	}

	s.mu.Lock()
	proc := s.proc
	s.state = Restarting
	s.proc = nil
	s.restartCount++
	s.starting = make(chan struct{})
	s.mu.Unlock()

	if proc != nil {
		_ = proc.stop(ctx)
	}

	s.mu.Lock()
	s.state = NotStarted
	s.mu.Unlock()
	sv.finishStart(s, nil)

	_, err := sv.EnsureReady(ctx, key, binaryPath, modelPath)
	return err
}

// ShutdownAll terminates every session with a grace period, then force-kills
// any still running.
func (sv *Supervisor) ShutdownAll(ctx context.Context) {
	sv.mu.Lock()
	sv.shuttingDown = true
	sessions := make([]*session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			s.mu.Lock()
			proc := s.proc
			s.proc = nil
			s.state = Terminated
			s.mu.Unlock()
			if proc != nil {
				_ = proc.stop(ctx)
			}
		}(s)
	}
	wg.Wait()
}

// Health returns an operator-facing snapshot of every known session.
func (sv *Supervisor) Health() []Health {
	sv.mu.Lock()
	sessions := make([]*session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.Unlock()

	out := make([]Health, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		breaker := s.breaker
		h := Health{
			Key:            s.key,
			State:          s.state,
			RestartCount:   s.restartCount,
			LastError:      s.lastError,
			ReadinessFails: s.consecutiveReadyFails,
		}
		s.mu.Unlock()
		if breaker != nil {
			h.BreakerState = breaker.State().String()
		}
		out = append(out, h)
	}
	return out
}
