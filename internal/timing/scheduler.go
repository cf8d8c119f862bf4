package timing

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StaleTopicPruner is what the scheduler needs from a topic store to evict
// auto-discovered topics nobody has heartbeated in a while; internal/app
// adapts a topic.Store to it. Declared locally so this package doesn't
// import internal/topic.
type StaleTopicPruner interface {
	List(ctx context.Context) ([]TopicLike, error)
	Delete(ctx context.Context, id string) error
}

// TopicLike is the minimal shape of a topic.Topic the pruner inspects.
type TopicLike struct {
	ID             string
	AutoDiscovered bool
	LastSeen       time.Time
}

// Scheduler runs periodic maintenance against a Store on a cron schedule:
// trimming the performance-log ring down to a cap and removing
// auto-discovered topics that have gone quiet. It replaces an ad hoc ticker
// goroutine with a named, independently schedulable job list.
type Scheduler struct {
	store  *Store
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler constructs a Scheduler bound to store. Call [Scheduler.Start]
// to begin running jobs.
func NewScheduler(store *Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		cron:   cron.New(),
		logger: logger,
	}
}

// ScheduleRingTrim registers a job that caps the performance-log ring at
// maxEntries, dropping the oldest entries beyond it, on spec (standard cron
// syntax, e.g. "@every 1h").
func (sch *Scheduler) ScheduleRingTrim(spec string, maxEntries int) error {
	_, err := sch.cron.AddFunc(spec, func() {
		removed := sch.store.TrimTo(maxEntries)
		if removed > 0 {
			sch.logger.Info("timing: trimmed performance log", "removed", removed, "cap", maxEntries)
		}
	})
	return err
}

// ScheduleStaleTopicPrune registers a job that deletes auto-discovered
// topics whose last heartbeat is older than maxAge, on spec.
func (sch *Scheduler) ScheduleStaleTopicPrune(spec string, pruner StaleTopicPruner, maxAge time.Duration) error {
	_, err := sch.cron.AddFunc(spec, func() {
		ctx := context.Background()
		topics, err := pruner.List(ctx)
		if err != nil {
			sch.logger.Warn("timing: list topics for pruning failed", "error", err)
			return
		}
		cutoff := time.Now().Add(-maxAge)
		for _, t := range topics {
			if !t.AutoDiscovered || t.LastSeen.After(cutoff) {
				continue
			}
			if err := pruner.Delete(ctx, t.ID); err != nil {
				sch.logger.Warn("timing: prune stale topic failed", "topic", t.ID, "error", err)
				continue
			}
			sch.logger.Info("timing: pruned stale auto-discovered topic", "topic", t.ID)
		}
	})
	return err
}

// Start begins running all scheduled jobs in a background goroutine.
func (sch *Scheduler) Start() {
	sch.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (sch *Scheduler) Stop() {
	<-sch.cron.Stop().Done()
}

// TrimTo drops the oldest ring entries beyond maxEntries, returning the
// number removed. A no-op if the ring already fits.
func (s *Store) TrimTo(maxEntries int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxEntries <= 0 || s.ringLen <= maxEntries {
		return 0
	}
	excess := s.ringLen - maxEntries
	s.ringHead = (s.ringHead + excess) % s.ringCap
	s.ringLen = maxEntries
	return excess
}
