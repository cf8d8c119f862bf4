package topic

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/oraclab/oraccore/internal/atomicfile"
)

// Compile-time assertion that FileStore satisfies the Store interface.
var _ Store = (*FileStore)(nil)

// document is the on-disk shape: a single file holding every topic keyed by
// id, per spec's "single document {topics: {id: Topic, ...}}".
type document struct {
	Topics map[string]Topic `json:"topics"`
}

// FileStore is a [Store] backed by one JSON file, rewritten in full on every
// mutation. It is safe for concurrent use; one writer at a time is enforced
// by mu, with readers free to run in parallel with one another.
type FileStore struct {
	path string
	mu   sync.RWMutex

	topics map[string]Topic

	activeThreshold time.Duration
	idleThreshold   time.Duration
}

// NewFileStore loads topics from path if it exists, or starts empty
// (always seeding the "general" topic) if it does not. Corrupt files fail
// loudly rather than being silently discarded.
func NewFileStore(path string, activeThreshold, idleThreshold time.Duration) (*FileStore, error) {
	s := &FileStore{
		path:            path,
		topics:          make(map[string]Topic),
		activeThreshold: activeThreshold,
		idleThreshold:   idleThreshold,
	}

	data, err := atomicfile.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.topics[GeneralTopicID] = newDefaultTopic(GeneralTopicID, time.Now())
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var doc document
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	if doc.Topics == nil {
		doc.Topics = make(map[string]Topic)
	}
	if _, ok := doc.Topics[GeneralTopicID]; !ok {
		doc.Topics[GeneralTopicID] = newDefaultTopic(GeneralTopicID, time.Now())
	}
	s.topics = doc.Topics
	return s, nil
}

func newDefaultTopic(id string, now time.Time) Topic {
	return Topic{
		ID:             id,
		Name:           id,
		Enabled:        true,
		AutoDiscovered: id != GeneralTopicID,
		FirstSeen:      now,
		Grammar:        Grammar{Enabled: true},
	}
}

// GetOrAutocreate implements [Store.GetOrAutocreate].
func (s *FileStore) GetOrAutocreate(ctx context.Context, id string) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.topics[id]; ok {
		return t.clone(), nil
	}

	t := newDefaultTopic(id, time.Now())
	s.topics[id] = t
	if err := s.persistLocked(); err != nil {
		delete(s.topics, id)
		return Topic{}, err
	}
	return t.clone(), nil
}

// Get implements [Store.Get].
func (s *FileStore) Get(ctx context.Context, id string) (Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[id]
	if !ok {
		return Topic{}, ErrNotFound
	}
	return t.clone(), nil
}

// List implements [Store.List].
func (s *FileStore) List(ctx context.Context) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t.clone())
	}
	return out, nil
}

// Update implements [Store.Update]. It replaces every configuration field
// from patch while preserving AutoDiscovered, FirstSeen, LastUsed, and
// Heartbeat untouched.
func (s *FileStore) Update(ctx context.Context, id string, patch Patch) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.topics[id]
	if !ok {
		return Topic{}, ErrNotFound
	}

	updated := existing
	updated.Name = patch.Name
	updated.Enabled = patch.Enabled
	updated.Model = patch.Model
	updated.BackendID = patch.BackendID
	updated.Settings = patch.Settings
	updated.Grammar = patch.Grammar

	prior := s.topics[id]
	s.topics[id] = updated
	if err := s.persistLocked(); err != nil {
		s.topics[id] = prior
		return Topic{}, err
	}
	return updated.clone(), nil
}

// UpdateHeartbeat implements [Store.UpdateHeartbeat]. It is the only path
// permitted to write Heartbeat, and it writes nothing else — this isolation
// is the invariant that prevents a heartbeat update from ever clobbering
// backend_id, settings, grammar, or model.
func (s *FileStore) UpdateHeartbeat(ctx context.Context, id string, fields HeartbeatFields) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.topics[id]
	if !ok {
		existing = newDefaultTopic(id, time.Now())
	}

	now := fields.Now
	if now.IsZero() {
		now = time.Now()
	}

	updated := existing
	updated.Heartbeat = Heartbeat{
		LastSeen:     now,
		Status:       DeriveStatus(now, now, s.activeThreshold, s.idleThreshold),
		WakeWord:     fields.WakeWord,
		TriggerCount: fields.TriggerCount,
	}

	prior, hadPrior := s.topics[id]
	s.topics[id] = updated
	if err := s.persistLocked(); err != nil {
		if hadPrior {
			s.topics[id] = prior
		} else {
			delete(s.topics, id)
		}
		return Topic{}, err
	}
	return updated.clone(), nil
}

// LinkBackend implements [Store.LinkBackend].
func (s *FileStore) LinkBackend(ctx context.Context, id, backendID string) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.topics[id]
	if !ok {
		return Topic{}, ErrNotFound
	}

	updated := existing
	updated.BackendID = backendID
	if backendID != "" {
		updated.Grammar.Enabled = false
	}

	prior := s.topics[id]
	s.topics[id] = updated
	if err := s.persistLocked(); err != nil {
		s.topics[id] = prior
		return Topic{}, err
	}
	return updated.clone(), nil
}

// MarkUsed implements [Store.MarkUsed].
func (s *FileStore) MarkUsed(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.topics[id]
	if !ok {
		return ErrNotFound
	}

	prior := existing
	existing.LastUsed = now
	s.topics[id] = existing
	if err := s.persistLocked(); err != nil {
		s.topics[id] = prior
		return err
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if id == GeneralTopicID {
		return ErrGeneralUndeletable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.topics[id]
	if !ok {
		return ErrNotFound
	}

	delete(s.topics, id)
	if err := s.persistLocked(); err != nil {
		s.topics[id] = prior
		return err
	}
	return nil
}

func (s *FileStore) persistLocked() error {
	doc := document{Topics: s.topics}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(s.path, data, 0o644)
}
