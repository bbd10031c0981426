package sessionstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/daeguwebtoon/chatcore/types"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and suitable for development, testing, and
// single-instance deployments. For distributed deployments use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL sets the session time-to-live enforced by Sweep.
// Default is 24 hours. Zero disables expiry.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*types.Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newSession builds a session with default field values.
func newSession(id, nameHint string, now time.Time) *types.Session {
	return &types.Session{
		ID:                  id,
		Stage:               types.StageGreeting,
		UserName:            nameHint,
		LastSuggestionIndex: -1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// GetOrCreate returns the session for id, creating it if absent. A name
// hint backfills a missing user name exactly once.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id, nameHint string) (*types.Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, nameHint, s.now())
		s.sessions[id] = sess
		return copySession(sess), nil
	}
	if nameHint != "" && sess.UserName == "" {
		sess.UserName = nameHint
	}
	sess.UpdatedAt = s.now()
	return copySession(sess), nil
}

// Get retrieves a session by ID.
// Returns a deep copy to prevent external mutations.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

// Save persists a session. Existing sessions are replaced.
func (s *MemoryStore) Save(ctx context.Context, sess *types.Session) error {
	if sess == nil {
		return ErrInvalidID
	}
	if sess.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copySession(sess)
	stored.UpdatedAt = s.now()
	s.sessions[sess.ID] = stored
	return nil
}

// Delete removes a session. Missing IDs are a no-op so the expiry sweep and
// concurrent resets never race into errors.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// TerminateAll marks every stored session terminated.
func (s *MemoryStore) TerminateAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		if !sess.Terminated {
			sess.Terminated = true
			sess.Stage = types.StageTerminated
			n++
		}
	}
	return n, nil
}

// Sweep deletes all sessions older than the TTL.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.CreatedAt) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Stats reports session counts.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.sessions)}
	for _, sess := range s.sessions {
		if sess.Terminated {
			st.Terminated++
		} else {
			st.Active++
		}
	}
	return st, nil
}

// copySession creates a deep copy of a session.
func copySession(sess *types.Session) *types.Session {
	if sess == nil {
		return nil
	}

	// JSON round-trip for a simple, reliable deep copy.
	data, err := json.Marshal(sess)
	if err != nil {
		return nil
	}
	var out types.Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}
