package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daeguwebtoon/chatcore/types"
)

// RedisStore provides a Redis-backed implementation of the Store interface.
// Sessions are stored as JSON values with a key TTL, so expiry is handled by
// Redis itself and Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for sessions. Default is 24 hours.
// Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "daeguchat".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed session store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(24*time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		prefix: "daeguchat",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

// GetOrCreate returns the session for id, creating it if absent.
func (s *RedisStore) GetOrCreate(ctx context.Context, id, nameHint string) (*types.Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		sess = newSession(id, nameHint, time.Now())
		if err := s.Save(ctx, sess); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if err != nil {
		return nil, err
	}

	if nameHint != "" && sess.UserName == "" {
		sess.UserName = nameHint
		if err := s.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Get retrieves a session by ID from Redis.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Save persists a session to Redis with the configured TTL.
func (s *RedisStore) Save(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidID
	}

	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes a session. Missing keys are a no-op.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := s.client.Del(ctx, s.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// TerminateAll marks every stored session terminated.
func (s *RedisStore) TerminateAll(ctx context.Context) (int, error) {
	ids, err := s.scanIDs(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // expired between scan and get
		}
		if err != nil {
			return n, err
		}
		if sess.Terminated {
			continue
		}
		sess.Terminated = true
		sess.Stage = types.StageTerminated
		if err := s.Save(ctx, sess); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Sweep is a no-op: Redis key TTLs expire sessions natively.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Stats reports session counts.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	ids, err := s.scanIDs(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{}
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return st, err
		}
		st.Total++
		if sess.Terminated {
			st.Terminated++
		} else {
			st.Active++
		}
	}
	return st, nil
}

// scanIDs lists session IDs under the store prefix.
func (s *RedisStore) scanIDs(ctx context.Context) ([]string, error) {
	pattern := s.prefix + ":session:*"
	var ids []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(s.prefix+":session:"):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}
