// Package sessionstore provides conversation session persistence.
//
// The Store interface is deliberately small so the in-memory default can be
// swapped for the Redis-backed implementation (or any future persistent
// store) without touching the conversation engine.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/daeguwebtoon/chatcore/types"
)

// DefaultTTL is how long a session lives without being swept (24 hours).
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when a session doesn't exist in the store.
var ErrNotFound = errors.New("session not found")

// ErrInvalidID is returned when an invalid session ID is provided.
var ErrInvalidID = errors.New("invalid session ID")

// Stats summarizes the sessions currently held by a store.
type Stats struct {
	Total      int `json:"total_sessions"`
	Active     int `json:"active_sessions"`
	Terminated int `json:"terminated_sessions"`
}

// Store defines the contract for session storage.
type Store interface {
	// GetOrCreate returns the session for id, creating it with default
	// field values if absent. A non-empty nameHint backfills the user
	// name once; it never overwrites an existing name.
	GetOrCreate(ctx context.Context, id, nameHint string) (*types.Session, error)

	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*types.Session, error)

	// Save persists a session.
	Save(ctx context.Context, sess *types.Session) error

	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, id string) error

	// TerminateAll marks every stored session terminated and returns how
	// many sessions were affected.
	TerminateAll(ctx context.Context) (int, error)

	// Sweep deletes sessions older than the store's TTL and returns how
	// many were removed. Stores with native expiry may make this a no-op.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Stats reports session counts.
	Stats(ctx context.Context) (Stats, error)
}

// StartSweeper runs store.Sweep at the given interval until ctx is
// cancelled. Sweeping is housekeeping, not correctness: a failed sweep is
// logged by the caller's store implementation and retried next tick.
func StartSweeper(ctx context.Context, store Store, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				_, _ = store.Sweep(ctx, now)
			}
		}
	}()
}
