package authstate

import (
	"context"
	"time"
)

// Store defines the interface for authorization state persistence.
type Store interface {
	// Create stores a new state record.
	Create(ctx context.Context, state *State) error

	// Consume atomically looks up a state record by its token and deletes
	// it. Two concurrent calls for the same token must resolve to exactly
	// one record and one ErrStateNotFound.
	Consume(ctx context.Context, token string) (*State, error)

	// DeleteOlderThan removes state records created before the cutoff and
	// reports how many were removed. Implementations with native TTL
	// expiry may report zero.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
