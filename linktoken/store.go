package linktoken

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for link token persistence.
//
// Subject is unique per store: concurrent first logins for the same external
// identity race on Create, the loser receives ErrDuplicateSubject and should
// re-read instead of inserting twice.
type Store interface {
	// Create stores a new token. Fails with ErrDuplicateSubject when a
	// token for the same subject already exists.
	Create(ctx context.Context, token *Token) error

	// FindBySubject retrieves the token for an external identity.
	FindBySubject(ctx context.Context, subject string) (*Token, error)

	// FindByUserID retrieves the token bound to a local account.
	FindByUserID(ctx context.Context, userID int64) (*Token, error)

	// FindByUsername retrieves the token by its local username snapshot.
	FindByUsername(ctx context.Context, username string) (*Token, error)

	// Update persists new token data (auth code, access token, expiry,
	// userinfo) after a successful exchange.
	Update(ctx context.Context, token *Token) error

	// Bind links the subject's token to a local account and snapshots the
	// username.
	Bind(ctx context.Context, subject string, userID int64, username string) error

	// CountBoundElsewhere counts tokens for the same subject bound to a
	// different, nonzero local account. Used to enforce the one-account
	// binding rule.
	CountBoundElsewhere(ctx context.Context, subject string, userID int64) (int64, error)

	// Delete removes a token by id.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteUnbound removes all tokens with a zero user id (abandoned
	// binding attempts) and reports how many were removed.
	DeleteUnbound(ctx context.Context) (int64, error)

	// ListUnbound returns all tokens with a zero user id.
	ListUnbound(ctx context.Context) ([]Token, error)

	// ListBound returns all tokens linked to a local account.
	ListBound(ctx context.Context) ([]Token, error)
}
