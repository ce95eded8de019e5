package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/liaohanzhen/cnoauth/linktoken"
	"github.com/liaohanzhen/cnoauth/oidc"
)

// maxResolvePasses bounds the resolve loop. Each retry handles exactly one
// race (lost create, orphaned binding), so two extra passes are enough.
const maxResolvePasses = 3

// Status is the outcome of resolving an external identity.
type Status int

const (
	// StatusNeedsBinding means the identity authenticated at the provider
	// but is not yet linked to a local account.
	StatusNeedsBinding Status = iota + 1
	// StatusLoggedIn means the identity maps to a live local account.
	StatusLoggedIn
)

// Resolution is the result of Resolve or Bind: the refreshed token, and the
// local account when the token is bound.
type Resolution struct {
	Status  Status
	Token   *linktoken.Token
	Account *Account
}

// Binder maps external identities onto local accounts. It owns the token
// lifecycle around login: creating unbound tokens on first contact,
// refreshing token material on every successful exchange, healing bindings
// whose account has disappeared, and enforcing that a subject binds to at
// most one account.
type Binder struct {
	tokens    linktoken.Store
	directory Directory
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Binder) {
		if log != nil {
			b.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Binder) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Binder over a token store and an account directory.
func New(tokens linktoken.Store, directory Directory, opts ...Option) *Binder {
	b := &Binder{
		tokens:    tokens,
		directory: directory,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolve takes a successful token exchange and decides what it means
// locally. Unknown subjects get a fresh unbound token and NeedsBinding;
// known unbound subjects get their token refreshed and NeedsBinding; bound
// subjects whose account still exists get a refresh, a username sync and
// LoggedIn. A binding whose account has been deleted is discarded and the
// subject starts over as unknown.
func (b *Binder) Resolve(ctx context.Context, authCode string, resp *oidc.TokenResponse) (*Resolution, error) {
	subject := resp.Subject()
	if subject == "" {
		return nil, ErrMissingSubject
	}

	var lastErr error
	for pass := 0; pass < maxResolvePasses; pass++ {
		token, err := b.tokens.FindBySubject(ctx, subject)
		if errors.Is(err, linktoken.ErrTokenNotFound) {
			fresh := linktoken.New(subject)
			b.applyResponse(fresh, authCode, resp)
			if err := b.tokens.Create(ctx, fresh); err != nil {
				if errors.Is(err, linktoken.ErrDuplicateSubject) {
					// Lost a concurrent first-login race; re-read the
					// winner's token.
					lastErr = err
					continue
				}
				return nil, err
			}
			return &Resolution{Status: StatusNeedsBinding, Token: fresh}, nil
		}
		if err != nil {
			return nil, err
		}

		b.applyResponse(token, authCode, resp)

		if !token.IsBound() {
			if err := b.tokens.Update(ctx, token); err != nil {
				return nil, err
			}
			return &Resolution{Status: StatusNeedsBinding, Token: token}, nil
		}

		account, err := b.directory.FindByID(ctx, token.UserID)
		if errors.Is(err, ErrAccountNotFound) {
			b.log.InfoContext(ctx, "discarding token bound to missing account",
				"subject", subject,
				"user_id", token.UserID,
			)
			if err := b.tokens.Delete(ctx, token.ID); err != nil {
				return nil, err
			}
			lastErr = ErrAccountNotFound
			continue
		}
		if err != nil {
			return nil, err
		}

		// Username can drift when the account is renamed; resync the
		// snapshot on every login.
		token.Username = account.Username
		if err := b.tokens.Update(ctx, token); err != nil {
			return nil, err
		}
		return &Resolution{Status: StatusLoggedIn, Token: token, Account: account}, nil
	}
	return nil, fmt.Errorf("%w: gave up after %d passes: %v", ErrUnresolved, maxResolvePasses, lastErr)
}

// Bind links the subject's token to the local account identified by
// username/password. The password proves account ownership; it is verified
// and discarded, never stored. Fails with ErrAlreadyBound when the subject
// is already linked to a different account.
func (b *Binder) Bind(ctx context.Context, subject, username, password string) (*Resolution, error) {
	account, err := b.directory.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	bound, err := b.tokens.CountBoundElsewhere(ctx, subject, account.ID)
	if err != nil {
		return nil, err
	}
	if bound > 0 {
		return nil, ErrAlreadyBound
	}

	if err := b.tokens.Bind(ctx, subject, account.ID, account.Username); err != nil {
		return nil, err
	}

	token, err := b.tokens.FindBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	b.log.InfoContext(ctx, "external identity bound",
		"subject", subject,
		"user_id", account.ID,
		"username", account.Username,
	)
	return &Resolution{Status: StatusLoggedIn, Token: token, Account: account}, nil
}

// SyncUsername re-snapshots the username on the account's bound token when
// it no longer matches the directory record. A missing token is not an
// error; the account may simply have no external identity.
func (b *Binder) SyncUsername(ctx context.Context, account *Account) error {
	token, err := b.tokens.FindByUserID(ctx, account.ID)
	if errors.Is(err, linktoken.ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if token.Username == account.Username {
		return nil
	}
	token.Username = account.Username
	return b.tokens.Update(ctx, token)
}

// Unbind detaches the subject's token from its account by deleting the
// token. The next provider login starts a fresh binding.
func (b *Binder) Unbind(ctx context.Context, subject string) error {
	token, err := b.tokens.FindBySubject(ctx, subject)
	if err != nil {
		return err
	}
	return b.tokens.Delete(ctx, token.ID)
}

// applyResponse copies the exchange result onto the token record.
func (b *Binder) applyResponse(token *linktoken.Token, authCode string, resp *oidc.TokenResponse) {
	now := b.now()
	token.Scope = resp.Scope
	token.AuthCode = authCode
	token.AccessToken = resp.AccessToken
	token.RefreshToken = resp.RefreshToken
	token.ExpiresAt = resp.ExpiryTime(now)
	token.UserInfo = resp.UserInfo
	token.UpdatedAt = now
}
