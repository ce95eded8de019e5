package maintenance

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/liaohanzhen/cnoauth/binder"
	"github.com/liaohanzhen/cnoauth/linktoken"
)

// Token statuses reported by the admin surface.
const (
	StatusUnbound        = "unbound"
	StatusUsernameDrift  = "username_mismatch"
	StatusAccountMissing = "account_missing"
)

// TokenReport is one flagged token with the reason it needs attention.
type TokenReport struct {
	Token  linktoken.Token `json:"token"`
	Status string          `json:"status"`

	// DirectoryUsername is the current account username when it differs
	// from the token's snapshot.
	DirectoryUsername string `json:"directory_username,omitempty"`
}

// Service inspects the token table for records an operator should review:
// abandoned binding attempts and bindings that drifted out of sync with the
// account directory.
type Service struct {
	tokens    linktoken.Store
	directory binder.Directory
}

// NewService creates the maintenance service.
func NewService(tokens linktoken.Store, directory binder.Directory) *Service {
	return &Service{tokens: tokens, directory: directory}
}

// UnboundTokens lists tokens never linked to an account.
func (s *Service) UnboundTokens(ctx context.Context) ([]TokenReport, error) {
	tokens, err := s.tokens.ListUnbound(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]TokenReport, 0, len(tokens))
	for _, token := range tokens {
		reports = append(reports, TokenReport{Token: token, Status: StatusUnbound})
	}
	return reports, nil
}

// MismatchedTokens lists bound tokens whose username snapshot no longer
// matches the directory, or whose account has disappeared entirely.
func (s *Service) MismatchedTokens(ctx context.Context) ([]TokenReport, error) {
	tokens, err := s.tokens.ListBound(ctx)
	if err != nil {
		return nil, err
	}

	var reports []TokenReport
	for _, token := range tokens {
		account, err := s.directory.FindByID(ctx, token.UserID)
		switch {
		case errors.Is(err, binder.ErrAccountNotFound):
			reports = append(reports, TokenReport{Token: token, Status: StatusAccountMissing})
		case err != nil:
			return nil, err
		case account.Username != token.Username:
			reports = append(reports, TokenReport{
				Token:             token,
				Status:            StatusUsernameDrift,
				DirectoryUsername: account.Username,
			})
		}
	}
	return reports, nil
}

// DeleteToken removes a token by id.
func (s *Service) DeleteToken(ctx context.Context, id uuid.UUID) error {
	return s.tokens.Delete(ctx, id)
}
