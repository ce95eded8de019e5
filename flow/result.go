package flow

import (
	"github.com/liaohanzhen/cnoauth/binder"
	"github.com/liaohanzhen/cnoauth/linktoken"
)

// Outcome classifies how a login attempt ended.
type Outcome int

const (
	// OutcomeAuthorizationRedirect means the caller must redirect the
	// browser to the provider.
	OutcomeAuthorizationRedirect Outcome = iota + 1
	// OutcomeLoggedIn means the external identity mapped to a local account.
	OutcomeLoggedIn
	// OutcomeNeedsBinding means the identity authenticated but must still be
	// linked to a local account.
	OutcomeNeedsBinding
	// OutcomeAuthenticatedOnly means a justauth attempt succeeded: the
	// provider vouched for the identity and no account linking happens.
	OutcomeAuthenticatedOnly
)

// Result is the terminal value of a redirect round.
type Result struct {
	Outcome Outcome

	// RedirectURL is where to send the browser next: the provider for
	// AuthorizationRedirect, the binding page for NeedsBinding, the resume
	// or success URL for LoggedIn. Empty for AuthenticatedOnly.
	RedirectURL string

	Token   *linktoken.Token
	Account *binder.Account
}
