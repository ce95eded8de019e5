package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/liaohanzhen/cnoauth/authstate"
	"github.com/liaohanzhen/cnoauth/binder"
	"github.com/liaohanzhen/cnoauth/oidc"
)

// State param keys used to resume the flow when the provider response
// arrives.
const (
	paramForceFlow = "forceflow"
	paramJustAuth  = "justauth"
	paramWantsURL  = "wantsurl"
)

// Service drives the login flow state machine: fresh attempts become
// authorization redirects, provider responses are validated, exchanged and
// resolved into local login outcomes.
type Service struct {
	cfg      Config
	client   *oidc.Client
	states   authstate.Store
	binder   *binder.Binder
	sessions SessionManager
	verifier *oidc.IDTokenVerifier
	log      *slog.Logger

	// onAuthenticated fires for justauth attempts after the provider
	// vouched for the identity.
	onAuthenticated func(ctx context.Context, subject string, token *oidc.TokenResponse)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithIDTokenVerifier enables id_token signature verification on every
// exchange that returns one.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

// WithOnAuthenticated registers the callback fired for successful justauth
// attempts.
func WithOnAuthenticated(fn func(ctx context.Context, subject string, token *oidc.TokenResponse)) Option {
	return func(s *Service) {
		s.onAuthenticated = fn
	}
}

// NewService wires the flow together and pushes the configured credentials
// and endpoints into the provider client.
func NewService(cfg Config, client *oidc.Client, states authstate.Store, b *binder.Binder, sessions SessionManager, opts ...Option) (*Service, error) {
	if cfg.Variant != VariantAuthCode && cfg.Variant != VariantROCreds {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVariant, cfg.Variant)
	}

	client.SetCredentials(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, cfg.TokenResource, cfg.Scope)
	endpoints := make(map[string]string)
	if cfg.AuthEndpoint != "" {
		endpoints[oidc.EndpointAuth] = cfg.AuthEndpoint
	}
	if cfg.TokenEndpoint != "" {
		endpoints[oidc.EndpointToken] = cfg.TokenEndpoint
	}
	if cfg.UserInfoEndpoint != "" {
		endpoints[oidc.EndpointUserInfo] = cfg.UserInfoEndpoint
	}
	if err := client.SetEndpoints(endpoints); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		client:   client,
		states:   states,
		binder:   b,
		sessions: sessions,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartRequest is a fresh login attempt.
type StartRequest struct {
	// SessionKey ties the issued state to the caller's session.
	SessionKey string
	// Authenticated reports whether the session is already logged in.
	Authenticated bool
	// WantsURL is the destination to resume after login.
	WantsURL string
	// ReAuth forces a trip to the provider with a login prompt even for
	// authenticated sessions.
	ReAuth bool
	// JustAuth requests provider authentication without account linking.
	JustAuth bool
}

// ResponseParams are the sanitized parameters of a provider response.
type ResponseParams struct {
	State            string
	Code             string
	ErrorDescription string
}

// Start handles a fresh login attempt. Already-authenticated sessions are
// sent straight to their destination unless re-auth or force-redirect asks
// otherwise; everyone else gets an authorization redirect.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Result, error) {
	if req.Authenticated && !req.ReAuth && !s.cfg.ForceRedirect {
		return &Result{Outcome: OutcomeLoggedIn, RedirectURL: s.resumeURL(req.WantsURL)}, nil
	}

	redirect, err := s.client.AuthorizationURL(ctx, oidc.AuthRequest{
		PromptLogin: req.ReAuth,
		SessionKey:  req.SessionKey,
		StateParams: map[string]any{
			paramForceFlow: s.cfg.Variant,
			paramJustAuth:  req.JustAuth,
			paramWantsURL:  req.WantsURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeAuthorizationRedirect, RedirectURL: redirect}, nil
}

// HandleResponse runs the response-handling transition. Every failure is
// terminal for the request; the caller redisplays a generic message and a
// fresh attempt starts the flow over.
func (s *Service) HandleResponse(ctx context.Context, params ResponseParams) (*Result, error) {
	if params.ErrorDescription != "" {
		return nil, fmt.Errorf("%w: %s", ErrAuthorization, params.ErrorDescription)
	}
	if params.Code == "" {
		return nil, ErrNoAuthCode
	}
	if params.State == "" {
		return nil, ErrUnknownState
	}

	// Single-use consume: expired, replayed and concurrent duplicates all
	// land here as not-found.
	state, err := s.states.Consume(ctx, params.State)
	if err != nil {
		if errors.Is(err, authstate.ErrStateNotFound) {
			return nil, ErrUnknownState
		}
		return nil, err
	}

	resp, err := s.client.ExchangeCode(ctx, params.Code)
	if err != nil {
		return nil, err
	}

	if resp.IDToken != "" {
		if s.verifier == nil {
			s.log.WarnContext(ctx, "id_token present but no verifier configured, skipping signature check")
		} else if _, err := s.verifier.Verify(resp.IDToken, state.Nonce); err != nil {
			return nil, err
		}
	}

	subject := resp.Subject()
	if subject == "" {
		return nil, ErrNoUserInfo
	}

	if state.GetBool(paramJustAuth) {
		if s.onAuthenticated != nil {
			s.onAuthenticated(ctx, subject, resp)
		}
		return &Result{Outcome: OutcomeAuthenticatedOnly}, nil
	}

	resolution, err := s.binder.Resolve(ctx, params.Code, resp)
	if err != nil {
		return nil, err
	}
	switch resolution.Status {
	case binder.StatusLoggedIn:
		return &Result{
			Outcome:     OutcomeLoggedIn,
			RedirectURL: s.resumeURL(state.GetString(paramWantsURL)),
			Token:       resolution.Token,
			Account:     resolution.Account,
		}, nil
	default:
		return &Result{
			Outcome:     OutcomeNeedsBinding,
			RedirectURL: s.cfg.BindingPath,
			Token:       resolution.Token,
		}, nil
	}
}

// Bind completes a pending binding with local credentials and returns the
// logged-in result.
func (s *Service) Bind(ctx context.Context, subject, username, password string) (*Result, error) {
	resolution, err := s.binder.Bind(ctx, subject, username, password)
	if err != nil {
		return nil, err
	}
	return &Result{
		Outcome:     OutcomeLoggedIn,
		RedirectURL: s.cfg.SuccessPath,
		Token:       resolution.Token,
		Account:     resolution.Account,
	}, nil
}

// Authenticate implements the resource-owner credentials variant: the
// username/password pair is verified by the provider, the link token is
// created or refreshed, and success is reported. It never binds accounts.
// Credentials the provider rejects yield (false, nil); infrastructure
// failures return the error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	if s.cfg.Variant != VariantROCreds {
		return false, fmt.Errorf("%w: authenticate requires %s", ErrUnsupportedVariant, VariantROCreds)
	}

	resp, err := s.client.ExchangeCredentials(ctx, username, password)
	if err != nil {
		var perr *oidc.ProviderError
		if errors.As(err, &perr) {
			s.debugf(ctx, "provider rejected credentials", "username", username, "error", perr)
			return false, nil
		}
		return false, err
	}
	if resp.TokenType != "Bearer" {
		return false, fmt.Errorf("%w: unexpected token type %q", oidc.ErrMalformedResponse, resp.TokenType)
	}

	if _, err := s.binder.Resolve(ctx, "", resp); err != nil {
		// Token bookkeeping failed but the provider accepted the
		// credentials; treat as login failure to stay conservative.
		return false, err
	}
	return true, nil
}

func (s *Service) resumeURL(wantsURL string) string {
	if wantsURL != "" {
		return wantsURL
	}
	return s.cfg.SuccessPath
}

// debugf logs failure detail only when debug mode is on; production logins
// fail silently beyond the generic message.
func (s *Service) debugf(ctx context.Context, msg string, args ...any) {
	if s.cfg.Debug {
		s.log.DebugContext(ctx, msg, args...)
	}
}
