package oidc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liaohanzhen/cnoauth/authstate"
)

// Endpoint names the client understands.
const (
	EndpointAuth     = "auth"
	EndpointToken    = "token"
	EndpointUserInfo = "userinfo"
)

const (
	// DefaultTokenResource matches the provider's graph API default.
	DefaultTokenResource = "https://graph.microsoft.com"
	// DefaultScope is requested when the deployment configures none.
	DefaultScope = "openid profile email"
)

// Client talks to the identity provider: it builds authorization request
// URLs and exchanges authorization codes or resource-owner credentials for
// tokens. State persistence is delegated to an authstate.Store so the state
// issued with a redirect can be validated when the response returns.
type Client struct {
	httpClient *http.Client
	states     authstate.Store
	log        *slog.Logger
	now        func() time.Time

	clientID      string
	clientSecret  string
	redirectURI   string
	tokenResource string
	scope         string
	domainHint    string
	endpoints     map[string]string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger for debug diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDomainHint adds a domain_hint parameter to authorization requests.
func WithDomainHint(hint string) Option {
	return func(c *Client) {
		c.domainHint = hint
	}
}

// NewClient creates a provider client. Credentials and endpoints must be set
// before any request is issued.
func NewClient(states authstate.Store, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		states:     states,
		log:        slog.Default(),
		now:        time.Now,
		endpoints:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials sets the registered client details. Empty tokenResource and
// scope fall back to the provider defaults.
func (c *Client) SetCredentials(id, secret, redirectURI, tokenResource, scope string) {
	c.clientID = id
	c.clientSecret = secret
	c.redirectURI = redirectURI
	c.tokenResource = tokenResource
	if c.tokenResource == "" {
		c.tokenResource = DefaultTokenResource
	}
	c.scope = scope
	if c.scope == "" {
		c.scope = DefaultScope
	}
}

// Scope returns the configured scope.
func (c *Client) Scope() string {
	return c.scope
}

// RedirectURI returns the registered redirect URI.
func (c *Client) RedirectURI() string {
	return c.redirectURI
}

// SetEndpoints validates and stores the provider endpoint URIs by name
// (auth, token, userinfo). Each must be a clean absolute http(s) URL.
func (c *Client) SetEndpoints(endpoints map[string]string) error {
	for name, uri := range endpoints {
		parsed, err := url.Parse(uri)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("%w: %s", ErrInvalidEndpoint, name)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%w: %s", ErrInvalidEndpoint, name)
		}
		// Re-serialization must round-trip; control characters or embedded
		// whitespace would silently change the request target.
		if parsed.String() != uri {
			return fmt.Errorf("%w: %s", ErrInvalidEndpoint, name)
		}
		c.endpoints[name] = uri
	}
	return nil
}

// Endpoint returns the configured URI for a named endpoint, or "".
func (c *Client) Endpoint(name string) string {
	return c.endpoints[name]
}

// AuthRequest carries the inputs for building an authorization request.
type AuthRequest struct {
	// PromptLogin forces the provider to show its login prompt even when a
	// provider-side session exists.
	PromptLogin bool

	// SessionKey binds the issued state to the caller's session.
	SessionKey string

	// StateParams is flow-resume context stored with the state record and
	// returned on response handling.
	StateParams map[string]any

	// ExtraParams are additional query parameters; they may override the
	// defaults.
	ExtraParams url.Values
}

// AuthorizationURL persists a new single-use state record and returns the
// full provider redirect URL for the authorization-code grant.
func (c *Client) AuthorizationURL(ctx context.Context, req AuthRequest) (string, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", ErrMissingCredentials
	}
	authEndpoint := c.endpoints[EndpointAuth]
	if authEndpoint == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEndpoint, EndpointAuth)
	}

	nonce := newNonce()
	state, err := authstate.New(req.SessionKey, nonce, req.StateParams)
	if err != nil {
		return "", err
	}
	if err := c.states.Create(ctx, state); err != nil {
		return "", err
	}

	params := url.Values{
		"response_type": {"code"},
		"appid":         {c.clientID},
		"scope":         {c.scope},
		"nonce":         {nonce},
		"response_mode": {"form_post"},
		"resource":      {c.tokenResource},
		"state":         {state.State},
		"redirect_uri":  {c.redirectURI},
	}
	if req.PromptLogin {
		params.Set("prompt", "login")
	}
	if c.domainHint != "" {
		params.Set("domain_hint", c.domainHint)
	}
	for key, values := range req.ExtraParams {
		params[key] = values
	}

	redirect, err := url.Parse(authEndpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidEndpoint, EndpointAuth)
	}
	redirect.RawQuery = params.Encode()
	return redirect.String(), nil
}

// ExchangeCode exchanges an authorization code for tokens, then fetches the
// user profile from the userinfo endpoint and merges it into the response.
// A response without user info is unusable for login and fails with
// ErrMalformedResponse.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	tokenEndpoint := c.endpoints[EndpointToken]
	if tokenEndpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, EndpointToken)
	}
	userInfoEndpoint := c.endpoints[EndpointUserInfo]
	if userInfoEndpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, EndpointUserInfo)
	}

	raw, err := c.postForm(ctx, tokenEndpoint, url.Values{
		"appid":        {c.clientID},
		"secret":       {c.clientSecret},
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	})
	if err != nil {
		return nil, err
	}
	resp := tokenResponseFromMap(raw)

	userInfo, err := c.postForm(ctx, userInfoEndpoint, url.Values{
		"access_token": {resp.AccessToken},
		"openid":       {resp.OpenID},
	})
	if err != nil {
		return nil, err
	}
	resp.UserInfo = userInfo
	resp.Raw["user_info"] = userInfo

	if len(resp.UserInfo) == 0 {
		return nil, fmt.Errorf("%w: no user info in token response", ErrMalformedResponse)
	}
	return resp, nil
}

// ExchangeCredentials performs the resource-owner password credentials
// grant. This path ships a raw password to the token endpoint and therefore
// refuses non-TLS endpoints; it exists for providers without the
// browser-redirect grant.
func (c *Client) ExchangeCredentials(ctx context.Context, username, password string) (*TokenResponse, error) {
	tokenEndpoint := c.endpoints[EndpointToken]
	if tokenEndpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, EndpointToken)
	}
	if !strings.HasPrefix(tokenEndpoint, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrInsecureEndpoint, EndpointToken)
	}

	raw, err := c.postForm(ctx, tokenEndpoint, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
		"scope":      {c.scope},
		"resource":   {c.tokenResource},
		"appid":      {c.clientID},
		"secret":     {c.clientSecret},
	})
	if err != nil {
		return nil, err
	}

	resp := tokenResponseFromMap(raw)
	if resp.TokenType == "" {
		return nil, fmt.Errorf("%w: no token_type in response", ErrMalformedResponse)
	}
	userInfo, ok := raw["user_info"].(map[string]any)
	if !ok || len(userInfo) == 0 {
		return nil, fmt.Errorf("%w: no user info in token response", ErrMalformedResponse)
	}
	resp.UserInfo = userInfo
	return resp, nil
}

// postForm sends a form-encoded POST and runs the shared JSON validation on
// the body. I/O failures surface as ErrRequestFailed, provider-reported
// failures as *ProviderError.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	result, err := decodeJSONResponse(body, httpResp.StatusCode)
	if err != nil {
		c.log.DebugContext(ctx, "provider call failed",
			"caller", "oidc.Client.postForm",
			"endpoint", endpoint,
			"status", httpResp.StatusCode,
			"error", err,
		)
		return nil, err
	}
	return result, nil
}

// newNonce mirrors the provider contract's nonce shape: an "N" prefix
// followed by a unique suffix.
func newNonce() string {
	return "N" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
