package oidc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaohanzhen/cnoauth/authstate"
	"github.com/liaohanzhen/cnoauth/oidc"
)

func newTestClient(t *testing.T, states authstate.Store, opts ...oidc.Option) *oidc.Client {
	t.Helper()
	client := oidc.NewClient(states, opts...)
	client.SetCredentials("app-1", "secret-1", "https://moodle.example.com/auth/cnoauth/", "", "")
	return client
}

func TestClient_SetEndpoints(t *testing.T) {
	client := newTestClient(t, authstate.NewMemoryStore())

	t.Run("accepts clean absolute urls", func(t *testing.T) {
		err := client.SetEndpoints(map[string]string{
			oidc.EndpointAuth:  "https://idp.example.com/oauth2/authorize",
			oidc.EndpointToken: "https://idp.example.com/oauth2/token",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://idp.example.com/oauth2/token", client.Endpoint(oidc.EndpointToken))
	})

	t.Run("rejects relative url", func(t *testing.T) {
		err := client.SetEndpoints(map[string]string{oidc.EndpointAuth: "/oauth2/authorize"})
		assert.ErrorIs(t, err, oidc.ErrInvalidEndpoint)
	})

	t.Run("rejects url with embedded whitespace", func(t *testing.T) {
		err := client.SetEndpoints(map[string]string{oidc.EndpointAuth: "https://idp.example.com/a b"})
		assert.ErrorIs(t, err, oidc.ErrInvalidEndpoint)
	})
}

func TestClient_AuthorizationURL(t *testing.T) {
	ctx := context.Background()

	t.Run("requires credentials", func(t *testing.T) {
		client := oidc.NewClient(authstate.NewMemoryStore())
		_, err := client.AuthorizationURL(ctx, oidc.AuthRequest{})
		assert.ErrorIs(t, err, oidc.ErrMissingCredentials)
	})

	t.Run("requires auth endpoint", func(t *testing.T) {
		client := newTestClient(t, authstate.NewMemoryStore())
		_, err := client.AuthorizationURL(ctx, oidc.AuthRequest{})
		assert.ErrorIs(t, err, oidc.ErrMissingEndpoint)
	})

	t.Run("builds redirect url and persists state", func(t *testing.T) {
		states := authstate.NewMemoryStore()
		client := newTestClient(t, states, oidc.WithDomainHint("example.com"))
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointAuth: "https://idp.example.com/oauth2/authorize",
		}))

		redirect, err := client.AuthorizationURL(ctx, oidc.AuthRequest{
			PromptLogin: true,
			SessionKey:  "sess-1",
			StateParams: map[string]any{"forceflow": "authcode"},
		})
		require.NoError(t, err)

		parsed, err := url.Parse(redirect)
		require.NoError(t, err)
		query := parsed.Query()
		assert.Equal(t, "code", query.Get("response_type"))
		assert.Equal(t, "app-1", query.Get("appid"))
		assert.Equal(t, "openid profile email", query.Get("scope"))
		assert.Equal(t, "form_post", query.Get("response_mode"))
		assert.Equal(t, "https://graph.microsoft.com", query.Get("resource"))
		assert.Equal(t, "login", query.Get("prompt"))
		assert.Equal(t, "example.com", query.Get("domain_hint"))
		assert.True(t, strings.HasPrefix(query.Get("nonce"), "N"))
		assert.GreaterOrEqual(t, len(query.Get("state")), 15)

		// The state must be stored, bound to session and nonce, carrying
		// the resume params.
		stored, err := states.Consume(ctx, query.Get("state"))
		require.NoError(t, err)
		assert.Equal(t, "sess-1", stored.SessionKey)
		assert.Equal(t, query.Get("nonce"), stored.Nonce)
		assert.Equal(t, "authcode", stored.GetString("forceflow"))
	})

	t.Run("extra params override defaults", func(t *testing.T) {
		client := newTestClient(t, authstate.NewMemoryStore())
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointAuth: "https://idp.example.com/oauth2/authorize",
		}))

		redirect, err := client.AuthorizationURL(ctx, oidc.AuthRequest{
			ExtraParams: url.Values{"prompt": {"admin_consent"}},
		})
		require.NoError(t, err)

		parsed, err := url.Parse(redirect)
		require.NoError(t, err)
		assert.Equal(t, "admin_consent", parsed.Query().Get("prompt"))
	})
}

// newProviderStub serves /token and /userinfo with canned JSON bodies.
func newProviderStub(t *testing.T, tokenBody, userInfoBody map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "app-1", r.PostForm.Get("appid"))
		assert.Equal(t, "secret-1", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tokenBody))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a", r.PostForm.Get("access_token"))
		assert.Equal(t, "o1", r.PostForm.Get("openid"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(userInfoBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("requires token endpoint", func(t *testing.T) {
		client := newTestClient(t, authstate.NewMemoryStore())
		_, err := client.ExchangeCode(ctx, "c1")
		assert.ErrorIs(t, err, oidc.ErrMissingEndpoint)
	})

	t.Run("merges userinfo into response", func(t *testing.T) {
		srv := newProviderStub(t,
			map[string]any{"access_token": "a", "openid": "o1", "expires_in": 3600},
			map[string]any{"unionid": "u1", "given_name": "Li"},
		)
		client := newTestClient(t, authstate.NewMemoryStore())
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken:    srv.URL + "/token",
			oidc.EndpointUserInfo: srv.URL + "/userinfo",
		}))

		resp, err := client.ExchangeCode(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "a", resp.AccessToken)
		assert.Equal(t, "o1", resp.OpenID)
		assert.Equal(t, "u1", resp.Subject())
		assert.Equal(t, "Li", resp.UserInfo["given_name"])

		now := time.Now()
		expiry := resp.ExpiryTime(now)
		assert.WithinDuration(t, now.Add(time.Hour), expiry, time.Second)
	})

	t.Run("provider error carries description", func(t *testing.T) {
		srv := newProviderStub(t,
			map[string]any{"error": "invalid_grant", "error_description": "bad code"},
			nil,
		)
		client := newTestClient(t, authstate.NewMemoryStore())
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken:    srv.URL + "/token",
			oidc.EndpointUserInfo: srv.URL + "/userinfo",
		}))

		_, err := client.ExchangeCode(ctx, "c1")
		var perr *oidc.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "invalid_grant", perr.Code)
		assert.Equal(t, "bad code", perr.Description)
	})

	t.Run("non-json body is a provider error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>gateway timeout</html>"))
		}))
		t.Cleanup(srv.Close)

		client := newTestClient(t, authstate.NewMemoryStore())
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken:    srv.URL + "/token",
			oidc.EndpointUserInfo: srv.URL + "/userinfo",
		}))

		_, err := client.ExchangeCode(ctx, "c1")
		var perr *oidc.ProviderError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("missing userinfo is malformed", func(t *testing.T) {
		srv := newProviderStub(t,
			map[string]any{"access_token": "a", "openid": "o1"},
			map[string]any{},
		)
		client := newTestClient(t, authstate.NewMemoryStore())
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken:    srv.URL + "/token",
			oidc.EndpointUserInfo: srv.URL + "/userinfo",
		}))

		_, err := client.ExchangeCode(ctx, "c1")
		var perr *oidc.ProviderError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestClient_ExchangeCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses plain http token endpoint", func(t *testing.T) {
		client := newTestClient(t, authstate.NewMemoryStore())
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken: "http://idp.example.com/oauth2/token",
		}))

		_, err := client.ExchangeCredentials(ctx, "alice", "hunter2")
		assert.ErrorIs(t, err, oidc.ErrInsecureEndpoint)
	})

	t.Run("password grant returns merged profile", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			assert.Equal(t, "alice", r.PostForm.Get("username"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"access_token": "a",
				"token_type": "Bearer",
				"openid": "o1",
				"expires_in": 3600,
				"user_info": {"unionid": "u1"}
			}`))
		}))
		t.Cleanup(srv.Close)

		client := newTestClient(t, authstate.NewMemoryStore(), oidc.WithHTTPClient(srv.Client()))
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken: srv.URL,
		}))

		resp, err := client.ExchangeCredentials(ctx, "alice", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, "u1", resp.Subject())
	})

	t.Run("missing token_type is malformed", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "a", "user_info": {"unionid": "u1"}}`))
		}))
		t.Cleanup(srv.Close)

		client := newTestClient(t, authstate.NewMemoryStore(), oidc.WithHTTPClient(srv.Client()))
		require.NoError(t, client.SetEndpoints(map[string]string{
			oidc.EndpointToken: srv.URL,
		}))

		_, err := client.ExchangeCredentials(ctx, "alice", "hunter2")
		assert.ErrorIs(t, err, oidc.ErrMalformedResponse)
	})
}
