package flow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaohanzhen/cnoauth/authstate"
	"github.com/liaohanzhen/cnoauth/binder"
	"github.com/liaohanzhen/cnoauth/flow"
	"github.com/liaohanzhen/cnoauth/linktoken"
	"github.com/liaohanzhen/cnoauth/oidc"
)

// newProvider stubs the identity provider: code "good" exchanges cleanly,
// anything else is rejected with invalid_grant.
func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good" {
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a","openid":"o1","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unionid":"u1","given_name":"Li"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type env struct {
	service  *flow.Service
	states   *authstate.MemoryStore
	tokens   *linktoken.MemoryStore
	sessions *flow.MemorySessions
	dir      *binder.MemoryDirectory
}

func newEnv(t *testing.T, providerURL string, opts ...flow.Option) *env {
	t.Helper()
	e := &env{
		states:   authstate.NewMemoryStore(),
		tokens:   linktoken.NewMemoryStore(),
		sessions: flow.NewMemorySessions(),
		dir:      binder.NewMemoryDirectory(),
	}
	cfg := flow.Config{
		ClientID:         "app-1",
		ClientSecret:     "secret-1",
		AuthEndpoint:     providerURL + "/authorize",
		TokenEndpoint:    providerURL + "/token",
		UserInfoEndpoint: providerURL + "/userinfo",
		RedirectURI:      "https://moodle.example.com/auth/cnoauth/",
		Variant:          flow.VariantAuthCode,
		StateTTL:         5 * time.Minute,
		BindingPath:      "/bind-account",
		SuccessPath:      "/home",
	}
	client := oidc.NewClient(e.states)
	service, err := flow.NewService(cfg, client, e.states, binder.New(e.tokens, e.dir), e.sessions, opts...)
	require.NoError(t, err)
	e.service = service
	return e
}

// startLogin runs a fresh attempt through the handler and returns the state
// issued with the authorization redirect.
func startLogin(t *testing.T, e *env, query string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	req.Header.Set("X-Session-Key", "sess-1")
	e.service.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := redirect.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func postResponse(e *env, form url.Values) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Session-Key", "sess-1")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.PostForm = form
	e.service.Router().ServeHTTP(rec, req)
	return rec
}

func TestService_NewService(t *testing.T) {
	t.Run("rejects unknown variant", func(t *testing.T) {
		cfg := flow.Config{Variant: "implicit"}
		_, err := flow.NewService(cfg, oidc.NewClient(authstate.NewMemoryStore()), authstate.NewMemoryStore(), nil, flow.NewMemorySessions())
		assert.ErrorIs(t, err, flow.ErrUnsupportedVariant)
	})
}

func TestService_Start(t *testing.T) {
	srv := newProvider(t)

	t.Run("fresh attempt redirects to provider", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		state := startLogin(t, e, "")

		stored, err := e.states.Consume(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", stored.SessionKey)
		assert.Equal(t, flow.VariantAuthCode, stored.GetString("forceflow"))
	})

	t.Run("authenticated session resumes its destination", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		e.sessions.SetWantsURL("sess-1", "/course/42")
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-Key", "sess-1")
		require.NoError(t, e.sessions.CompleteLogin(rec, req, &binder.Account{ID: 1, Username: "alice"}))

		e.sessions.SetWantsURL("sess-1", "/course/42")
		rec = httptest.NewRecorder()
		e.service.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/course/42", rec.Header().Get("Location"))
	})
}

func TestService_HandleResponse(t *testing.T) {
	srv := newProvider(t)

	t.Run("first login ends in binding redirect", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		state := startLogin(t, e, "")

		rec := postResponse(e, url.Values{"state": {state}, "code": {"good"}})
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/bind-account", rec.Header().Get("Location"))

		token, err := e.tokens.FindBySubject(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, token.IsBound())
		assert.Equal(t, "Li", token.GivenName())
		assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)
	})

	t.Run("bound identity logs in and resumes", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		_, err := e.dir.AddAccount("alice", "hunter2", "cnoauth")
		require.NoError(t, err)
		state := startLogin(t, e, "")
		postResponse(e, url.Values{"state": {state}, "code": {"good"}})

		bindRec := httptest.NewRecorder()
		bindReq := httptest.NewRequest(http.MethodPost, "/bind", nil)
		bindReq.Header.Set("X-Session-Key", "sess-1")
		bindReq.PostForm = url.Values{"subject": {"u1"}, "username": {"alice"}, "password": {"hunter2"}}
		e.service.Router().ServeHTTP(bindRec, bindReq)
		require.Equal(t, http.StatusFound, bindRec.Code)
		assert.Equal(t, "/home", bindRec.Header().Get("Location"))
		require.NotNil(t, e.sessions.Account("sess-1"))
		assert.Equal(t, "alice", e.sessions.Account("sess-1").Username)

		e.sessions.SetWantsURL("sess-1", "/course/42")
		state = startLogin(t, e, "?reauth=1")
		rec := postResponse(e, url.Values{"state": {state}, "code": {"good"}})
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/course/42", rec.Header().Get("Location"))
	})

	t.Run("unknown state fails", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		rec := postResponse(e, url.Values{"state": {"s1"}, "code": {"good"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("state is single use", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		state := startLogin(t, e, "")
		first := postResponse(e, url.Values{"state": {state}, "code": {"good"}})
		require.Equal(t, http.StatusFound, first.Code)

		replay := postResponse(e, url.Values{"state": {state}, "code": {"good"}})
		assert.Equal(t, http.StatusUnauthorized, replay.Code)
	})

	t.Run("provider error_description fails", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		rec := postResponse(e, url.Values{"error_description": {"consent denied"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing code fails", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		state := startLogin(t, e, "")
		rec := postResponse(e, url.Values{"state": {state}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		_, err := e.service.HandleResponse(context.Background(), flow.ResponseParams{State: state})
		assert.ErrorIs(t, err, flow.ErrNoAuthCode)
	})

	t.Run("rejected code surfaces provider detail internally", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		state := startLogin(t, e, "")

		_, err := e.service.HandleResponse(context.Background(), flow.ResponseParams{State: state, Code: "bad"})
		var perr *oidc.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "bad code", perr.Description)
	})

	t.Run("tampered state param is rejected before lookup", func(t *testing.T) {
		e := newEnv(t, srv.URL)
		rec := postResponse(e, url.Values{"state": {"abc<script>"}, "code": {"good"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("justauth authenticates without linking", func(t *testing.T) {
		var seenSubject string
		e := newEnv(t, srv.URL, flow.WithOnAuthenticated(func(_ context.Context, subject string, _ *oidc.TokenResponse) {
			seenSubject = subject
		}))
		state := startLogin(t, e, "?justauth=1")

		rec := postResponse(e, url.Values{"state": {state}, "code": {"good"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"authenticated"}`, rec.Body.String())
		assert.Equal(t, "u1", seenSubject)

		_, err := e.tokens.FindBySubject(context.Background(), "u1")
		assert.ErrorIs(t, err, linktoken.ErrTokenNotFound)
	})
}

func TestService_Authenticate(t *testing.T) {
	t.Run("requires rocreds variant", func(t *testing.T) {
		srv := newProvider(t)
		e := newEnv(t, srv.URL)
		_, err := e.service.Authenticate(context.Background(), "alice", "hunter2")
		assert.ErrorIs(t, err, flow.ErrUnsupportedVariant)
	})

	t.Run("valid provider credentials create a token", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			w.Header().Set("Content-Type", "application/json")
			if r.PostForm.Get("password") != "hunter2" {
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"a","token_type":"Bearer","expires_in":3600,"user_info":{"unionid":"u1"}}`))
		}))
		t.Cleanup(srv.Close)

		states := authstate.NewMemoryStore()
		tokens := linktoken.NewMemoryStore()
		cfg := flow.Config{
			ClientID:      "app-1",
			ClientSecret:  "secret-1",
			TokenEndpoint: srv.URL,
			RedirectURI:   "https://moodle.example.com/auth/cnoauth/",
			Variant:       flow.VariantROCreds,
		}
		client := oidc.NewClient(states, oidc.WithHTTPClient(srv.Client()))
		service, err := flow.NewService(cfg, client, states, binder.New(tokens, binder.NewMemoryDirectory()), flow.NewMemorySessions())
		require.NoError(t, err)

		ok, err := service.Authenticate(context.Background(), "alice", "hunter2")
		require.NoError(t, err)
		assert.True(t, ok)

		token, err := tokens.FindBySubject(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, token.IsBound())

		ok, err = service.Authenticate(context.Background(), "alice", "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
