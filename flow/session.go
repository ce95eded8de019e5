package flow

import (
	"net/http"
	"sync"

	"github.com/liaohanzhen/cnoauth/binder"
)

// SessionManager is the host application's session layer. The flow never
// manages cookies itself; it asks the host whether the request is already
// authenticated, which session it belongs to, and hands over the account
// when a login completes.
type SessionManager interface {
	// IsAuthenticated reports whether the request carries a logged-in
	// session.
	IsAuthenticated(r *http.Request) bool

	// SessionKey returns a stable identifier for the request's session,
	// used to tie issued states back to the browser that started the flow.
	SessionKey(r *http.Request) string

	// WantsURL returns the destination the user originally asked for, or "".
	WantsURL(r *http.Request) string

	// CompleteLogin marks the session as authenticated for the account.
	CompleteLogin(w http.ResponseWriter, r *http.Request, account *binder.Account) error
}

// sessionHeader identifies the session in MemorySessions requests.
const sessionHeader = "X-Session-Key"

// MemorySessions is a header-keyed in-memory SessionManager for tests and
// examples. Real deployments implement SessionManager over their own
// cookie/session infrastructure.
type MemorySessions struct {
	mu       sync.RWMutex
	accounts map[string]*binder.Account
	wants    map[string]string
}

// NewMemorySessions creates an empty session table.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		accounts: make(map[string]*binder.Account),
		wants:    make(map[string]string),
	}
}

// SetWantsURL records a resume destination for a session.
func (m *MemorySessions) SetWantsURL(key, destination string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wants[key] = destination
}

// Account returns the account logged in under a session key, or nil.
func (m *MemorySessions) Account(key string) *binder.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[key]
}

func (m *MemorySessions) IsAuthenticated(r *http.Request) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[r.Header.Get(sessionHeader)] != nil
}

func (m *MemorySessions) SessionKey(r *http.Request) string {
	return r.Header.Get(sessionHeader)
}

func (m *MemorySessions) WantsURL(r *http.Request) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wants[r.Header.Get(sessionHeader)]
}

func (m *MemorySessions) CompleteLogin(_ http.ResponseWriter, r *http.Request, account *binder.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[r.Header.Get(sessionHeader)] = account
	delete(m.wants, r.Header.Get(sessionHeader))
	return nil
}
