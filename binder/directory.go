package binder

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Account is a local user account as seen by the login flow.
type Account struct {
	ID       int64
	Username string
	// AuthMethod names the account's auth backend. Only accounts on the
	// external-login method participate in binding.
	AuthMethod string
}

// Directory is the local account backend the binder resolves against.
// Implementations wrap whatever user store the host application has.
type Directory interface {
	// FindByID looks up an account by its numeric id. Returns
	// ErrAccountNotFound when the account does not exist or is deleted.
	FindByID(ctx context.Context, id int64) (*Account, error)

	// FindByUsername looks up an account by username.
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// Authenticate verifies a username/password pair and returns the
	// account. Returns ErrInvalidCredentials on mismatch.
	Authenticate(ctx context.Context, username, password string) (*Account, error)
}

// MemoryDirectory is an in-memory Directory with bcrypt password hashes.
// Intended for tests and small single-node deployments.
type MemoryDirectory struct {
	mu     sync.RWMutex
	byID   map[int64]*Account
	byName map[string]*Account
	hashes map[int64][]byte
	nextID int64
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:   make(map[int64]*Account),
		byName: make(map[string]*Account),
		hashes: make(map[int64][]byte),
	}
}

// AddAccount registers an account with a bcrypt-hashed password and returns
// its assigned id.
func (d *MemoryDirectory) AddAccount(username, password, authMethod string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	account := &Account{ID: d.nextID, Username: username, AuthMethod: authMethod}
	d.byID[account.ID] = account
	d.byName[username] = account
	d.hashes[account.ID] = hash
	return account.ID, nil
}

// RemoveAccount deletes an account, leaving any bound tokens orphaned.
func (d *MemoryDirectory) RemoveAccount(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if account, ok := d.byID[id]; ok {
		delete(d.byName, account.Username)
		delete(d.byID, id)
		delete(d.hashes, id)
	}
}

// RenameAccount changes an account's username.
func (d *MemoryDirectory) RenameAccount(id int64, username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	account, ok := d.byID[id]
	if !ok {
		return
	}
	delete(d.byName, account.Username)
	account.Username = username
	d.byName[username] = account
}

// FindByID implements Directory.
func (d *MemoryDirectory) FindByID(_ context.Context, id int64) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, ok := d.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	accountCopy := *account
	return &accountCopy, nil
}

// FindByUsername implements Directory.
func (d *MemoryDirectory) FindByUsername(_ context.Context, username string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, ok := d.byName[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	accountCopy := *account
	return &accountCopy, nil
}

// Authenticate implements Directory.
func (d *MemoryDirectory) Authenticate(_ context.Context, username, password string) (*Account, error) {
	d.mu.RLock()
	account, ok := d.byName[username]
	var hash []byte
	if ok {
		hash = d.hashes[account.ID]
	}
	d.mu.RUnlock()

	if !ok {
		// Burn a comparison anyway so a missing username costs the same as
		// a wrong password.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	accountCopy := *account
	return &accountCopy, nil
}

var dummyHash = func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("cnoauth-dummy"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}()
