package linktoken

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using in-memory storage, keyed by subject.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewMemoryStore creates a new in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*Token),
	}
}

func (m *MemoryStore) Create(ctx context.Context, token *Token) error {
	if token == nil || token.Subject == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[token.Subject]; exists {
		return ErrDuplicateSubject
	}

	m.tokens[token.Subject] = token.Clone()
	return nil
}

func (m *MemoryStore) FindBySubject(ctx context.Context, subject string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, exists := m.tokens[subject]
	if !exists {
		return nil, ErrTokenNotFound
	}
	return token.Clone(), nil
}

func (m *MemoryStore) FindByUserID(ctx context.Context, userID int64) (*Token, error) {
	if userID == 0 {
		return nil, ErrTokenNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range m.tokens {
		if token.UserID == userID {
			return token.Clone(), nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *MemoryStore) FindByUsername(ctx context.Context, username string) (*Token, error) {
	if username == "" {
		return nil, ErrTokenNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range m.tokens {
		if token.Username == username {
			return token.Clone(), nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *MemoryStore) Update(ctx context.Context, token *Token) error {
	if token == nil || token.Subject == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[token.Subject]; !exists {
		return ErrTokenNotFound
	}

	updated := token.Clone()
	updated.UpdatedAt = time.Now()
	m.tokens[token.Subject] = updated
	return nil
}

func (m *MemoryStore) Bind(ctx context.Context, subject string, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, exists := m.tokens[subject]
	if !exists {
		return ErrTokenNotFound
	}

	token.UserID = userID
	token.Username = username
	token.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CountBoundElsewhere(ctx context.Context, subject string, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, token := range m.tokens {
		if token.Subject == subject && token.UserID != 0 && token.UserID != userID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for subject, token := range m.tokens {
		if token.ID == id {
			delete(m.tokens, subject)
			return nil
		}
	}
	return ErrTokenNotFound
}

func (m *MemoryStore) DeleteUnbound(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for subject, token := range m.tokens {
		if token.UserID == 0 {
			delete(m.tokens, subject)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) ListUnbound(ctx context.Context) ([]Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Token
	for _, token := range m.tokens {
		if token.UserID == 0 {
			out = append(out, *token.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) ListBound(ctx context.Context) ([]Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Token
	for _, token := range m.tokens {
		if token.UserID != 0 {
			out = append(out, *token.Clone())
		}
	}
	return out, nil
}
