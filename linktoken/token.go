package linktoken

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Token is the durable link between an external identity and a local
// account. Subject is the provider's stable identifier (unionid, falling
// back to openid); UserID zero means the external identity authenticated
// but was never bound to a local account — a pending state, never a valid
// login outcome.
type Token struct {
	ID           uuid.UUID      `json:"id"`
	Subject      string         `json:"subject"`
	UserID       int64          `json:"user_id"`
	Username     string         `json:"username"`
	Scope        string         `json:"scope"`
	AuthCode     string         `json:"auth_code"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at"`
	UserInfo     map[string]any `json:"user_info,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// New creates an unbound token for a subject seen for the first time.
func New(subject string) *Token {
	now := time.Now()
	return &Token{
		ID:        uuid.New(),
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsBound reports whether the token is linked to a local account.
func (t *Token) IsBound() bool {
	return t != nil && t.UserID != 0
}

// Clone returns a deep copy; stores hand out copies so callers cannot
// mutate persisted records in place.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	tokenCopy := *t
	if t.UserInfo != nil {
		tokenCopy.UserInfo = make(map[string]any, len(t.UserInfo))
		maps.Copy(tokenCopy.UserInfo, t.UserInfo)
	}
	return &tokenCopy
}

// GivenName extracts the provider's given_name claim, if present.
func (t *Token) GivenName() string {
	return t.claimString("given_name")
}

// FamilyName extracts the provider's family_name claim, if present.
func (t *Token) FamilyName() string {
	return t.claimString("family_name")
}

// Email extracts the provider email, falling back to a upn claim that looks
// like an email address.
func (t *Token) Email() string {
	if email := t.claimString("email"); email != "" {
		return email
	}
	upn := t.claimString("upn")
	if upn != "" && looksLikeEmail(upn) {
		return upn
	}
	return ""
}

func (t *Token) claimString(key string) string {
	if t == nil || t.UserInfo == nil {
		return ""
	}
	s, _ := t.UserInfo[key].(string)
	return s
}

func looksLikeEmail(s string) bool {
	at := -1
	for i, r := range s {
		if r == '@' {
			if at >= 0 {
				return false
			}
			at = i
		}
	}
	return at > 0 && at < len(s)-1
}
