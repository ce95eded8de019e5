package authstate

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"maps"
	"time"
)

// stateTokenBytes yields 20 base64url characters, comfortably above the
// 15-character minimum the provider contract requires for state values.
const stateTokenBytes = 15

// State binds an outbound authorization redirect to its eventual inbound
// response. Each record is single use: Consume removes it on first lookup,
// so a replayed state parameter can never match twice.
type State struct {
	State      string         `json:"state"`
	Nonce      string         `json:"nonce"`
	SessionKey string         `json:"session_key"`
	CreatedAt  time.Time      `json:"created_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New creates a state record with a freshly generated random token.
// Data carries flow-resume context (e.g. forceflow, justauth) across the
// redirect round trip and comes back from Store.Consume.
func New(sessionKey, nonce string, data map[string]any) (*State, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	s := &State{
		State:      token,
		Nonce:      nonce,
		SessionKey: sessionKey,
		CreatedAt:  time.Now(),
	}
	if data != nil {
		s.Data = make(map[string]any, len(data))
		maps.Copy(s.Data, data)
	}
	return s, nil
}

// GetBool reads a boolean flag from the resume data.
func (s *State) GetBool(key string) bool {
	if s == nil || s.Data == nil {
		return false
	}
	b, _ := s.Data[key].(bool)
	return b
}

// GetString reads a string value from the resume data.
func (s *State) GetString(key string) string {
	if s == nil || s.Data == nil {
		return ""
	}
	str, _ := s.Data[key].(string)
	return str
}

// generateToken creates a cryptographically secure state token.
func generateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
