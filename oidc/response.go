package oidc

import (
	"encoding/json"
	"strconv"
	"time"
)

// defaultTokenLifetime is assumed when the provider reports neither
// expires_on nor expires_in.
const defaultTokenLifetime = 24 * time.Hour

// TokenResponse is the decoded result of a token exchange, with the user
// info fetched from the userinfo endpoint merged in.
type TokenResponse struct {
	AccessToken  string
	TokenType    string
	Scope        string
	RefreshToken string
	OpenID       string
	IDToken      string
	ExpiresIn    int64
	ExpiresOn    int64
	UserInfo     map[string]any

	// Raw holds every field the provider returned, for callers needing
	// provider-specific extras.
	Raw map[string]any
}

// Subject returns the stable external identifier: the unionid claim when the
// provider issues one, otherwise the openid. The unionid is stable across
// applications of the same provider account, so it is preferred as join key.
func (t *TokenResponse) Subject() string {
	if t == nil {
		return ""
	}
	if unionid, _ := t.UserInfo["unionid"].(string); unionid != "" {
		return unionid
	}
	if openid, _ := t.UserInfo["openid"].(string); openid != "" {
		return openid
	}
	return t.OpenID
}

// ExpiryTime resolves the access token expiry: absolute expires_on wins,
// then now+expires_in, then a one-day default.
func (t *TokenResponse) ExpiryTime(now time.Time) time.Time {
	switch {
	case t.ExpiresOn > 0:
		return time.Unix(t.ExpiresOn, 0)
	case t.ExpiresIn > 0:
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	default:
		return now.Add(defaultTokenLifetime)
	}
}

// decodeJSONResponse validates a provider response body: it must be JSON, it
// must not carry an error field, and non-2xx statuses are provider errors
// even when the body looks fine.
func decodeJSONResponse(body []byte, statusCode int) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil || len(result) == 0 {
		return nil, &ProviderError{Description: "bad response received from provider"}
	}

	if errCode, ok := result["error"].(string); ok {
		perr := &ProviderError{Code: errCode}
		if desc, ok := result["error_description"].(string); ok {
			perr.Description = desc
		}
		return nil, perr
	}

	if statusCode < 200 || statusCode > 299 {
		return nil, &ProviderError{Description: "provider returned status " + strconv.Itoa(statusCode)}
	}

	return result, nil
}

func tokenResponseFromMap(raw map[string]any) *TokenResponse {
	return &TokenResponse{
		AccessToken:  asString(raw["access_token"]),
		TokenType:    asString(raw["token_type"]),
		Scope:        asString(raw["scope"]),
		RefreshToken: asString(raw["refresh_token"]),
		OpenID:       asString(raw["openid"]),
		IDToken:      asString(raw["id_token"]),
		ExpiresIn:    asInt64(raw["expires_in"]),
		ExpiresOn:    asInt64(raw["expires_on"]),
		Raw:          raw,
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt64 tolerates the numeric sloppiness of provider JSON: expires fields
// arrive as numbers or as quoted strings depending on the provider.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
