package oidc

import "errors"

var (
	// ErrMissingCredentials indicates client id/secret were never configured.
	ErrMissingCredentials = errors.New("oidc.missing_credentials")

	// ErrMissingEndpoint indicates a required endpoint is not configured.
	ErrMissingEndpoint = errors.New("oidc.missing_endpoint")

	// ErrInvalidEndpoint indicates an endpoint URI is not a clean absolute URL.
	ErrInvalidEndpoint = errors.New("oidc.invalid_endpoint")

	// ErrInsecureEndpoint indicates the token endpoint is not TLS; the
	// password grant sends raw credentials and refuses to run over plain HTTP.
	ErrInsecureEndpoint = errors.New("oidc.insecure_endpoint")

	// ErrMalformedResponse indicates the provider response decoded but lacks
	// required structure (e.g. no user info).
	ErrMalformedResponse = errors.New("oidc.malformed_response")

	// ErrRequestFailed indicates an I/O failure talking to the provider.
	ErrRequestFailed = errors.New("oidc.request_failed")

	// ErrIDTokenInvalid indicates the id_token failed structural or
	// signature validation.
	ErrIDTokenInvalid = errors.New("oidc.id_token_invalid")

	// ErrNonceMismatch indicates the id_token nonce does not match the one
	// issued with the authorization request.
	ErrNonceMismatch = errors.New("oidc.nonce_mismatch")
)

// ProviderError carries an error the provider itself returned, either as an
// error field in an otherwise well-formed JSON body or as a non-2xx status.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	switch {
	case e.Description != "" && e.Code != "":
		return "oidc: provider error " + e.Code + ": " + e.Description
	case e.Description != "":
		return "oidc: provider error: " + e.Description
	case e.Code != "":
		return "oidc: provider error " + e.Code
	default:
		return "oidc: provider error"
	}
}
