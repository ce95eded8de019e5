// Package oidc implements the client side of the CN OpenID Connect
// protocol: authorization request construction, authorization-code and
// resource-owner-credentials token exchange, and userinfo retrieval.
//
// The wire format follows the provider's dialect rather than stock OAuth2:
// credentials travel as appid/secret form fields, the authorization request
// asks for response_mode=form_post against a token resource, and a token
// exchange is only complete once the userinfo endpoint has been called with
// the fresh access token and openid. Responses are validated uniformly:
// non-JSON bodies, error fields, and non-2xx statuses all surface as
// *ProviderError.
//
// IDTokenVerifier adds JWS signature verification for providers that return
// an id_token; wire it into the login flow via flow.WithIDTokenVerifier.
package oidc
