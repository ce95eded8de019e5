package flow

import "errors"

var (
	// ErrAuthorization is returned when the provider response carries an
	// error_description.
	ErrAuthorization = errors.New("flow.authorization_error")
	// ErrNoAuthCode is returned when a provider response has no code.
	ErrNoAuthCode = errors.New("flow.no_authorization_code")
	// ErrUnknownState is returned when the state param is missing, expired,
	// or already consumed.
	ErrUnknownState = errors.New("flow.unknown_state")
	// ErrNoUserInfo is returned when the exchange yields no usable profile.
	ErrNoUserInfo = errors.New("flow.no_user_info")
	// ErrInvalidParam is returned when an inbound param carries characters
	// outside the allowed charset.
	ErrInvalidParam = errors.New("flow.invalid_param")
	// ErrUnsupportedVariant is returned for an unknown flow variant, or when
	// an operation is called on the wrong variant.
	ErrUnsupportedVariant = errors.New("flow.unsupported_variant")
)
