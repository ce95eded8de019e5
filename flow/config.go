package flow

import "time"

// Flow variants. The authorization-code grant is the default; the
// resource-owner credentials grant exists for providers without a usable
// browser-redirect flow.
const (
	VariantAuthCode = "authcode"
	VariantROCreds  = "rocreds"
)

// Config holds the login flow settings.
type Config struct {
	ClientID     string `env:"CNOAUTH_CLIENT_ID,required"`
	ClientSecret string `env:"CNOAUTH_CLIENT_SECRET,required"`

	AuthEndpoint     string `env:"CNOAUTH_AUTH_ENDPOINT"`
	TokenEndpoint    string `env:"CNOAUTH_TOKEN_ENDPOINT"`
	UserInfoEndpoint string `env:"CNOAUTH_USERINFO_ENDPOINT"`

	RedirectURI   string `env:"CNOAUTH_REDIRECT_URI,required"`
	Scope         string `env:"CNOAUTH_SCOPE" envDefault:"openid profile email"`
	TokenResource string `env:"CNOAUTH_TOKEN_RESOURCE"`
	DomainHint    string `env:"CNOAUTH_DOMAIN_HINT"`

	// Variant selects the grant: authcode or rocreds.
	Variant string `env:"CNOAUTH_FLOW_VARIANT" envDefault:"authcode"`

	// Debug enables detailed failure logging. Without it, login failures
	// produce a generic message and no provider detail leaves the process.
	Debug bool `env:"CNOAUTH_DEBUG" envDefault:"false"`

	// StateTTL bounds how long an issued state stays valid.
	StateTTL time.Duration `env:"CNOAUTH_STATE_TTL" envDefault:"5m"`

	// ForceRedirect sends even already-authenticated sessions to the
	// provider instead of short-circuiting to their destination.
	ForceRedirect bool `env:"CNOAUTH_FORCE_REDIRECT" envDefault:"false"`

	// BindingPath is where NeedsBinding outcomes are redirected so the host
	// can render its link-account page.
	BindingPath string `env:"CNOAUTH_BINDING_PATH" envDefault:"/bind"`

	// SuccessPath is the fallback destination after login when the attempt
	// carried no resume URL.
	SuccessPath string `env:"CNOAUTH_SUCCESS_PATH" envDefault:"/"`
}
