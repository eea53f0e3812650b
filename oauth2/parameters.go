package oauth2

// AuthorizationParameters holds the raw parameters of an authorization
// request as received at the /authorize endpoint. Parsing and validation of
// the structured fields (response_type, prompt, scope) happens in the request
// validator; this struct deliberately stays close to the wire.
type AuthorizationParameters struct {
	// ClientID identifies the application requesting authorization.
	ClientID string

	// RedirectURI is where the authorization response will be sent. Must
	// exactly match a URI registered for the client; nothing is ever
	// delivered to an unverified URI.
	RedirectURI string

	// Scope is the space-delimited set of permissions being requested,
	// e.g. "openid profile".
	Scope string

	// ResponseType is the space-delimited response_type value, e.g. "code",
	// "id_token" or "token id_token".
	ResponseType string

	// State is an opaque client value echoed back verbatim in the response
	// for CSRF protection. Never interpreted by the server.
	State string

	// Nonce binds an issued ID token to this request. Optional for the code
	// flow, mandatory for the pure implicit flow.
	Nonce string

	// Prompt is the space-delimited prompt value ("none", "login",
	// "consent", "select_account").
	Prompt string

	// MaxAge, when non-nil, is the maximum acceptable age in seconds of the
	// user's authentication. A staler session forces re-authentication.
	MaxAge *int64

	// Request is an optional request object: a compact JWT whose claims
	// restate authorization parameters. Claims it carries must agree with
	// the query parameters above.
	Request string
}

// DecisionParameters holds the form parameters of the consent decision
// callback. Everything except AntiForgeryToken and Decision is echoed from
// the rendered consent form and cross-checked against the pending
// authorization before being honored.
type DecisionParameters struct {
	AntiForgeryToken string
	ClientID         string
	RedirectURI      string
	Scope            string
	ResponseType     string
	Nonce            string
	State            string
	Decision         Decision
}

// Decision is the user's choice on the consent form.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)
