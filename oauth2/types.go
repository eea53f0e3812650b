package oauth2

import "strings"

// ResponseType is the parsed form of the space-delimited response_type
// request parameter. OIDC allows combinations such as "code id_token", so the
// wire value becomes a set of flags rather than a single enum, making the
// hybrid/implicit distinctions explicit at the type level.
type ResponseType struct {
	Code    bool
	Token   bool
	IDToken bool
}

// ParseResponseType parses the raw response_type parameter. An empty value,
// an unrecognized token, or "token" on its own (an access token with nothing
// binding it to the request) are all rejected.
func ParseResponseType(raw string) (ResponseType, error) {
	var rt ResponseType
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return rt, NewError(ErrInvalidRequest, "response_type is required")
	}
	for _, f := range fields {
		switch f {
		case "code":
			rt.Code = true
		case "token":
			rt.Token = true
		case "id_token":
			rt.IDToken = true
		default:
			return ResponseType{}, NewError(ErrUnsupportedResponseType, "unrecognized response_type %q", f)
		}
	}
	if rt.Token && !rt.IDToken && !rt.Code {
		return ResponseType{}, NewError(ErrUnsupportedResponseType, "response_type \"token\" must be combined with id_token or code")
	}
	return rt, nil
}

// String returns the canonical wire form, tokens in the order
// "code token id_token".
func (rt ResponseType) String() string {
	parts := make([]string, 0, 3)
	if rt.Code {
		parts = append(parts, "code")
	}
	if rt.Token {
		parts = append(parts, "token")
	}
	if rt.IDToken {
		parts = append(parts, "id_token")
	}
	return strings.Join(parts, " ")
}

// Implicit reports whether tokens are delivered directly from the
// authorization endpoint with no code exchange.
func (rt ResponseType) Implicit() bool {
	return !rt.Code && (rt.Token || rt.IDToken)
}

// FrontChannel reports whether any token is returned via the user-agent, in
// which case response parameters travel in the URI fragment.
func (rt ResponseType) FrontChannel() bool {
	return rt.Token || rt.IDToken
}

// GrantType identifies the credential presented at the token endpoint.
type GrantType string

const (
	// GrantAuthorizationCode exchanges a single-use authorization code for tokens.
	GrantAuthorizationCode GrantType = "authorization_code"

	// GrantRefreshToken exchanges a live refresh token for a new access token
	// and a rotated refresh token.
	GrantRefreshToken GrantType = "refresh_token"
)

// Prompt is the parsed form of the space-delimited prompt request parameter.
type Prompt struct {
	None          bool
	Login         bool
	Consent       bool
	SelectAccount bool
}

// ParsePrompt parses the raw prompt parameter. Unrecognized values are
// rejected, as is "none" combined with any interactive value: the client is
// simultaneously demanding and forbidding user interaction.
func ParsePrompt(raw string) (Prompt, error) {
	var p Prompt
	for _, f := range strings.Fields(raw) {
		switch f {
		case "none":
			p.None = true
		case "login":
			p.Login = true
		case "consent":
			p.Consent = true
		case "select_account":
			p.SelectAccount = true
		default:
			return Prompt{}, NewError(ErrInvalidRequest, "unrecognized prompt value %q", f)
		}
	}
	if p.None && (p.Login || p.Consent || p.SelectAccount) {
		return Prompt{}, NewError(ErrInvalidRequest, "prompt \"none\" cannot be combined with interactive prompt values")
	}
	return p, nil
}
