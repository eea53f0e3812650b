package auth

import (
	"strings"
	"time"

	"github.com/openauthkit/oidc-provider/clients"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/session"
)

// ValidatedRequest is an authorization request that passed validation, with
// the structured fields parsed out of their wire form.
type ValidatedRequest struct {
	Client       *clients.Client
	RedirectURI  string
	ResponseType oauth2.ResponseType
	Scope        oauth2.Scope
	Prompt       oauth2.Prompt
	State        string
	Nonce        string
	MaxAge       *int64
}

// Validator checks authorization requests against OAuth2/OIDC rules. It has
// no side effects; the outcome is a pure function of request, client, session
// and clock.
type Validator struct {
	nowFunc func() time.Time
}

type ValidatorOption func(*Validator)

// WithValidatorNowFunc overrides the clock (primarily for testing).
func WithValidatorNowFunc(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowFunc = now
	}
}

func NewValidator(options ...ValidatorOption) *Validator {
	v := &Validator{nowFunc: time.Now}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate runs the checks in a fixed order, each failing with its own error
// kind. The redirect_uri check runs first: until it passes, nothing may be
// delivered by redirect, so its failure must be surfaced inline. Every later
// failure is safe to deliver to the (now verified) redirect URI.
func (v *Validator) Validate(params *oauth2.AuthorizationParameters, client *clients.Client, sess *session.Context) (*ValidatedRequest, *oauth2.Error) {
	if !client.HasRedirectURI(params.RedirectURI) {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "redirect_uri is not registered for client")
	}

	responseType, err := oauth2.ParseResponseType(params.ResponseType)
	if err != nil {
		oerr, _ := oauth2.AsError(err)
		return nil, oerr
	}
	if !client.AllowsResponseType(responseType) {
		return nil, oauth2.NewError(oauth2.ErrUnauthorizedClient, "client is not authorized for response_type %q", params.ResponseType)
	}

	prompt, err := oauth2.ParsePrompt(params.Prompt)
	if err != nil {
		oerr, _ := oauth2.AsError(err)
		return nil, oerr
	}

	// Pure implicit flow: the nonce is the only thing binding the ID token
	// to this request, so its absence is a hard failure, never a default.
	if responseType.IDToken && !responseType.Code && strings.TrimSpace(params.Nonce) == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "nonce is required for the implicit flow")
	}

	scope := oauth2.ParseScope(params.Scope)
	if err := client.ValidateScopes(scope); err != nil {
		oerr, _ := oauth2.AsError(err)
		return nil, oerr
	}

	if prompt.None && sess == nil {
		return nil, oauth2.NewError(oauth2.ErrLoginRequired, "prompt \"none\" requires an active session")
	}

	if params.MaxAge != nil {
		maxAge := time.Duration(*params.MaxAge) * time.Second
		if sess == nil || !sess.FreshWithin(maxAge, v.nowFunc()) {
			return nil, oauth2.NewError(oauth2.ErrLoginRequired, "authentication is older than max_age, re-authentication required")
		}
	}

	return &ValidatedRequest{
		Client:       client,
		RedirectURI:  params.RedirectURI,
		ResponseType: responseType,
		Scope:        scope,
		Prompt:       prompt,
		State:        params.State,
		Nonce:        params.Nonce,
		MaxAge:       params.MaxAge,
	}, nil
}
