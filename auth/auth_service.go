package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/openauthkit/oidc-provider/auth/consentrepo"
	"github.com/openauthkit/oidc-provider/clients"
	"github.com/openauthkit/oidc-provider/grant"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/session"
	"github.com/openauthkit/oidc-provider/token"
)

const (
	defaultCodeLength  = 32
	defaultCodeTimeout = 5 * time.Minute
	defaultPendingTTL  = 10 * time.Minute
)

// AuthorizeResult is the outcome of the authorize or decision step: either an
// interaction handle for the caller to render, or a redirect descriptor. A
// redirect may carry tokens, a code, or a protocol error, all with the
// request state echoed.
type AuthorizeResult struct {
	Interaction *AuthorizationData
	Redirect    *oauth2.Redirect
}

// Repos holds the store dependencies of the Service.
type Repos struct {
	Clients  clients.Repo
	Grants   grant.Repo
	Consents consentrepo.Repo
}

// Service orchestrates the authorization, decision, token and userinfo
// operations. It holds no per-request state; all in-flight state lives in the
// grant store, so concurrent requests are safe.
type Service struct {
	repos       Repos
	tokens      *token.Manager
	validator   *Validator
	consent        *ConsentGate
	codeLength     int
	codeTimeout    time.Duration
	pendingTimeout time.Duration
	nowFunc        func() time.Time
}

type ServiceOption func(*Service)

// WithNowFunc sets the clock (primarily for testing). The validator and
// consent gate are rebuilt on the same clock.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithCodeTimeout overrides the authorization code lifetime.
func WithCodeTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.codeTimeout = timeout
	}
}

// WithCodeLength overrides the authorization code entropy in bytes.
func WithCodeLength(length int) ServiceOption {
	return func(s *Service) {
		s.codeLength = length
	}
}

// WithPendingTimeout overrides how long a rendered consent form stays
// decidable before the pending authorization expires.
func WithPendingTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.pendingTimeout = timeout
	}
}

// NewService initializes the authorization Service with its dependencies.
func NewService(repos Repos, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Clients == nil {
		return nil, errors.New("[NewService] clients repo is required")
	}
	if repos.Grants == nil {
		return nil, errors.New("[NewService] grant repo is required")
	}
	if repos.Consents == nil {
		return nil, errors.New("[NewService] consent repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	s := &Service{
		repos:          repos,
		tokens:         tokens,
		codeLength:     defaultCodeLength,
		codeTimeout:    defaultCodeTimeout,
		pendingTimeout: defaultPendingTTL,
		nowFunc:        time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.validator = NewValidator(WithValidatorNowFunc(s.nowFunc))
	s.consent = NewConsentGate(repos.Grants, s.pendingTimeout, s.nowFunc)
	return s, nil
}

// Authorize runs the authorization endpoint state machine up to the point
// where either tokens/codes are issued (prior consent or prompt=none), the
// caller must render consent (Interaction set), or the request is rejected.
//
// Failures before the redirect_uri is validated are returned as an error and
// must be surfaced inline; once the redirect URI is known-good, failures
// travel back to the client as an error redirect.
func (s *Service) Authorize(params *oauth2.AuthorizationParameters, sess *session.Context) (*AuthorizeResult, error) {
	// A mismatching request object poisons every parameter, including the
	// redirect_uri, so this check runs before anything is trusted.
	if oerr := checkRequestObject(params); oerr != nil {
		return nil, oerr
	}

	client, err := s.repos.Clients.Get(params.ClientID)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "unknown client_id %q", params.ClientID)
	}

	vr, oerr := s.validator.Validate(params, client, sess)
	if oerr != nil {
		if !client.HasRedirectURI(params.RedirectURI) {
			// No trusted redirect target; never deliver errors blindly.
			return nil, oerr
		}
		fragment := fragmentForRawResponseType(params.ResponseType)
		return &AuthorizeResult{Redirect: oauth2.ErrorRedirect(params.RedirectURI, params.State, fragment, oerr)}, nil
	}

	if sess == nil {
		return nil, oauth2.NewError(oauth2.ErrLoginRequired, "no authenticated session")
	}

	priorConsent := s.repos.Consents.Covers(client.ID, sess.Subject, vr.Scope)

	if vr.Prompt.None {
		if !priorConsent {
			oerr := oauth2.NewError(oauth2.ErrInteractionRequired, "consent required but prompt is \"none\"")
			return &AuthorizeResult{Redirect: oauth2.ErrorRedirect(vr.RedirectURI, vr.State, vr.ResponseType.FrontChannel(), oerr)}, nil
		}
		return s.issue(vr, sess.Subject, sess.AuthTime)
	}

	if priorConsent && !vr.Prompt.Consent {
		return s.issue(vr, sess.Subject, sess.AuthTime)
	}

	data, err := s.consent.Begin(vr, sess)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Authorize] begin consent")
	}
	return &AuthorizeResult{Interaction: data}, nil
}

// Decision completes a pending authorization with the user's allow/deny
// choice. The anti-forgery token check fails closed; a deny is delivered to
// the client as access_denied via redirect.
func (s *Service) Decision(params *oauth2.DecisionParameters) (*AuthorizeResult, error) {
	pending, oerr := s.consent.Complete(params)
	if oerr != nil {
		// Nothing about the submitted form can be trusted, including its
		// redirect_uri. Surface inline.
		return nil, oerr
	}

	responseType, err := oauth2.ParseResponseType(pending.ResponseType)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrServerError, "stored response_type no longer parses")
	}

	if params.Decision != oauth2.DecisionAllow {
		oerr := oauth2.NewError(oauth2.ErrAccessDenied, "the user denied the request")
		return &AuthorizeResult{Redirect: oauth2.ErrorRedirect(pending.RedirectURI, pending.State, responseType.FrontChannel(), oerr)}, nil
	}

	scope := oauth2.ParseScope(pending.Scope)
	if err := s.repos.Consents.Grant(pending.ClientID, pending.Subject, scope); err != nil {
		return nil, errors.Wrap(err, "[Service.Decision] record consent")
	}

	client, err := s.repos.Clients.Get(pending.ClientID)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrServerError, "client disappeared mid-flow")
	}

	vr := &ValidatedRequest{
		Client:       client,
		RedirectURI:  pending.RedirectURI,
		ResponseType: responseType,
		Scope:        scope,
		State:        pending.State,
		Nonce:        pending.Nonce,
	}
	return s.issue(vr, pending.Subject, pending.AuthTime)
}

// issue branches on the response type: an authorization code via redirect
// query, tokens via redirect fragment, or both for the hybrid flow.
func (s *Service) issue(vr *ValidatedRequest, subject string, authTime time.Time) (*AuthorizeResult, error) {
	params := url.Values{}
	if vr.State != "" {
		params.Set("state", vr.State)
	}

	if vr.ResponseType.Code {
		code, err := s.generateAuthorizationCode(vr, subject, authTime)
		if err != nil {
			return nil, errors.Wrap(err, "[Service.issue] authorization code")
		}
		params.Set("code", code)
	}

	var accessTokenValue string
	if vr.ResponseType.Token {
		at, err := s.tokens.IssueAccessToken(vr.Client.ID, subject, vr.Scope, "")
		if err != nil {
			return nil, errors.Wrap(err, "[Service.issue] access token")
		}
		accessTokenValue = at.Value
		params.Set("access_token", at.Value)
		params.Set("token_type", "Bearer")
		params.Set("expires_in", strconv.Itoa(s.tokens.AccessTokenExpirySeconds()))
	}

	if vr.ResponseType.IDToken {
		idToken, err := s.tokens.IssueIDToken(token.IDTokenInput{
			ClientID:    vr.Client.ID,
			Subject:     subject,
			AuthTime:    authTime,
			Nonce:       vr.Nonce,
			AccessToken: accessTokenValue,
		})
		if err != nil {
			return nil, errors.Wrap(err, "[Service.issue] id token")
		}
		params.Set("id_token", idToken)
	}

	return &AuthorizeResult{Redirect: &oauth2.Redirect{
		TargetURI:  vr.RedirectURI,
		Params:     params,
		InFragment: vr.ResponseType.FrontChannel(),
	}}, nil
}

func (s *Service) generateAuthorizationCode(vr *ValidatedRequest, subject string, authTime time.Time) (string, error) {
	buf := make([]byte, s.codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "rand.Read")
	}
	code := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.repos.Grants.PutCode(&grant.AuthorizationCode{
		Value:       code,
		ClientID:    vr.Client.ID,
		Subject:     subject,
		Scope:       vr.Scope.String(),
		Nonce:       vr.Nonce,
		RedirectURI: vr.RedirectURI,
		AuthTime:    authTime,
		ExpiresAt:   s.nowFunc().Add(s.codeTimeout),
	}); err != nil {
		return "", errors.Wrap(err, "store code")
	}
	return code, nil
}

// fragmentForRawResponseType decides error delivery placement when the
// response type may not even parse: anything mentioning a front-channel token
// gets the fragment, plain code flow the query.
func fragmentForRawResponseType(raw string) bool {
	rt, err := oauth2.ParseResponseType(raw)
	if err != nil {
		return false
	}
	return rt.FrontChannel()
}
