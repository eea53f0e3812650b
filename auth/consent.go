package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/openauthkit/oidc-provider/grant"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/session"
)

// AuthorizationData is the handle the caller renders as the consent form. The
// anti-forgery token must come back on the decision callback; the remaining
// fields let the form echo what is being approved.
type AuthorizationData struct {
	AntiForgeryToken string `json:"session_authenticity_token"`
	ClientID         string `json:"client_id"`
	RedirectURI      string `json:"redirect_uri"`
	ProposedScope    string `json:"proposed_scope"`
	ResponseType     string `json:"response_type,omitempty"`
	Nonce            string `json:"nonce,omitempty"`
	State            string `json:"state,omitempty"`
}

// ConsentGate issues and consumes the anti-forgery token tying a rendered
// consent form to a pending authorization request. Verification fails closed:
// an unknown, expired or mismatched token yields access_denied, never a
// grant.
type ConsentGate struct {
	grants  grant.Repo
	timeout time.Duration
	nowFunc func() time.Time
}

func NewConsentGate(grants grant.Repo, timeout time.Duration, nowFunc func() time.Time) *ConsentGate {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &ConsentGate{grants: grants, timeout: timeout, nowFunc: nowFunc}
}

// Begin stores the validated request as pending and returns the interaction
// handle for the caller to render.
func (g *ConsentGate) Begin(vr *ValidatedRequest, sess *session.Context) (*AuthorizationData, error) {
	antiForgeryToken := uuid.New().String()
	pending := &grant.PendingAuthorization{
		AntiForgeryToken: antiForgeryToken,
		ClientID:         vr.Client.ID,
		Subject:          sess.Subject,
		RedirectURI:      vr.RedirectURI,
		Scope:            vr.Scope.String(),
		ResponseType:     vr.ResponseType.String(),
		Nonce:            vr.Nonce,
		State:            vr.State,
		AuthTime:         sess.AuthTime,
		ExpiresAt:        g.nowFunc().Add(g.timeout),
	}
	if err := g.grants.PutPending(pending); err != nil {
		return nil, errors.Wrap(err, "[ConsentGate.Begin] store pending authorization")
	}

	return &AuthorizationData{
		AntiForgeryToken: antiForgeryToken,
		ClientID:         vr.Client.ID,
		RedirectURI:      vr.RedirectURI,
		ProposedScope:    vr.Scope.String(),
		ResponseType:     vr.ResponseType.String(),
		Nonce:            vr.Nonce,
		State:            vr.State,
	}, nil
}

// Complete consumes the pending authorization for the submitted anti-forgery
// token and cross-checks the resubmitted parameters against what was stored.
// Any mismatch is treated exactly like a forged token.
func (g *ConsentGate) Complete(params *oauth2.DecisionParameters) (*grant.PendingAuthorization, *oauth2.Error) {
	pending, err := g.grants.ConsumePending(params.AntiForgeryToken)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrAccessDenied, "unknown or expired consent session")
	}
	if pending.ClientID != params.ClientID ||
		pending.RedirectURI != params.RedirectURI ||
		pending.Scope != params.Scope {
		return nil, oauth2.NewError(oauth2.ErrAccessDenied, "decision parameters do not match the pending request")
	}
	return pending, nil
}
