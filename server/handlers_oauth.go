package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/openauthkit/oidc-provider/auth"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/token"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetIssuer()

		resp := map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteOAuth2Authorize,
			"token_endpoint":         baseURL + RouteOAuth2Token,
			"userinfo_endpoint":      baseURL + RouteUserInfo,
			"jwks_uri":               baseURL + RouteWellKnownJWKS,

			"response_types_supported": []string{
				"code",
				"id_token",
				"token id_token",
				"code id_token",
			},
			"response_modes_supported": []string{"query", "fragment"},
			"subject_types_supported":  []string{"public"},

			"id_token_signing_alg_values_supported": []string{
				s.tokens.Signer().GetSigningMethod().Alg(),
			},

			"scopes_supported": []string{"openid", "profile", "email"},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic",
				"client_secret_post",
				"none",
			},

			"grant_types_supported": []string{
				"authorization_code",
				"refresh_token",
			},

			"claims_supported": []string{"sub", "aud", "auth_time", "nonce"},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate issued tokens. Symmetric
// and unsigned configurations have no publishable keys and serve an empty
// set.
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks := &token.JWKS{Keys: []token.JWK{}}
		if signer, ok := s.tokens.Signer().(*token.KeyPairSigner); ok {
			set, err := signer.GetJWKS()
			if err != nil {
				http.Error(w, "failed to build key set", http.StatusInternalServerError)
				return
			}
			jwks = set
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

// Authorize begins the authorization flow. Validation failures either render
// inline (when the redirect URI cannot be trusted) or redirect back to the
// client with an error code; a valid request from a logged-in user lands on
// the consent form unless a remembered approval lets it through.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, oerr := parseAuthorizationParameters(r)
		if oerr != nil {
			writeOAuthError(w, oerr)
			return
		}

		result, err := s.auth.Authorize(params, s.sessions(r))
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		switch {
		case result.Redirect != nil:
			http.Redirect(w, r, result.Redirect.URL(), http.StatusSeeOther)
		case result.Interaction != nil:
			s.renderConsentForm(w, result.Interaction)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

// Decision handles the consent form callback.
func (s *Server) Decision() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "failed to parse form data"))
			return
		}

		params := &oauth2.DecisionParameters{
			AntiForgeryToken: r.FormValue("session_authenticity_token"),
			ClientID:         r.FormValue("client_id"),
			RedirectURI:      r.FormValue("redirect_uri"),
			Scope:            r.FormValue("scope"),
			ResponseType:     r.FormValue("response_type"),
			Nonce:            r.FormValue("nonce"),
			State:            r.FormValue("state"),
			Decision:         oauth2.Decision(r.FormValue("oauthDecision")),
		}

		result, err := s.auth.Decision(params)
		if err != nil {
			writeOAuthError(w, err)
			return
		}
		if result.Redirect == nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, result.Redirect.URL(), http.StatusSeeOther)
	}
}

// Token exchanges an authorization code or refresh token for tokens. Client
// credentials are accepted via HTTP Basic auth or the form body.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "failed to parse form data"))
			return
		}

		tokenReq := &oauth2.TokenRequest{
			GrantType:    oauth2.GrantType(r.FormValue("grant_type")),
			ClientID:     r.FormValue("client_id"),
			ClientSecret: r.FormValue("client_secret"),
			Code:         r.FormValue("code"),
			RedirectURI:  r.FormValue("redirect_uri"),
			RefreshToken: r.FormValue("refresh_token"),
			Scope:        r.FormValue("scope"),
		}
		if username, password, ok := r.BasicAuth(); ok {
			tokenReq.ClientID = username
			tokenReq.ClientSecret = password
		}

		tokenResponse, err := s.auth.Token(tokenReq)
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// UserInfo returns the claims of the subject behind a bearer access token.
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.UserInfo(bearerToken(r))
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(claims)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func parseAuthorizationParameters(r *http.Request) (*oauth2.AuthorizationParameters, *oauth2.Error) {
	query := r.URL.Query()
	params := &oauth2.AuthorizationParameters{
		ClientID:     query.Get("client_id"),
		RedirectURI:  query.Get("redirect_uri"),
		Scope:        query.Get("scope"),
		ResponseType: query.Get("response_type"),
		State:        query.Get("state"),
		Nonce:        query.Get("nonce"),
		Prompt:       query.Get("prompt"),
		Request:      query.Get("request"),
	}
	if raw := query.Get("max_age"); raw != "" {
		maxAge, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxAge < 0 {
			return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "max_age must be a non-negative integer")
		}
		params.MaxAge = &maxAge
	}
	return params, nil
}

func writeOAuthError(w http.ResponseWriter, err error) {
	oerr, ok := oauth2.AsError(err)
	if !ok {
		oerr = oauth2.NewError(oauth2.ErrServerError, "internal server error")
	}

	if oerr.Code == oauth2.ErrInvalidToken {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(oerr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             string(oerr.Code),
		"error_description": oerr.Description,
	})
}

var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorize {{.ClientID}}</title></head>
<body>
<h1>{{.ClientID}} is requesting access</h1>
<p>Requested permissions: {{.ProposedScope}}</p>
<form method="POST" action="` + RouteOAuth2Decision + `">
  <input type="hidden" name="session_authenticity_token" value="{{.AntiForgeryToken}}">
  <input type="hidden" name="client_id" value="{{.ClientID}}">
  <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
  <input type="hidden" name="scope" value="{{.ProposedScope}}">
  <input type="hidden" name="response_type" value="{{.ResponseType}}">
  <input type="hidden" name="nonce" value="{{.Nonce}}">
  <input type="hidden" name="state" value="{{.State}}">
  <button type="submit" name="oauthDecision" value="allow">Allow</button>
  <button type="submit" name="oauthDecision" value="deny">Deny</button>
</form>
</body>
</html>
`))

func (s *Server) renderConsentForm(w http.ResponseWriter, data *auth.AuthorizationData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := consentTemplate.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Msg("failed to render consent form")
	}
}
