package server

import (
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/openauthkit/oidc-provider/auth"
	"github.com/openauthkit/oidc-provider/internal/config"
	"github.com/openauthkit/oidc-provider/session"
	"github.com/openauthkit/oidc-provider/token"
)

// SessionResolver reports the authenticated end user behind a request, or nil
// when nobody is logged in. How sessions are established (cookies, SSO,
// upstream proxy) is the embedding application's business; the OAuth2 core
// only needs the subject and the time authentication happened.
type SessionResolver func(r *http.Request) *session.Context

type Server struct {
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     *auth.Service
	tokens   *token.Manager
	sessions SessionResolver
	logger   zerolog.Logger
}

func New(cfg config.Config, authService *auth.Service, tokens *token.Manager, sessions SessionResolver) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] authorization service is required")
	}
	if tokens == nil {
		return nil, errors.New("[Server New] token manager is required")
	}
	if sessions == nil {
		sessions = func(*http.Request) *session.Context { return nil }
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		auth:     authService,
		tokens:   tokens,
		sessions: sessions,
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "server").Logger(),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.config == nil || s.config.GetEnv() != "DEV" {
		return
	}
	for _, route := range s.routes {
		s.logger.Info().Str("route", route).Msg("registered")
	}
}
