package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/openauthkit/oidc-provider/auth"
	"github.com/openauthkit/oidc-provider/auth/consentrepo"
	"github.com/openauthkit/oidc-provider/clients"
	"github.com/openauthkit/oidc-provider/grant"
	"github.com/openauthkit/oidc-provider/internal/config"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/server"
	"github.com/openauthkit/oidc-provider/session"
	"github.com/openauthkit/oidc-provider/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	handler, err := buildServer(c)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config) (*server.Server, error) {
	signer, err := newSigner(c)
	if err != nil {
		return nil, fmt.Errorf("newSigner: %w", err)
	}

	grants := grant.NewInMemoryRepo()
	repos := auth.Repos{
		Clients:  clients.NewRegistry(demoClients()...),
		Grants:   grants,
		Consents: consentrepo.NewInMemoryRepo(),
	}

	tokens, err := token.New(token.NewInMemoryAccessTokenRepo(), grants, signer, c.GetIssuer(),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetIDTokenExpiry(), c.GetRefreshTokenExpiry()),
		token.WithRefreshTokenLength(c.GetRefreshTokenLength()),
	)
	if err != nil {
		return nil, fmt.Errorf("token.New: %w", err)
	}

	authService, err := auth.NewService(repos, tokens,
		auth.WithCodeTimeout(c.GetAuthCodeTimeout()),
		auth.WithCodeLength(c.GetCodeGenerationLength()),
		auth.WithPendingTimeout(c.GetPendingAuthTimeout()),
	)
	if err != nil {
		return nil, fmt.Errorf("auth.NewService: %w", err)
	}

	return server.New(c, authService, tokens, sessionResolver(c))
}

func newSigner(c config.Config) (token.Signer, error) {
	switch c.GetSignerType() {
	case "HS256":
		secret := c.GetHMACSecret()
		if secret == "" {
			return nil, errors.New("HS256 requires HMAC_SECRET to be set")
		}
		return token.NewHMACSigner(secret), nil
	case "RS256":
		keyPair, err := token.GenerateRSAKeyPair("default", 2048)
		if err != nil {
			return nil, err
		}
		return token.NewKeyPairSigner(keyPair), nil
	case "ES256":
		keyPair, err := token.GenerateECDSAKeyPair("default")
		if err != nil {
			return nil, err
		}
		return token.NewKeyPairSigner(keyPair), nil
	case "none":
		return token.NewNoneSigner(), nil
	default:
		return nil, fmt.Errorf("unsupported signer type %q", c.GetSignerType())
	}
}

// demoClients registers a single confidential client from the environment so
// a freshly started server can run a flow end to end. Real deployments swap
// the registry for their own client source.
func demoClients() []*clients.Client {
	clientID := config.GetEnv("CLIENT_ID", "")
	if clientID == "" {
		return nil
	}

	client := &clients.Client{
		ID:            clientID,
		Description:   "Bootstrap client",
		RedirectURIs:  []string{config.GetEnv("CLIENT_REDIRECT_URI", "")},
		ResponseTypes: []string{"code", "id_token", "token id_token", "code id_token"},
		GrantTypes:    []oauth2.GrantType{oauth2.GrantAuthorizationCode, oauth2.GrantRefreshToken},
		Scopes:        []string{"openid", "profile", "email"},
	}
	if secret := config.GetEnv("CLIENT_SECRET", ""); secret != "" {
		hash, err := clients.HashSecret(secret)
		if err != nil {
			log.Printf("Failed to hash CLIENT_SECRET: %v\n", err)
			return nil
		}
		client.SecretHash = hash
	}
	return []*clients.Client{client}
}

// sessionResolver trusts the X-Demo-Subject header in DEV only; everything
// else sees no session and gets login_required. Production embeds this server
// behind a real authentication layer.
func sessionResolver(c config.Config) server.SessionResolver {
	if c.GetEnv() != "DEV" {
		return func(*http.Request) *session.Context { return nil }
	}
	return func(r *http.Request) *session.Context {
		subject := r.Header.Get("X-Demo-Subject")
		if subject == "" {
			return nil
		}
		return &session.Context{Subject: subject, AuthTime: time.Now()}
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
