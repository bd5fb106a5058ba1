package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	oidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/olusolaa/connector/internal/config"
)

// Authenticator validates the bearer token on admin API requests.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// NewAuthenticator builds the authenticator selected by AUTH_MODE.
func NewAuthenticator(ctx context.Context, cfg *config.Config) (Authenticator, error) {
	switch cfg.AuthMode {
	case "none":
		return noopAuth{}, nil
	case "secret":
		return &sharedSecretAuth{secret: []byte(cfg.AuthSharedSecret)}, nil
	case "oidc":
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
		}
		verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDCAudience})
		return &oidcAuth{verifier: verifier}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

type noopAuth struct{}

func (noopAuth) Authenticate(ctx context.Context, token string) error {
	return nil
}

// sharedSecretAuth accepts HS256 JWTs signed with a pre-shared secret. Meant
// for single-tenant and development deployments where OIDC is overkill.
type sharedSecretAuth struct {
	secret []byte
}

func (a *sharedSecretAuth) Authenticate(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("missing bearer token")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

type oidcAuth struct {
	verifier *oidc.IDTokenVerifier
}

func (a *oidcAuth) Authenticate(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("missing bearer token")
	}
	if _, err := a.verifier.Verify(ctx, token); err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}
	return nil
}

// authMiddleware rejects requests whose bearer token fails authentication.
// The health endpoint stays open for load balancer probes.
func authMiddleware(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		token := ""
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if err := auth.Authenticate(r.Context(), token); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
