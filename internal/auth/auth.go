package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"dealersync/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Claims struct {
	Subject string
	IsAdmin bool
}

const claimsContextKey = "auth_claims"

// TokenStore looks up persisted API tokens by their sha256 hash.
type TokenStore interface {
	FindAPITokenByHash(ctx context.Context, tokenHash string) (store.APIToken, error)
	TouchTokenLastUsed(ctx context.Context, id uuid.UUID)
}

// Authenticator verifies the static admin token and database-backed
// API tokens. Tokens are stored hashed; the raw value is only seen at
// issue time.
type Authenticator struct {
	tokens     TokenStore
	adminToken string
}

func NewAuthenticator(tokens TokenStore, adminToken string) *Authenticator {
	return &Authenticator{
		tokens:     tokens,
		adminToken: adminToken,
	}
}

func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API token")
		}

		claims, err := a.Authenticate(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid API token")
		}
		c.Set(claimsContextKey, claims)

		return next(c)
	}
}

// AdminOnly rejects authenticated non-admin callers.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := GetClaims(c)
		if !ok || !claims.IsAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin token required")
		}
		return next(c)
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (Claims, error) {
	if a.adminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.adminToken)) == 1 {
		return Claims{Subject: "admin", IsAdmin: true}, nil
	}

	if a.tokens == nil {
		return Claims{}, errors.New("unknown token")
	}

	hash := sha256.Sum256([]byte(token))
	tokenHash := hex.EncodeToString(hash[:])

	t, err := a.tokens.FindAPITokenByHash(ctx, tokenHash)
	if err != nil {
		return Claims{}, err
	}
	if t.Disabled {
		return Claims{}, errors.New("token disabled")
	}
	a.tokens.TouchTokenLastUsed(ctx, t.ID)

	return Claims{Subject: t.Subject}, nil
}

// HashToken returns the hex sha256 digest stored for a raw token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func GetClaims(c echo.Context) (Claims, bool) {
	raw := c.Get(claimsContextKey)
	if raw == nil {
		return Claims{}, false
	}
	claims, ok := raw.(Claims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}
