package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/Dan9191/institute-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const scopeKey contextKey = "actorScope"

// RoleAdmin sees every center
const RoleAdmin = "admin"

// Claims are the scope claims carried by a bearer token
type Claims struct {
	Role     string `json:"role"`
	CenterID *int64 `json:"center_id,omitempty"`
	jwt.RegisteredClaims
}

// Scope converts the claims into the reporting scope of the caller
func (c *Claims) Scope() models.ActorScope {
	return models.ActorScope{Admin: c.Role == RoleAdmin, CenterID: c.CenterID}
}

// IssueToken signs claims for the given subject, valid for ttl
func IssueToken(secret, subject, role string, centerID *int64, ttl time.Duration) (string, error) {
	claims := Claims{
		Role:     role,
		CenterID: centerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an HS256 token and returns its claims
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller's ActorScope in the request context
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := ParseToken(cfg.JWTSecret, raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), claims.Scope())))
		})
	}
}

func WithScope(ctx context.Context, scope models.ActorScope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext returns the caller's scope; an empty scope sees nothing
func ScopeFromContext(ctx context.Context) models.ActorScope {
	scope, _ := ctx.Value(scopeKey).(models.ActorScope)
	return scope
}
