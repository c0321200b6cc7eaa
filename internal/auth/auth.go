// Package auth verifies session tokens issued by the dashboard's identity
// provider and resolves them to a user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/guttosm/proptrack/internal/domain/dto"
)

// ErrUnauthenticated is returned for missing, malformed, expired or
// wrongly signed tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// userIDKey is the gin context key holding the resolved user id.
const userIDKey = "auth.user_id"

// SessionResolver turns a bearer token into a user id.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// JWTResolver validates HS256 tokens and reads the user id from "sub".
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTResolver builds a resolver for tokens signed with secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Resolve implements SessionResolver.
func (r *JWTResolver) Resolve(_ context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := r.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// Sign issues a token for userID valid for ttl. Used by the CLI and tests.
func (r *JWTResolver) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return tok.SignedString(r.secret)
}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the user id for UserID.
func Middleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse("Unauthorized", ErrUnauthenticated))
			return
		}
		userID, err := resolver.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse("Unauthorized", err))
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
