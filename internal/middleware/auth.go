// Package middleware provides the gin middleware guarding the portal API:
// token authentication with broadcast revocation, role gating and request
// metrics.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
	"github.com/scoutbase/portal-api/pkg/response"
)

const (
	// ContextClaimsKey holds the validated token claims.
	ContextClaimsKey = "auth_claims"
	// ContextSessionKey holds the live session backing the token.
	ContextSessionKey = "auth_session"
)

// tokenParser validates a bearer token's signature and expiry.
type tokenParser interface {
	ParseToken(tokenString string) (*models.JWTClaims, error)
	Session(ctx context.Context, sessionID string) (*models.Session, error)
}

// revocationChecker reports sessions killed by a broadcast since this
// instance started.
type revocationChecker interface {
	Revoked(sessionID string) bool
}

// Authenticate validates the bearer token and loads its session. A token
// whose session was revoked anywhere, by any instance, is rejected here
// with the session-expired error before the request reaches a handler.
func Authenticate(auth tokenParser, revocations revocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if revocations != nil && revocations.Revoked(claims.SessionID) {
			response.Error(c, appErrors.Clone(appErrors.ErrSessionExpired, ""))
			c.Abort()
			return
		}

		sess, err := auth.Session(c.Request.Context(), claims.SessionID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

// RequireRoles gates a route group to the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFromContext extracts the validated claims set by Authenticate.
func ClaimsFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// SessionFromContext extracts the live session set by Authenticate.
func SessionFromContext(c *gin.Context) (*models.Session, bool) {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := value.(*models.Session)
	return sess, ok
}
