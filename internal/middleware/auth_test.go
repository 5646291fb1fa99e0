package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

type mockAuth struct {
	parseFunc   func(tokenString string) (*models.JWTClaims, error)
	sessionFunc func(ctx context.Context, sessionID string) (*models.Session, error)
}

func (m *mockAuth) ParseToken(tokenString string) (*models.JWTClaims, error) {
	return m.parseFunc(tokenString)
}

func (m *mockAuth) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.sessionFunc(ctx, sessionID)
}

type mockRevocations struct {
	revoked map[string]bool
}

func (m *mockRevocations) Revoked(sessionID string) bool {
	return m.revoked[sessionID]
}

func validAuth() *mockAuth {
	return &mockAuth{
		parseFunc: func(token string) (*models.JWTClaims, error) {
			if token != "good-token" {
				return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
			}
			return &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, SessionID: "s1"}, nil
		},
		sessionFunc: func(_ context.Context, sessionID string) (*models.Session, error) {
			if sessionID != "s1" {
				return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
			}
			return &models.Session{ID: "s1", UserID: "u1", UpstreamToken: "up-tok"}, nil
		},
	}
}

func performRequest(handler gin.HandlerFunc, authorization string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/protected", handler, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	w := performRequest(Authenticate(validAuth(), &mockRevocations{}), "Bearer good-token")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	w := performRequest(Authenticate(validAuth(), &mockRevocations{}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	w := performRequest(Authenticate(validAuth(), &mockRevocations{}), "Bearer tampered")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateRejectsRevokedSession(t *testing.T) {
	revocations := &mockRevocations{revoked: map[string]bool{"s1": true}}
	w := performRequest(Authenticate(validAuth(), revocations), "Bearer good-token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrSessionExpired.Code)
}

func TestAuthenticateStoresSessionInContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/protected", Authenticate(validAuth(), nil), func(c *gin.Context) {
		sess, ok := SessionFromContext(c)
		require.True(t, ok)
		assert.Equal(t, "up-tok", sess.UpstreamToken)
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		assert.Equal(t, "u1", claims.UserID)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesForbidsOutsiders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/admin",
		func(c *gin.Context) {
			c.Set(ContextClaimsKey, &models.JWTClaims{UserID: "u2", Role: models.RoleScout})
		},
		RequireRoles(models.RoleAdmin, models.RoleStateAdmin),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAdmitsMatchingRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/admin",
		func(c *gin.Context) {
			c.Set(ContextClaimsKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStateAdmin})
		},
		RequireRoles(models.RoleAdmin, models.RoleStateAdmin),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
