package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/middleware"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/service"
	"github.com/scoutbase/portal-api/internal/session"
	"github.com/scoutbase/portal-api/internal/upstream"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyCredentials(_ context.Context, email, password string) (*upstream.Profile, string, error) {
	if email != "leader@scouts.org" || password != "correct-horse" {
		return nil, "", appErrors.ErrInvalidCredentials
	}
	return &upstream.Profile{ID: "u1", Email: email, FullName: "Jamie Leader", Role: models.RoleAdmin}, "up-tok", nil
}

type fakeSessions struct {
	sessions map[string]*models.Session
}

func (f *fakeSessions) Create(_ context.Context, sess *models.Session) error {
	f.sessions[sess.ID] = sess
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*models.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
	}
	return sess, nil
}

func (f *fakeSessions) FindByRefreshToken(_ context.Context, token string) (*models.Session, error) {
	for _, sess := range f.sessions {
		if sess.RefreshToken == token {
			return sess, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
}

func (f *fakeSessions) Revoke(_ context.Context, sess *models.Session) error {
	delete(f.sessions, sess.ID)
	return nil
}

type recordingPublisher struct {
	events []session.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev session.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *service.AuthService, *recordingPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	publisher := &recordingPublisher{}
	auth := service.NewAuthService(service.AuthServiceParams{
		Upstream: fakeVerifier{},
		Sessions: &fakeSessions{sessions: map[string]*models.Session{}},
		Events:   publisher,
		Secret:   "test-secret",
		Expiry:   time.Hour,
		Issuer:   "scout-portal",
	})
	h := NewAuthHandler(auth, nil, nil)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", middleware.Authenticate(auth, nil), h.Logout)
	r.GET("/auth/me", middleware.Authenticate(auth, nil), h.Me)
	return r, auth, publisher
}

func login(t *testing.T, r *gin.Engine) models.LoginResponse {
	t.Helper()
	body, _ := json.Marshal(gin.H{"email": "leader@scouts.org", "password": "correct-horse"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestLoginEndpointIssuesTokens(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	resp := login(t, r)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Jamie Leader", resp.User.FullName)
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	body, _ := json.Marshal(gin.H{"email": "leader@scouts.org", "password": "wrong-password"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInvalidCredentials.Code)
}

func TestLogoutKillsTheSessionEverywhere(t *testing.T) {
	r, _, publisher := newAuthRouter(t)
	resp := login(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "logout", publisher.events[0].Reason)

	// the token no longer authenticates: the session behind it is gone
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrSessionExpired.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	resp := login(t, r)

	body, _ := json.Marshal(gin.H{"refresh_token": resp.RefreshToken})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
}

func TestMeEndpoint(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	resp := login(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leader@scouts.org")
}
