package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/session"
	"github.com/scoutbase/portal-api/internal/upstream"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

type mockVerifier struct {
	verifyFunc func(ctx context.Context, email, password string) (*upstream.Profile, string, error)
}

func (m *mockVerifier) VerifyCredentials(ctx context.Context, email, password string) (*upstream.Profile, string, error) {
	return m.verifyFunc(ctx, email, password)
}

type mockSessionStore struct {
	sessions map[string]*models.Session
	byToken  map[string]string
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*models.Session{}, byToken: map[string]string{}}
}

func (m *mockSessionStore) Create(_ context.Context, sess *models.Session) error {
	m.sessions[sess.ID] = sess
	if sess.RefreshToken != "" {
		m.byToken[sess.RefreshToken] = sess.ID
	}
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
	}
	return sess, nil
}

func (m *mockSessionStore) FindByRefreshToken(_ context.Context, token string) (*models.Session, error) {
	id, ok := m.byToken[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	}
	return m.Get(context.Background(), id)
}

func (m *mockSessionStore) Revoke(_ context.Context, sess *models.Session) error {
	delete(m.sessions, sess.ID)
	delete(m.byToken, sess.RefreshToken)
	return nil
}

type mockPublisher struct {
	events []session.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev session.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func fixedVerifier() *mockVerifier {
	return &mockVerifier{
		verifyFunc: func(_ context.Context, email, password string) (*upstream.Profile, string, error) {
			if email != "leader@scouts.org" || password != "correct-horse" {
				return nil, "", appErrors.ErrInvalidCredentials
			}
			return &upstream.Profile{ID: "u1", Email: email, FullName: "Jamie Leader", Role: models.RoleAdmin}, "upstream-token", nil
		},
	}
}

func newAuthService(store *mockSessionStore, publisher *mockPublisher) *AuthService {
	return NewAuthService(AuthServiceParams{
		Upstream: fixedVerifier(),
		Sessions: store,
		Events:   publisher,
		Secret:   "test-secret",
		Expiry:   time.Hour,
		Issuer:   "scout-portal",
	})
}

func TestLoginIssuesSessionBoundToken(t *testing.T) {
	store := newMockSessionStore()
	svc := newAuthService(store, &mockPublisher{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "leader@scouts.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Jamie Leader", resp.User.FullName)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	require.NotEmpty(t, claims.SessionID)

	sess, err := store.Get(context.Background(), claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "upstream-token", sess.UpstreamToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(newMockSessionStore(), &mockPublisher{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "leader@scouts.org",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	svc := newAuthService(newMockSessionStore(), &mockPublisher{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesAndBroadcasts(t *testing.T) {
	store := newMockSessionStore()
	publisher := &mockPublisher{}
	svc := newAuthService(store, publisher)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "leader@scouts.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims.SessionID))

	_, err = store.Get(context.Background(), claims.SessionID)
	require.Error(t, err)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, claims.SessionID, publisher.events[0].SessionID)
	assert.Equal(t, "logout", publisher.events[0].Reason)
}

func TestLogoutOfMissingSessionIsNoOp(t *testing.T) {
	publisher := &mockPublisher{}
	svc := newAuthService(newMockSessionStore(), publisher)

	require.NoError(t, svc.Logout(context.Background(), "already-gone"))
	assert.Empty(t, publisher.events)
}

func TestRefreshReissuesAccessToken(t *testing.T) {
	store := newMockSessionStore()
	svc := newAuthService(store, &mockPublisher{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "leader@scouts.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)

	claims, err := svc.ParseToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	svc := newAuthService(newMockSessionStore(), &mockPublisher{})

	_, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	svc := newAuthService(newMockSessionStore(), &mockPublisher{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "leader@scouts.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	_, err = svc.ParseToken(resp.AccessToken + "x")
	require.Error(t, err)

	other := NewAuthService(AuthServiceParams{
		Upstream: fixedVerifier(),
		Sessions: newMockSessionStore(),
		Secret:   "different-secret",
		Expiry:   time.Hour,
	})
	_, err = other.ParseToken(resp.AccessToken)
	require.Error(t, err)
}
