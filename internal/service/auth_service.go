package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/session"
	"github.com/scoutbase/portal-api/internal/upstream"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

// credentialVerifier is the slice of the membership client auth depends on.
type credentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*upstream.Profile, string, error)
}

// sessionStore abstracts session persistence.
type sessionStore interface {
	Create(ctx context.Context, sess *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, sess *models.Session) error
}

// revocationPublisher fans a terminated session out to every running
// instance.
type revocationPublisher interface {
	Publish(ctx context.Context, ev session.Event) error
}

// AuthServiceParams bundles auth service dependencies.
type AuthServiceParams struct {
	Upstream  credentialVerifier
	Sessions  sessionStore
	Events    revocationPublisher
	Secret    string
	Expiry    time.Duration
	Issuer    string
	Logger    *zap.Logger
	Validator *validator.Validate
	Now       func() time.Time
}

// AuthService issues portal tokens backed by upstream credential checks and
// revocable server-side sessions. The access token carries the session ID;
// a broadcast revocation kills the token everywhere before it expires.
type AuthService struct {
	upstream  credentialVerifier
	sessions  sessionStore
	events    revocationPublisher
	secret    []byte
	expiry    time.Duration
	issuer    string
	logger    *zap.Logger
	validator *validator.Validate
	now       func() time.Time
}

// NewAuthService constructs the auth service.
func NewAuthService(params AuthServiceParams) *AuthService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	v := params.Validator
	if v == nil {
		v = validator.New()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &AuthService{
		upstream:  params.Upstream,
		sessions:  params.Sessions,
		events:    params.Events,
		secret:    []byte(params.Secret),
		expiry:    expiry,
		issuer:    params.Issuer,
		logger:    logger,
		validator: v,
		now:       now,
	}
}

// Login verifies credentials upstream, creates a session and issues a
// portal token pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	profile, upstreamToken, err := s.upstream.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("login rejected", zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue refresh token")
	}

	issuedAt := s.now()
	sess := &models.Session{
		ID:            uuid.NewString(),
		UserID:        profile.ID,
		Email:         profile.Email,
		Role:          profile.Role,
		UpstreamToken: upstreamToken,
		RefreshToken:  refreshToken,
		CreatedAt:     issuedAt,
		ExpiresAt:     issuedAt.Add(s.expiry),
		IPAddress:     req.IP,
		UserAgent:     req.UserAgent,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	accessToken, err := s.signToken(sess, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Info("user logged in",
		zap.String("user_id", profile.ID),
		zap.String("session_id", sess.ID),
		zap.String("role", string(profile.Role)))

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.expiry.Seconds()),
		IssuedAt:     issuedAt,
		User: models.UserInfo{
			ID:           profile.ID,
			Email:        profile.Email,
			FullName:     profile.FullName,
			Role:         profile.Role,
			Section:      profile.Section,
			StateCouncil: profile.StateCouncil,
		},
	}, nil
}

// Logout revokes the session and broadcasts the revocation. Logging out a
// session that is already gone is a no-op, not an error: the second tab
// lands on the login screen without bouncing.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrSessionExpired.Code {
			return nil
		}
		return err
	}

	if err := s.sessions.Revoke(ctx, sess); err != nil {
		return err
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, session.Event{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Reason:    "logout",
		}); err != nil {
			s.logger.Warn("failed to broadcast revocation", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	s.logger.Info("user logged out", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID))
	return nil
}

// Refresh exchanges a valid refresh token for a fresh access token bound to
// the same session.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	sess, err := s.sessions.FindByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	if !sess.ExpiresAt.IsZero() && issuedAt.After(sess.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
	}

	accessToken, err := s.signToken(sess, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    int64(s.expiry.Seconds()),
		IssuedAt:     issuedAt,
		User: models.UserInfo{
			ID:    sess.UserID,
			Email: sess.Email,
			Role:  sess.Role,
		},
	}, nil
}

// ParseToken validates the token signature and expiry and returns its
// claims. Liveness of the backing session is checked separately, against
// the store and the revocation watcher.
func (s *AuthService) ParseToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is not bound to a session")
	}
	return claims, nil
}

// Session loads the live session backing a validated token.
func (s *AuthService) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

func (s *AuthService) signToken(sess *models.Session, issuedAt time.Time) (string, error) {
	claims := models.JWTClaims{
		UserID:    sess.UserID,
		Email:     sess.Email,
		Role:      sess.Role,
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.expiry)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
