// Package session owns portal session persistence and the revocation
// broadcast that keeps every running gateway instance in sync: a logout
// handled anywhere terminates the session everywhere.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

const (
	sessionKeyPrefix = "portal:session:"
	refreshKeyPrefix = "portal:refresh:"
)

// Store persists sessions in Redis with a sliding TTL. Refresh tokens are
// stored as a hash-to-session mapping, never in the clear.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore constructs a session store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Create persists a new session and its refresh-token mapping.
func (s *Store) Create(ctx context.Context, sess *models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sess.ID, err)
	}
	if sess.RefreshToken != "" {
		if err := s.client.Set(ctx, refreshKeyPrefix+hashToken(sess.RefreshToken), sess.ID, s.ttl).Err(); err != nil {
			return fmt.Errorf("store refresh mapping for %s: %w", sess.ID, err)
		}
	}
	return nil
}

// Get loads a session by ID. A missing session means it expired or was
// revoked; both surface as a session-expiry error.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// FindByRefreshToken resolves a refresh token back to its session.
func (s *Store) FindByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	id, err := s.client.Get(ctx, refreshKeyPrefix+hashToken(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, fmt.Errorf("resolve refresh token: %w", err)
	}
	return s.Get(ctx, id)
}

// Revoke deletes a session and its refresh mapping.
func (s *Store) Revoke(ctx context.Context, sess *models.Session) error {
	keys := []string{sessionKeyPrefix + sess.ID}
	if sess.RefreshToken != "" {
		keys = append(keys, refreshKeyPrefix+hashToken(sess.RefreshToken))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke session %s: %w", sess.ID, err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
