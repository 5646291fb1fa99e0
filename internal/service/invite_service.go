package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

const inviteKeyPrefix = "portal:invite:"

// storedInvite is the persisted invitation record. Only the bcrypt hash of
// the one-time code is ever stored.
type storedInvite struct {
	Invite   models.Invite `json:"invite"`
	CodeHash []byte        `json:"code_hash"`
}

// InviteRepository abstracts invitation persistence.
type InviteRepository interface {
	Save(ctx context.Context, inv storedInvite, ttl time.Duration) error
	Find(ctx context.Context, id string) (*storedInvite, error)
	Delete(ctx context.Context, id string) error
}

// RedisInviteRepository stores invitations in Redis with the invite TTL as
// the key expiry, so expired invitations disappear on their own.
type RedisInviteRepository struct {
	client *redis.Client
}

// NewRedisInviteRepository constructs the production invite repository.
func NewRedisInviteRepository(client *redis.Client) *RedisInviteRepository {
	return &RedisInviteRepository{client: client}
}

func (r *RedisInviteRepository) Save(ctx context.Context, inv storedInvite, ttl time.Duration) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invite %s: %w", inv.Invite.ID, err)
	}
	if err := r.client.Set(ctx, inviteKeyPrefix+inv.Invite.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store invite %s: %w", inv.Invite.ID, err)
	}
	return nil
}

func (r *RedisInviteRepository) Find(ctx context.Context, id string) (*storedInvite, error) {
	raw, err := r.client.Get(ctx, inviteKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrInviteExpired, "")
		}
		return nil, fmt.Errorf("load invite %s: %w", id, err)
	}
	var inv storedInvite
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal invite %s: %w", id, err)
	}
	return &inv, nil
}

func (r *RedisInviteRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, inviteKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete invite %s: %w", id, err)
	}
	return nil
}

// CreateInviteRequest is the admin payload for issuing an invitation.
type CreateInviteRequest struct {
	Email        string          `json:"email" validate:"required,email"`
	Role         models.UserRole `json:"role" validate:"required,oneof=ADMIN STATE_ADMIN LEADER SCOUT"`
	Section      string          `json:"section,omitempty"`
	StateCouncil string          `json:"state_council,omitempty"`
}

// InviteService issues and redeems one-time admin invitations. Codes are
// single use: redemption deletes the record, win or lose the bcrypt check
// stays constant-time per attempt.
type InviteService struct {
	repo      InviteRepository
	ttl       time.Duration
	logger    *zap.Logger
	validator *validator.Validate
	now       func() time.Time
}

// NewInviteService constructs the invite service.
func NewInviteService(repo InviteRepository, ttl time.Duration, logger *zap.Logger) *InviteService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InviteService{
		repo:      repo,
		ttl:       ttl,
		logger:    logger,
		validator: validator.New(),
		now:       time.Now,
	}
}

// Create issues a new invitation. The returned code is shown once and never
// recoverable afterwards.
func (s *InviteService) Create(ctx context.Context, req CreateInviteRequest, invitedBy string) (*models.Invite, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invite payload")
	}

	code := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash invite code")
	}

	createdAt := s.now()
	invite := models.Invite{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Role:         req.Role,
		Section:      req.Section,
		StateCouncil: req.StateCouncil,
		InvitedBy:    invitedBy,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(s.ttl),
	}

	if err := s.repo.Save(ctx, storedInvite{Invite: invite, CodeHash: hash}, s.ttl); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invite")
	}

	s.logger.Info("invite created",
		zap.String("invite_id", invite.ID),
		zap.String("email", invite.Email),
		zap.String("role", string(invite.Role)),
		zap.String("invited_by", invitedBy))

	return &invite, code, nil
}

// Redeem consumes an invitation. A wrong code burns the invite just like a
// right one would; an invitation survives at most one redemption attempt.
func (s *InviteService) Redeem(ctx context.Context, id, code string) (*models.Invite, error) {
	stored, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume invite")
	}

	if s.now().After(stored.Invite.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrInviteExpired, "")
	}

	if err := bcrypt.CompareHashAndPassword(stored.CodeHash, []byte(code)); err != nil {
		s.logger.Warn("invite redemption failed", zap.String("invite_id", id))
		return nil, appErrors.Clone(appErrors.ErrInviteExpired, "")
	}

	s.logger.Info("invite redeemed", zap.String("invite_id", id), zap.String("email", stored.Invite.Email))
	invite := stored.Invite
	return &invite, nil
}
