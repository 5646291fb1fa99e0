package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/models"
)

const rosterStatsCacheKey = "portal:roster:pending-stats"

// rosterBoundary is the slice of the membership client the roster service
// depends on.
type rosterBoundary interface {
	PendingStats(ctx context.Context, token string) (*models.RosterPendingStats, error)
}

// RosterService serves roster-wide review statistics with a short-lived
// cache in front of the membership API. Approve/reject mutations invalidate
// the entry; instances that miss the invalidation still converge within one
// TTL window.
type RosterService struct {
	upstream rosterBoundary
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewRosterService constructs the roster statistics service.
func NewRosterService(boundary rosterBoundary, cache *CacheService, ttl time.Duration, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RosterService{upstream: boundary, cache: cache, ttl: ttl, logger: logger}
}

// PendingStats returns the roster-wide counts, from cache when fresh.
func (s *RosterService) PendingStats(ctx context.Context, token string) (*models.RosterPendingStats, error) {
	var cached models.RosterPendingStats
	if hit, err := s.cache.Get(ctx, rosterStatsCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	stats, err := s.upstream.PendingStats(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, rosterStatsCacheKey, stats, s.ttl); err != nil {
		s.logger.Warn("failed to cache roster stats", zap.Error(err))
	}
	return stats, nil
}

// InvalidateStats drops the cached numbers after a review decision so the
// next read reflects it.
func (s *RosterService) InvalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, rosterStatsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate roster stats", zap.Error(err))
	}
}
