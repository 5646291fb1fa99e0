package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

type mockRosterBoundary struct {
	statsFunc func(ctx context.Context, token string) (*models.RosterPendingStats, error)
}

func (m *mockRosterBoundary) PendingStats(ctx context.Context, token string) (*models.RosterPendingStats, error) {
	return m.statsFunc(ctx, token)
}

// memoryCacheRepo is an in-process CacheRepository for tests.
type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string][]byte{}
	return nil
}

func TestPendingStatsCachesAcrossCalls(t *testing.T) {
	calls := 0
	boundary := &mockRosterBoundary{
		statsFunc: func(_ context.Context, _ string) (*models.RosterPendingStats, error) {
			calls++
			return &models.RosterPendingStats{Events: 3, Trainings: 1, Combined: models.CombinedStats{Total: 4, Pending: 4}}, nil
		},
	}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewRosterService(boundary, cache, time.Minute, nil)

	first, err := svc.PendingStats(context.Background(), "tok")
	require.NoError(t, err)
	second, err := svc.PendingStats(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call must come from cache")
	assert.Equal(t, first, second)
}

func TestPendingStatsBypassesDisabledCache(t *testing.T) {
	calls := 0
	boundary := &mockRosterBoundary{
		statsFunc: func(_ context.Context, _ string) (*models.RosterPendingStats, error) {
			calls++
			return &models.RosterPendingStats{Events: calls}, nil
		},
	}
	cache := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewRosterService(boundary, cache, time.Minute, nil)

	_, err := svc.PendingStats(context.Background(), "tok")
	require.NoError(t, err)
	_, err = svc.PendingStats(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestInvalidateStatsForcesRefetch(t *testing.T) {
	calls := 0
	boundary := &mockRosterBoundary{
		statsFunc: func(_ context.Context, _ string) (*models.RosterPendingStats, error) {
			calls++
			return &models.RosterPendingStats{Events: calls}, nil
		},
	}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewRosterService(boundary, cache, time.Minute, nil)

	first, err := svc.PendingStats(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Events)

	svc.InvalidateStats(context.Background())

	second, err := svc.PendingStats(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Events)
	assert.Equal(t, 2, calls)
}

func TestPendingStatsSurfacesUpstreamError(t *testing.T) {
	boundary := &mockRosterBoundary{
		statsFunc: func(_ context.Context, _ string) (*models.RosterPendingStats, error) {
			return nil, appErrors.ErrUpstreamUnavailable
		},
	}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewRosterService(boundary, cache, time.Minute, nil)

	_, err := svc.PendingStats(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstreamUnavailable.Code, appErrors.FromError(err).Code)
}
