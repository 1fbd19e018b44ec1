package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

type mockDashboardRepo struct {
	stats models.DashboardStats
	calls int
}

func (m *mockDashboardRepo) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	m.calls++
	stats := m.stats
	return &stats, nil
}

type memoryCache struct {
	data    map[string][]byte
	deleted []string
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	m.data = nil
	return nil
}

func TestDashboardServiceStatsCachesResult(t *testing.T) {
	repo := &mockDashboardRepo{stats: models.DashboardStats{ActiveStudents: 120, TotalCollected: 54000}}
	cache := &memoryCache{}
	svc := NewDashboardService(repo, cache, NewMetricsService(), nil, time.Minute)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, stats.ActiveStudents)
	assert.Equal(t, 1, repo.calls)

	stats, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, stats.ActiveStudents)
	assert.Equal(t, 1, repo.calls, "second read should come from cache")
}

func TestDashboardServiceInvalidateDropsCache(t *testing.T) {
	repo := &mockDashboardRepo{stats: models.DashboardStats{ActiveStudents: 120}}
	cache := &memoryCache{}
	svc := NewDashboardService(repo, cache, NewMetricsService(), nil, time.Minute)

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)

	svc.Invalidate(context.Background())
	assert.Contains(t, cache.deleted, "dashboard:*")

	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardServiceStatsWithoutCache(t *testing.T) {
	repo := &mockDashboardRepo{stats: models.DashboardStats{ActiveStudents: 5}}
	svc := NewDashboardService(repo, nil, nil, nil, 0)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.ActiveStudents)
}
