package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/internal/models"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:stats"

type dashboardRepository interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService serves the aggregate dashboard figures with a
// cache-aside Redis layer. Billing reads elsewhere are never cached, the
// dashboard is the only consumer of stale-tolerant data.
type DashboardService struct {
	repo    dashboardRepository
	cache   statsCache
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo dashboardRepository, cache statsCache, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// Stats returns the dashboard aggregates, from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		start := time.Now()
		var cached models.DashboardStats
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	start := time.Now()
	stats, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute dashboard stats")
	}
	s.metrics.ObserveDBQuery("dashboard_stats", time.Since(start))

	if s.cache != nil {
		writeStart := time.Now()
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(writeStart))
	}
	return stats, nil
}

// Invalidate drops the cached dashboard snapshot. Called after payment
// mutations so the dashboard catches up within one request.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
