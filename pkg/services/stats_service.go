package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/repositories"
)

const statsCacheKey = "delegation-engine:stats"

// StatsService serves the dashboard read model. Aggregates are cached in
// Redis when a client is configured; a nil client disables caching.
type StatsService interface {
	GetStats(ctx context.Context) (*models.DelegationStats, error)

	// RecentActivity returns the newest ledger events across all
	// delegations, for the dashboard activity feed.
	RecentActivity(ctx context.Context, limit int) ([]*models.AuditEvent, error)
}

type statsService struct {
	repo         repositories.DelegationRepository
	usageRepo    repositories.UsageRepository
	auditRepo    repositories.AuditRepository
	cache        *redis.Client
	cacheTTL     time.Duration
	expiringSoon time.Duration
	logger       *zap.Logger
}

// NewStatsService creates a new StatsService. cache may be nil.
func NewStatsService(
	repo repositories.DelegationRepository,
	usageRepo repositories.UsageRepository,
	auditRepo repositories.AuditRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
	expiringSoon time.Duration,
	logger *zap.Logger,
) StatsService {
	return &statsService{
		repo:         repo,
		usageRepo:    usageRepo,
		auditRepo:    auditRepo,
		cache:        cache,
		cacheTTL:     cacheTTL,
		expiringSoon: expiringSoon,
		logger:       logger.Named("stats-service"),
	}
}

var _ StatsService = (*statsService)(nil)

func (s *statsService) GetStats(ctx context.Context) (*models.DelegationStats, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	stats, err := s.repo.CountByEffectiveStatus(ctx, time.Now().UTC(), s.expiringSoon)
	if err != nil {
		return nil, err
	}

	count, total, err := s.usageRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalUsageCount = count
	stats.TotalUsageAmount = total

	s.toCache(ctx, stats)
	return stats, nil
}

func (s *statsService) RecentActivity(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.auditRepo.GetRecent(ctx, limit)
}

func (s *statsService) fromCache(ctx context.Context) *models.DelegationStats {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Stats cache read failed", zap.Error(err))
		}
		return nil
	}
	var stats models.DelegationStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.logger.Warn("Stats cache entry malformed", zap.Error(err))
		return nil
	}
	return &stats
}

func (s *statsService) toCache(ctx context.Context, stats *models.DelegationStats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("Stats cache write failed", zap.Error(err))
	}
}
