package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/repositories"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
)

// CachedAnalysisAdapter wraps the Postgres analysis store with a cache
// whose entry TTL tracks each analysis's remaining lifetime. With Redis
// behind the CacheProvider this gives the store a natively expiring
// index: Exists and GetByID usually never touch Postgres, and cached
// copies disappear on their own when the analysis expires.
type CachedAnalysisAdapter struct {
	adapter repositories.AnalysisRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedAnalysisAdapter creates a new cached analysis adapter
func NewCachedAnalysisAdapter(adapter repositories.AnalysisRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.AnalysisRepository {
	return &CachedAnalysisAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

func analysisCacheKey(analysisID string) string {
	return "analysis:" + analysisID
}

// Save writes through to the store, then caches the record for its
// remaining TTL.
func (a *CachedAnalysisAdapter) Save(ctx context.Context, analysis *entities.MealAnalysis) error {
	if err := a.adapter.Save(ctx, analysis); err != nil {
		return err
	}

	remaining := int(time.Until(analysis.ExpiresAt).Seconds())
	if remaining <= 0 {
		return nil
	}
	if data, err := json.Marshal(analysis); err == nil {
		if err := a.cache.Set(ctx, analysisCacheKey(analysis.AnalysisID), data, remaining); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("analysis_id", analysis.AnalysisID).
				Msg("failed to cache analysis")
		}
	}
	return nil
}

// GetByID serves from cache when possible
func (a *CachedAnalysisAdapter) GetByID(ctx context.Context, analysisID string) (*entities.MealAnalysis, error) {
	key := analysisCacheKey(analysisID)
	if cached, err := a.cache.Get(ctx, key); err == nil {
		var analysis entities.MealAnalysis
		if err := json.Unmarshal(cached, &analysis); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "analysis")
			return &analysis, nil
		}
	}
	observability.RecordCacheMiss(ctx, a.metrics, "analysis")

	analysis, err := a.adapter.GetByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	remaining := int(time.Until(analysis.ExpiresAt).Seconds())
	if remaining > 0 {
		if data, err := json.Marshal(analysis); err == nil {
			_ = a.cache.Set(ctx, key, data, remaining)
		}
	}
	return analysis, nil
}

// GetByUser always goes to the store; user listings are not cached
// because any save would invalidate them.
func (a *CachedAnalysisAdapter) GetByUser(ctx context.Context, userID string, limit int, includeExpired bool) ([]*entities.MealAnalysis, error) {
	return a.adapter.GetByUser(ctx, userID, limit, includeExpired)
}

// MarkConverted updates the store and drops the stale cached copy
func (a *CachedAnalysisAdapter) MarkConverted(ctx context.Context, analysisID, mealID string) error {
	if err := a.adapter.MarkConverted(ctx, analysisID, mealID); err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, analysisCacheKey(analysisID)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("analysis_id", analysisID).
			Msg("failed to invalidate cached analysis")
	}
	return nil
}

// DeleteExpired sweeps the store; cached copies expire on their own
func (a *CachedAnalysisAdapter) DeleteExpired(ctx context.Context) (int64, error) {
	return a.adapter.DeleteExpired(ctx)
}

// Exists prefers the cache's native existence check
func (a *CachedAnalysisAdapter) Exists(ctx context.Context, analysisID string) (bool, error) {
	if ok, err := a.cache.Exists(ctx, analysisCacheKey(analysisID)); err == nil && ok {
		return true, nil
	}
	return a.adapter.Exists(ctx, analysisID)
}
