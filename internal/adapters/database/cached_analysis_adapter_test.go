package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/cache"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

// countingRepo is an in-memory store that tracks how often the
// decorator falls through to it.
type countingRepo struct {
	records      map[string]*entities.MealAnalysis
	getCalls     int
	existsCalls  int
	convertCalls int
}

func newCountingRepo() *countingRepo {
	return &countingRepo{records: map[string]*entities.MealAnalysis{}}
}

func (r *countingRepo) Save(_ context.Context, analysis *entities.MealAnalysis) error {
	copied := *analysis
	r.records[analysis.AnalysisID] = &copied
	return nil
}

func (r *countingRepo) GetByID(_ context.Context, analysisID string) (*entities.MealAnalysis, error) {
	r.getCalls++
	record, ok := r.records[analysisID]
	if !ok {
		return nil, apperrors.NewNotFoundError("analysis not found")
	}
	copied := *record
	return &copied, nil
}

func (r *countingRepo) GetByUser(_ context.Context, userID string, limit int, _ bool) ([]*entities.MealAnalysis, error) {
	var out []*entities.MealAnalysis
	for _, record := range r.records {
		if record.UserID == userID && len(out) < limit {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *countingRepo) MarkConverted(_ context.Context, analysisID, _ string) error {
	r.convertCalls++
	record, ok := r.records[analysisID]
	if !ok {
		return apperrors.NewNotFoundError("analysis not found")
	}
	now := time.Now().UTC()
	record.ConvertedToMealAt = &now
	return nil
}

func (r *countingRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (r *countingRepo) Exists(_ context.Context, analysisID string) (bool, error) {
	r.existsCalls++
	_, ok := r.records[analysisID]
	return ok, nil
}

func newTestAnalysis(t *testing.T, ttl time.Duration) *entities.MealAnalysis {
	t.Helper()
	profile := entities.NutrientProfile{
		Calories:   89,
		Protein:    1.1,
		Carbs:      22.8,
		Fat:        0.33,
		Source:     entities.SourceUSDA,
		Confidence: 0.95,
		QuantityG:  100,
	}
	analysis, err := entities.NewMealAnalysis(
		"", "user-1", "Banana", profile, 100,
		entities.MealAnalysisMetadata{Source: entities.AnalysisSourceUSDASearch, Confidence: 0.95},
		entities.AnalysisCompleted, ttl,
	)
	require.NoError(t, err)
	return analysis
}

func TestCachedAnalysisAdapter_SaveThenGetServesFromCache(t *testing.T) {
	repo := newCountingRepo()
	adapter := NewCachedAnalysisAdapter(repo, cache.NewMemoryAdapter(), nil)
	ctx := context.Background()

	analysis := newTestAnalysis(t, 24*time.Hour)
	require.NoError(t, adapter.Save(ctx, analysis))

	got, err := adapter.GetByID(ctx, analysis.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, analysis.AnalysisID, got.AnalysisID)
	assert.Equal(t, "Banana", got.MealName)
	assert.Equal(t, 0, repo.getCalls)
}

func TestCachedAnalysisAdapter_CacheMissFallsThrough(t *testing.T) {
	repo := newCountingRepo()
	adapter := NewCachedAnalysisAdapter(repo, cache.NewMemoryAdapter(), nil)
	ctx := context.Background()

	analysis := newTestAnalysis(t, 24*time.Hour)
	require.NoError(t, repo.Save(ctx, analysis))

	got, err := adapter.GetByID(ctx, analysis.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, analysis.AnalysisID, got.AnalysisID)
	assert.Equal(t, 1, repo.getCalls)

	// Repopulated on miss; next read is cache-only.
	_, err = adapter.GetByID(ctx, analysis.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)
}

func TestCachedAnalysisAdapter_ExpiredAnalysisNotCached(t *testing.T) {
	repo := newCountingRepo()
	adapter := NewCachedAnalysisAdapter(repo, cache.NewMemoryAdapter(), nil)
	ctx := context.Background()

	analysis := newTestAnalysis(t, 24*time.Hour)
	analysis.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, adapter.Save(ctx, analysis))

	_, err := adapter.GetByID(ctx, analysis.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)
}

func TestCachedAnalysisAdapter_ExistsPrefersCache(t *testing.T) {
	repo := newCountingRepo()
	adapter := NewCachedAnalysisAdapter(repo, cache.NewMemoryAdapter(), nil)
	ctx := context.Background()

	analysis := newTestAnalysis(t, 24*time.Hour)
	require.NoError(t, adapter.Save(ctx, analysis))

	exists, err := adapter.Exists(ctx, analysis.AnalysisID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 0, repo.existsCalls)

	exists, err = adapter.Exists(ctx, "analysis_ffffffffffff")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1, repo.existsCalls)
}

func TestCachedAnalysisAdapter_MarkConvertedInvalidatesCache(t *testing.T) {
	repo := newCountingRepo()
	adapter := NewCachedAnalysisAdapter(repo, cache.NewMemoryAdapter(), nil)
	ctx := context.Background()

	analysis := newTestAnalysis(t, 24*time.Hour)
	require.NoError(t, adapter.Save(ctx, analysis))

	require.NoError(t, adapter.MarkConverted(ctx, analysis.AnalysisID, "meal-42"))

	got, err := adapter.GetByID(ctx, analysis.AnalysisID)
	require.NoError(t, err)
	assert.NotNil(t, got.ConvertedToMealAt)
	assert.Equal(t, 1, repo.getCalls)
}

func TestCachedAnalysisAdapter_MarkConvertedMissingAnalysis(t *testing.T) {
	repo := newCountingRepo()
	adapter := NewCachedAnalysisAdapter(repo, cache.NewMemoryAdapter(), nil)

	err := adapter.MarkConverted(context.Background(), "analysis_ffffffffffff", "meal-1")
	assert.True(t, apperrors.IsNotFound(err))
}
