package repositories

import (
	"context"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
)

// AnalysisRepository is the TTL-bound idempotent store for meal analyses
type AnalysisRepository interface {
	// Save upserts an analysis keyed by its analysis_id (last write wins)
	Save(ctx context.Context, analysis *entities.MealAnalysis) error

	// GetByID retrieves an analysis without filtering on expiry; the
	// caller decides what expiry means for its use case.
	GetByID(ctx context.Context, analysisID string) (*entities.MealAnalysis, error)

	// GetByUser lists a user's analyses sorted created_at DESC
	GetByUser(ctx context.Context, userID string, limit int, includeExpired bool) ([]*entities.MealAnalysis, error)

	// MarkConverted records promotion to a permanent meal record.
	// Returns a NOT_FOUND error when the analysis is absent.
	MarkConverted(ctx context.Context, analysisID, mealID string) error

	// DeleteExpired removes analyses past their TTL and returns the count
	DeleteExpired(ctx context.Context) (int64, error)

	// Exists is a cheap existence check that must not materialize the
	// full record; it backs the orchestrator's idempotency protocol.
	Exists(ctx context.Context, analysisID string) (bool, error)
}
