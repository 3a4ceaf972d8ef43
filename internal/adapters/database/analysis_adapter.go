package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/repositories"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/postgres"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

const analysesTable = "meal_analyses"

var analysisColumns = []interface{}{
	"analysis_id", "user_id", "meal_name", "nutrient_profile", "quantity_g",
	"metadata", "status", "created_at", "expires_at", "converted_to_meal_at",
}

// AnalysisAdapter implements AnalysisRepository on PostgreSQL
type AnalysisAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAnalysisAdapter creates a new analysis adapter
func NewAnalysisAdapter(client *postgres.Client) repositories.AnalysisRepository {
	return &AnalysisAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Save upserts an analysis keyed by analysis_id. Concurrent writers with
// the same id resolve as last write wins.
func (a *AnalysisAdapter) Save(ctx context.Context, analysis *entities.MealAnalysis) error {
	if err := analysis.Validate(); err != nil {
		return err
	}

	profileJSON, err := json.Marshal(analysis.NutrientProfile)
	if err != nil {
		return apperrors.NewInternalError("failed to encode nutrient profile", err)
	}
	metadataJSON, err := json.Marshal(analysis.Metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode analysis metadata", err)
	}

	record := goqu.Record{
		"analysis_id":          analysis.AnalysisID,
		"user_id":              analysis.UserID,
		"meal_name":            analysis.MealName,
		"nutrient_profile":     string(profileJSON),
		"quantity_g":           analysis.QuantityG,
		"metadata":             string(metadataJSON),
		"status":               string(analysis.Status),
		"created_at":           analysis.CreatedAt,
		"expires_at":           analysis.ExpiresAt,
		"converted_to_meal_at": analysis.ConvertedToMealAt,
	}

	query, args, err := a.db.Insert(analysesTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("analysis_id", record)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to save analysis", err)
	}

	return nil
}

// GetByID retrieves an analysis without filtering on expiry
func (a *AnalysisAdapter) GetByID(ctx context.Context, analysisID string) (*entities.MealAnalysis, error) {
	query, args, err := a.db.Select(analysisColumns...).
		From(analysesTable).
		Where(goqu.Ex{"analysis_id": analysisID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	analysis, err := a.scanAnalysis(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("analysis %s not found", analysisID))
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// GetByUser lists a user's analyses, newest first
func (a *AnalysisAdapter) GetByUser(ctx context.Context, userID string, limit int, includeExpired bool) ([]*entities.MealAnalysis, error) {
	ds := a.db.Select(analysisColumns...).
		From(analysesTable).
		Where(goqu.Ex{"user_id": userID})

	if !includeExpired {
		ds = ds.Where(goqu.I("expires_at").Gt(time.Now().UTC()))
	}

	ds = ds.Order(goqu.I("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list analyses", err)
	}
	defer rows.Close()

	var analyses []*entities.MealAnalysis
	for rows.Next() {
		analysis, err := a.scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating analyses", err)
	}

	return analyses, nil
}

// MarkConverted stamps the promotion of an analysis into a permanent
// meal record. The analysis itself is kept until TTL expiry.
func (a *AnalysisAdapter) MarkConverted(ctx context.Context, analysisID, mealID string) error {
	query, args, err := a.db.Update(analysesTable).
		Set(goqu.Record{
			"converted_to_meal_at": time.Now().UTC(),
			"converted_meal_id":    mealID,
		}).
		Where(goqu.Ex{"analysis_id": analysisID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark analysis converted", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("analysis %s not found", analysisID))
	}

	return nil
}

// DeleteExpired sweeps analyses past their TTL. Postgres has no native
// expiring index, so this manual sweep is the primary mechanism here;
// the Redis layer above expires its copies natively.
func (a *AnalysisAdapter) DeleteExpired(ctx context.Context) (int64, error) {
	query, args, err := a.db.Delete(analysesTable).
		Where(goqu.I("expires_at").Lt(time.Now().UTC())).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build sweep query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete expired analyses", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return count, nil
}

// Exists checks presence without materializing the record
func (a *AnalysisAdapter) Exists(ctx context.Context, analysisID string) (bool, error) {
	query, args, err := a.db.Select(goqu.L("1")).
		From(analysesTable).
		Where(goqu.Ex{"analysis_id": analysisID}).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build exists query", err)
	}

	var one int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewInternalError("failed to check analysis existence", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *AnalysisAdapter) scanAnalysis(row rowScanner) (*entities.MealAnalysis, error) {
	analysis := &entities.MealAnalysis{}
	var profileJSON, metadataJSON []byte
	var convertedAt sql.NullTime

	err := row.Scan(
		&analysis.AnalysisID,
		&analysis.UserID,
		&analysis.MealName,
		&profileJSON,
		&analysis.QuantityG,
		&metadataJSON,
		&analysis.Status,
		&analysis.CreatedAt,
		&analysis.ExpiresAt,
		&convertedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan analysis", err)
	}

	if err := json.Unmarshal(profileJSON, &analysis.NutrientProfile); err != nil {
		return nil, apperrors.NewInternalError("failed to decode nutrient profile", err)
	}
	if err := json.Unmarshal(metadataJSON, &analysis.Metadata); err != nil {
		return nil, apperrors.NewInternalError("failed to decode analysis metadata", err)
	}
	if convertedAt.Valid {
		t := convertedAt.Time
		analysis.ConvertedToMealAt = &t
	}

	return analysis, nil
}
