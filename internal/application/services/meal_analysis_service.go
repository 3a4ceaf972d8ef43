package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/repositories"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

// failedAnalysisTTL keeps failure tombstones queryable for audit
// without letting them linger a full day.
const failedAnalysisTTL = time.Hour

// barcodeFallbackConfidencePenalty discounts results that came through
// the free-text fallback instead of a real barcode match.
const barcodeFallbackConfidencePenalty = 0.8

// MealAnalysisService orchestrates the analysis pipelines: barcode,
// free-text search and photo recognition, each ending in a persisted
// TTL-bound MealAnalysis.
//
// Idempotency is check-then-act: a supplied analysis_id that already
// exists short-circuits before any upstream call. Two concurrent
// requests bearing the same fresh id can both run enrichment; the
// store's keyed upsert resolves that as last-write-wins.
type MealAnalysisService struct {
	repo               repositories.AnalysisRepository
	merge              *BarcodeMergeService
	enrichment         *NutritionEnrichmentService
	recognizer         providers.FoodRecognizer
	metrics            *observability.Metrics
	eventBus           providers.EventBus
	analysisTTL        time.Duration
	maxConcurrent      int
	visionModelVersion string
}

// NewMealAnalysisService creates the orchestrator. analysisTTL <= 0
// selects the default 24h lifetime; maxConcurrent <= 0 selects 4
// parallel per-item lookups on the photo path.
func NewMealAnalysisService(
	repo repositories.AnalysisRepository,
	merge *BarcodeMergeService,
	enrichment *NutritionEnrichmentService,
	recognizer providers.FoodRecognizer,
	metrics *observability.Metrics,
	analysisTTL time.Duration,
	maxConcurrent int,
	visionModelVersion string,
) *MealAnalysisService {
	if analysisTTL <= 0 {
		analysisTTL = entities.DefaultAnalysisTTL
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &MealAnalysisService{
		repo:               repo,
		merge:              merge,
		enrichment:         enrichment,
		recognizer:         recognizer,
		metrics:            metrics,
		analysisTTL:        analysisTTL,
		maxConcurrent:      maxConcurrent,
		visionModelVersion: visionModelVersion,
	}
}

// WithEventBus enables analysis lifecycle event publishing. Publishing
// is best-effort: a bus failure never fails the analysis.
func (s *MealAnalysisService) WithEventBus(bus providers.EventBus) *MealAnalysisService {
	s.eventBus = bus
	return s
}

// AnalyzeFromBarcode runs the barcode pipeline: merge engine first, a
// free-text search using the barcode as query second, and a persisted
// FAILED tombstone plus a composed error when both sources come back
// empty.
func (s *MealAnalysisService) AnalyzeFromBarcode(ctx context.Context, userID, barcode string, quantityG float64, analysisID string) (*entities.MealAnalysis, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)
	ctx, span := observability.StartSpan(ctx, "analyze_from_barcode")
	defer span.End()

	if quantityG <= 0 {
		quantityG = entities.DefaultQuantityG
	}
	if existing, err := s.replayExisting(ctx, analysisID); existing != nil || err != nil {
		return existing, err
	}
	if analysisID == "" {
		analysisID = entities.NewAnalysisID()
	}

	if cached := s.enrichment.CachedBarcodeProfile(ctx, barcode); cached != nil {
		scaled, err := cached.ScaleTo(quantityG)
		if err == nil {
			return s.persistAnalysis(ctx, analysisID, userID, fmt.Sprintf("Product %s", barcode), scaled, quantityG,
				entities.MealAnalysisMetadata{
					Source:           entities.AnalysisSourceBarcodeScan,
					Confidence:       scaled.Confidence,
					ProcessingTimeMS: time.Since(start).Milliseconds(),
					BarcodeValue:     barcode,
				},
				entities.AnalysisCompleted, s.analysisTTL, start)
		}
	}

	enriched, mergeErr := s.merge.Enrich(ctx, barcode)
	if mergeErr == nil {
		s.enrichment.CacheBarcodeProfile(ctx, barcode, enriched.Profile)

		scaled, err := enriched.Profile.ScaleTo(quantityG)
		if err != nil {
			return nil, err
		}

		mealName := enriched.ProductName
		if mealName == "" {
			mealName = fmt.Sprintf("Product %s", barcode)
		}
		return s.persistAnalysis(ctx, analysisID, userID, mealName, scaled, quantityG,
			entities.MealAnalysisMetadata{
				Source:           entities.AnalysisSourceBarcodeScan,
				Confidence:       scaled.Confidence,
				ProcessingTimeMS: time.Since(start).Milliseconds(),
				ImageURL:         enriched.ImageURL,
				BarcodeValue:     barcode,
			},
			entities.AnalysisCompleted, s.analysisTTL, start)
	}

	logger.Warn().Err(mergeErr).Str("barcode", barcode).Msg("barcode merge failed, trying free-text fallback")
	observability.RecordFallback(ctx, s.metrics, "barcode_merge", "usda_search")

	profile, description, searchErr := s.enrichment.SearchProfile(ctx, barcode, quantityG)
	if searchErr == nil {
		profile.Confidence = entities.Round2(profile.Confidence * barcodeFallbackConfidencePenalty)
		return s.persistAnalysis(ctx, analysisID, userID, description, profile, quantityG,
			entities.MealAnalysisMetadata{
				Source:           entities.AnalysisSourceBarcodeScan,
				Confidence:       profile.Confidence,
				ProcessingTimeMS: time.Since(start).Milliseconds(),
				BarcodeValue:     barcode,
				FallbackReason:   mergeErr.Error(),
			},
			entities.AnalysisPartial, s.analysisTTL, start)
	}

	// Both sources exhausted: persist an auditable tombstone, then
	// surface the composed failure to the caller.
	composed := apperrors.NewNotFoundError(fmt.Sprintf("Barcode: %s | USDA: %s", mergeErr.Error(), searchErr.Error()))

	tombstoneProfile := entities.NutrientProfile{
		Source:    entities.SourceEstimated,
		QuantityG: quantityG,
	}
	if _, err := s.persistAnalysis(ctx, analysisID, userID, fmt.Sprintf("Unresolved barcode %s", barcode), tombstoneProfile, quantityG,
		entities.MealAnalysisMetadata{
			Source:           entities.AnalysisSourceBarcodeScan,
			Confidence:       0,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
			BarcodeValue:     barcode,
			FallbackReason:   composed.Error(),
		},
		entities.AnalysisFailed, failedAnalysisTTL, start); err != nil {
		logger.Error().Err(err).Str("analysis_id", analysisID).Msg("failed to persist failure tombstone")
	}

	return nil, composed
}

// AnalyzeFromUSDASearch resolves a free-text query through the food
// database; zero hits surface as an error.
func (s *MealAnalysisService) AnalyzeFromUSDASearch(ctx context.Context, userID, query string, quantityG float64, analysisID string) (*entities.MealAnalysis, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "analyze_from_usda_search")
	defer span.End()

	if quantityG <= 0 {
		quantityG = entities.DefaultQuantityG
	}
	if existing, err := s.replayExisting(ctx, analysisID); existing != nil || err != nil {
		return existing, err
	}

	profile, description, err := s.enrichment.SearchProfile(ctx, query, quantityG)
	if err != nil {
		observability.RecordAnalysisMetric(ctx, s.metrics, string(entities.AnalysisSourceUSDASearch), string(entities.AnalysisFailed), time.Since(start))
		return nil, err
	}

	return s.persistAnalysis(ctx, analysisID, userID, description, profile, quantityG,
		entities.MealAnalysisMetadata{
			Source:           entities.AnalysisSourceUSDASearch,
			Confidence:       profile.Confidence,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		},
		entities.AnalysisCompleted, s.analysisTTL, start)
}

// AnalyzeFromPhoto runs recognition once and enriches every recognized
// item independently. Per-item lookup failures skip that item; the call
// fails only when recognition itself failed or no item survived.
func (s *MealAnalysisService) AnalyzeFromPhoto(ctx context.Context, userID, imageURL, dishHint, analysisID string) ([]*entities.MealAnalysis, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)
	ctx, span := observability.StartSpan(ctx, "analyze_from_photo")
	defer span.End()

	if existing, err := s.replayExisting(ctx, analysisID); err != nil {
		return nil, err
	} else if existing != nil {
		return []*entities.MealAnalysis{existing}, nil
	}

	recognition, err := s.recognizer.Analyze(ctx, imageURL, dishHint)
	if err != nil {
		return nil, apperrors.NewExternalError("photo recognition failed", err)
	}
	if recognition.Status == entities.RecognitionFailed || len(recognition.Items) == 0 {
		observability.RecordAnalysisMetric(ctx, s.metrics, string(entities.AnalysisSourceAIVision), string(entities.AnalysisFailed), time.Since(start))
		return nil, apperrors.NewExternalError(fmt.Sprintf("photo recognition returned status %s", recognition.Status), nil)
	}

	type itemResult struct {
		index   int
		profile entities.NutrientProfile
		ok      bool
	}

	results := make([]itemResult, len(recognition.Items))
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for i, item := range recognition.Items {
		wg.Add(1)
		go func(idx int, item entities.RecognizedFoodItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			profile, _, err := s.enrichment.SearchProfile(ctx, item.Label, item.QuantityG)
			if err != nil {
				logger.Warn().Err(err).Str("label", item.Label).Msg("skipping unenrichable recognized item")
				results[idx] = itemResult{index: idx}
				return
			}
			results[idx] = itemResult{index: idx, profile: profile, ok: true}
		}(i, item)
	}
	wg.Wait()

	status := entities.AnalysisCompleted
	if recognition.Status == entities.RecognitionPartial {
		status = entities.AnalysisPartial
	}

	var analyses []*entities.MealAnalysis
	for i, result := range results {
		if !result.ok {
			continue
		}
		item := recognition.Items[i]

		// a supplied id attaches to the first surviving item; siblings
		// always get fresh ids
		id := ""
		if len(analyses) == 0 && analysisID != "" {
			id = analysisID
		}

		analysis, err := s.persistAnalysis(ctx, id, userID, item.DisplayName, result.profile, item.QuantityG,
			entities.MealAnalysisMetadata{
				Source:           entities.AnalysisSourceAIVision,
				Confidence:       item.Confidence,
				ProcessingTimeMS: time.Since(start).Milliseconds(),
				AIModelVersion:   s.visionModelVersion,
				ImageURL:         imageURL,
			},
			status, s.analysisTTL, start)
		if err != nil {
			logger.Error().Err(err).Str("label", item.Label).Msg("failed to persist item analysis")
			continue
		}
		analyses = append(analyses, analysis)
	}

	if len(analyses) == 0 {
		observability.RecordAnalysisMetric(ctx, s.metrics, string(entities.AnalysisSourceAIVision), string(entities.AnalysisFailed), time.Since(start))
		return nil, apperrors.NewExternalError("no recognized item could be enriched", nil)
	}
	return analyses, nil
}

// GetAnalysis returns nil for absent and for expired analyses alike
func (s *MealAnalysisService) GetAnalysis(ctx context.Context, analysisID string) (*entities.MealAnalysis, error) {
	if err := entities.ValidateAnalysisID(analysisID); err != nil {
		return nil, err
	}

	analysis, err := s.repo.GetByID(ctx, analysisID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if analysis.IsExpired(time.Now().UTC()) {
		return nil, nil
	}
	return analysis, nil
}

// GetRecentAnalyses lists a user's unexpired analyses, newest first
func (s *MealAnalysisService) GetRecentAnalyses(ctx context.Context, userID string, limit int) ([]*entities.MealAnalysis, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	return s.repo.GetByUser(ctx, userID, limit, false)
}

// MarkConverted promotes an analysis to a permanent meal record,
// guarding the convertibility invariants before touching the store.
func (s *MealAnalysisService) MarkConverted(ctx context.Context, analysisID, mealID string) error {
	analysis, err := s.repo.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if !analysis.IsConvertible(time.Now().UTC()) {
		return apperrors.NewValidationError(fmt.Sprintf("analysis %s is not convertible (status=%s)", analysisID, analysis.Status))
	}
	if err := s.repo.MarkConverted(ctx, analysisID, mealID); err != nil {
		return err
	}
	s.publishEvent(ctx, entities.NewAnalysisEvent(
		analysisID, analysis.UserID, entities.AnalysisEventTypeConverted,
		analysis.Metadata.Source, analysis.MealName, analysis.Metadata.Confidence,
	))
	return nil
}

// SweepExpired removes analyses past their TTL and returns the count
func (s *MealAnalysisService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

// replayExisting implements the idempotency short-circuit: a supplied
// id that the store already knows is fetched and returned without any
// upstream call.
func (s *MealAnalysisService) replayExisting(ctx context.Context, analysisID string) (*entities.MealAnalysis, error) {
	if analysisID == "" {
		return nil, nil
	}
	if err := entities.ValidateAnalysisID(analysisID); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, analysisID)
	if err != nil || !exists {
		return nil, nil
	}

	analysis, err := s.repo.GetByID(ctx, analysisID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return analysis, nil
}

func (s *MealAnalysisService) persistAnalysis(
	ctx context.Context,
	analysisID, userID, mealName string,
	profile entities.NutrientProfile,
	quantityG float64,
	metadata entities.MealAnalysisMetadata,
	status entities.AnalysisStatus,
	ttl time.Duration,
	start time.Time,
) (*entities.MealAnalysis, error) {
	analysis, err := entities.NewMealAnalysis(analysisID, userID, mealName, profile, quantityG, metadata, status, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, analysis); err != nil {
		return nil, err
	}
	observability.RecordAnalysisMetric(ctx, s.metrics, string(metadata.Source), string(status), time.Since(start))
	observability.AnalysisLogger(ctx, analysis.AnalysisID, string(metadata.Source)).Info().
		Str("status", string(status)).
		Str("meal_name", analysis.MealName).
		Float64("confidence", metadata.Confidence).
		Msg("analysis persisted")

	eventType := entities.AnalysisEventTypeCompleted
	switch status {
	case entities.AnalysisPartial:
		eventType = entities.AnalysisEventTypePartial
	case entities.AnalysisFailed:
		eventType = entities.AnalysisEventTypeFailed
	}
	s.publishEvent(ctx, entities.NewAnalysisEvent(
		analysis.AnalysisID, userID, eventType, metadata.Source, analysis.MealName, metadata.Confidence,
	))

	return analysis, nil
}

func (s *MealAnalysisService) publishEvent(ctx context.Context, event *entities.AnalysisEvent) {
	if s.eventBus == nil {
		return
	}
	for _, channel := range []string{providers.EventChannelAnalysisUpdates, providers.GetUserChannel(event.UserID)} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("channel", channel).Msg("failed to publish analysis event")
		}
	}
}
