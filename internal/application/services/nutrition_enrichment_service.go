package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

const (
	descriptionCacheKeyPrefix = "nutrition:desc:"
	barcodeCacheKeyPrefix     = "nutrition:barcode:"

	// DefaultNutritionCacheTTLSeconds is seven days
	DefaultNutritionCacheTTLSeconds = 7 * 24 * 3600
)

// categoryProfile is a fixed per-100g estimate used when no upstream
// source can resolve a description.
type categoryProfile struct {
	name     string
	keywords []string
	profile  entities.NutrientProfile
}

// categoryProfiles are checked in order; the first keyword hit wins.
// Values are coarse per-100g estimates, deliberately conservative.
var categoryProfiles = []categoryProfile{
	{
		name:     "fruit",
		keywords: []string{"apple", "banana", "orange", "berry", "strawberry", "grape", "mango", "peach", "pear", "melon", "fruit"},
		profile:  estimatedProfile(60, 0.8, 15, 0.3, 2.5, 12, 1),
	},
	{
		name:     "vegetable",
		keywords: []string{"salad", "lettuce", "spinach", "broccoli", "carrot", "tomato", "cucumber", "pepper", "onion", "kale", "zucchini", "vegetable"},
		profile:  estimatedProfile(35, 2.0, 7, 0.3, 2.8, 3, 20),
	},
	{
		name:     "protein",
		keywords: []string{"chicken", "beef", "pork", "fish", "salmon", "tuna", "egg", "tofu", "turkey", "shrimp", "steak"},
		profile:  estimatedProfile(200, 25, 0, 10, 0, 0, 70),
	},
	{
		name:     "grain",
		keywords: []string{"rice", "pasta", "bread", "oat", "quinoa", "noodle", "cereal", "wheat", "tortilla"},
		profile:  estimatedProfile(350, 10, 70, 2, 5, 1, 5),
	},
	{
		name:     "dairy",
		keywords: []string{"milk", "cheese", "yogurt", "cream"},
		profile:  estimatedProfile(120, 8, 9, 6, 0, 9, 50),
	},
	{
		name:     "fat",
		keywords: []string{"oil", "butter", "avocado", "nut", "almond", "peanut", "seed"},
		profile:  estimatedProfile(700, 0.5, 1, 75, 0, 0, 2),
	},
	{
		name:     "beverage",
		keywords: []string{"water", "juice", "soda", "coffee", "tea", "smoothie", "drink"},
		profile:  estimatedProfile(40, 0.2, 10, 0, 0, 9, 0),
	},
	{
		name:     "snack",
		keywords: []string{"chips", "cracker", "popcorn", "pretzel", "bar"},
		profile:  estimatedProfile(480, 7, 60, 22, 3, 4, 400),
	},
	{
		name:     "dessert",
		keywords: []string{"cake", "cookie", "ice cream", "chocolate", "pie", "donut", "pastry", "brownie"},
		profile:  estimatedProfile(380, 5, 55, 15, 1, 35, 150),
	},
}

var unknownCategoryProfile = estimatedProfile(150, 5, 20, 5, 1, 3, 50)

func estimatedProfile(calories int, protein, carbs, fat, fiber, sugar, sodium float64) entities.NutrientProfile {
	return entities.NutrientProfile{
		Calories:   calories,
		Protein:    protein,
		Carbs:      carbs,
		Fat:        fat,
		Fiber:      entities.Float64Ptr(fiber),
		Sugar:      entities.Float64Ptr(sugar),
		Sodium:     entities.Float64Ptr(sodium),
		Source:     entities.SourceEstimated,
		Confidence: 0.5,
		QuantityG:  entities.DefaultQuantityG,
	}
}

// NutritionEnrichmentService resolves food descriptions to nutrient
// profiles, cache-first, with the food database behind it and the
// category table as the terminal fallback. Enrich never fails.
type NutritionEnrichmentService struct {
	cache         providers.CacheProvider
	foodProvider  providers.FoodDataProvider
	metrics       *observability.Metrics
	cacheTTLSecs  int
	maxConcurrent int
}

// NewNutritionEnrichmentService creates a new enrichment service.
// cacheTTLSecs <= 0 selects the seven-day default; maxConcurrent <= 0
// selects 4 parallel upstream calls for batch enrichment.
func NewNutritionEnrichmentService(
	cache providers.CacheProvider,
	foodProvider providers.FoodDataProvider,
	metrics *observability.Metrics,
	cacheTTLSecs int,
	maxConcurrent int,
) *NutritionEnrichmentService {
	if cacheTTLSecs <= 0 {
		cacheTTLSecs = DefaultNutritionCacheTTLSeconds
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &NutritionEnrichmentService{
		cache:         cache,
		foodProvider:  foodProvider,
		metrics:       metrics,
		cacheTTLSecs:  cacheTTLSecs,
		maxConcurrent: maxConcurrent,
	}
}

// Enrich resolves a description to a profile scaled to quantityG.
// It never fails: upstream errors degrade to the category fallback.
func (s *NutritionEnrichmentService) Enrich(ctx context.Context, description string, quantityG float64) entities.NutrientProfile {
	logger := observability.LoggerFromContext(ctx)
	if quantityG <= 0 {
		quantityG = entities.DefaultQuantityG
	}

	key := descriptionCacheKeyPrefix + normalizeDescription(description)

	if cached := s.cachedProfile(ctx, key); cached != nil {
		observability.RecordCacheHit(ctx, s.metrics, "nutrition")
		return s.scaleOrFallback(ctx, *cached, description, quantityG)
	}
	observability.RecordCacheMiss(ctx, s.metrics, "nutrition")

	profile, err := s.lookupFood(ctx, description)
	if err != nil {
		logger.Info().Err(err).Str("description", description).Msg("food lookup failed, using category fallback")
		observability.RecordFallback(ctx, s.metrics, "usda", "category")
		return s.scaleOrFallback(ctx, categoryFallback(description), description, quantityG)
	}

	s.storeProfile(ctx, key, profile)
	return s.scaleOrFallback(ctx, profile, description, quantityG)
}

// EnrichBatch fans out independent per-description enrichments under a
// bounded concurrency cap. Output order matches input order; a failure
// on one item degrades only that item.
func (s *NutritionEnrichmentService) EnrichBatch(ctx context.Context, descriptions []string, quantitiesG []float64) []entities.NutrientProfile {
	results := make([]entities.NutrientProfile, len(descriptions))
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for i := range descriptions {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			quantity := entities.DefaultQuantityG
			if idx < len(quantitiesG) && quantitiesG[idx] > 0 {
				quantity = quantitiesG[idx]
			}
			results[idx] = s.Enrich(ctx, descriptions[idx], quantity)
		}(i)
	}
	wg.Wait()
	return results
}

// SearchProfile resolves a free-text query through the food database
// without any fallback: zero hits or an upstream error surface to the
// caller. Returns the profile scaled to quantityG plus the matched
// food's description.
func (s *NutritionEnrichmentService) SearchProfile(ctx context.Context, query string, quantityG float64) (entities.NutrientProfile, string, error) {
	if quantityG <= 0 {
		return entities.NutrientProfile{}, "", apperrors.NewValidationError("quantity_g must be positive")
	}

	hits, err := s.foodProvider.SearchFoods(ctx, query, 1)
	if err != nil {
		return entities.NutrientProfile{}, "", err
	}
	if len(hits) == 0 {
		return entities.NutrientProfile{}, "", apperrors.NewNotFoundError(fmt.Sprintf("no results for query %q", query))
	}

	detail, err := s.foodProvider.GetFood(ctx, hits[0].FdcID)
	if err != nil {
		return entities.NutrientProfile{}, "", err
	}

	profile := profileFromMacros(detail.ExtractMacros(), 0.95)
	s.storeProfile(ctx, descriptionCacheKeyPrefix+normalizeDescription(query), profile)

	scaled, err := profile.ScaleTo(quantityG)
	if err != nil {
		return entities.NutrientProfile{}, "", err
	}
	return scaled, detail.Description, nil
}

// CacheBarcodeProfile stores a merged barcode profile under its barcode
// key so repeat scans skip both upstream sources.
func (s *NutritionEnrichmentService) CacheBarcodeProfile(ctx context.Context, barcode string, profile entities.NutrientProfile) {
	s.storeProfile(ctx, barcodeCacheKeyPrefix+strings.TrimSpace(barcode), profile)
}

// CachedBarcodeProfile returns the per-100g profile cached for a
// barcode, or nil when absent.
func (s *NutritionEnrichmentService) CachedBarcodeProfile(ctx context.Context, barcode string) *entities.NutrientProfile {
	cached := s.cachedProfile(ctx, barcodeCacheKeyPrefix+strings.TrimSpace(barcode))
	if cached != nil {
		observability.RecordCacheHit(ctx, s.metrics, "barcode")
	} else {
		observability.RecordCacheMiss(ctx, s.metrics, "barcode")
	}
	return cached
}

func (s *NutritionEnrichmentService) lookupFood(ctx context.Context, description string) (entities.NutrientProfile, error) {
	hits, err := s.foodProvider.SearchFoods(ctx, description, 1)
	if err != nil {
		return entities.NutrientProfile{}, err
	}
	if len(hits) == 0 {
		return entities.NutrientProfile{}, apperrors.NewNotFoundError(fmt.Sprintf("no results for %q", description))
	}

	detail, err := s.foodProvider.GetFood(ctx, hits[0].FdcID)
	if err != nil {
		return entities.NutrientProfile{}, err
	}
	return profileFromMacros(detail.ExtractMacros(), 0.9), nil
}

func (s *NutritionEnrichmentService) cachedProfile(ctx context.Context, key string) *entities.NutrientProfile {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == nil {
		return nil
	}
	var profile entities.NutrientProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discarding corrupt cached profile")
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	return &profile
}

func (s *NutritionEnrichmentService) storeProfile(ctx context.Context, key string, profile entities.NutrientProfile) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTLSecs); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache nutrient profile")
	}
}

// scaleOrFallback scales a per-100g profile to the requested quantity;
// a scaling failure (corrupt cached record) degrades to the category
// fallback rather than surfacing an error.
func (s *NutritionEnrichmentService) scaleOrFallback(ctx context.Context, profile entities.NutrientProfile, description string, quantityG float64) entities.NutrientProfile {
	if profile.QuantityG <= 0 {
		profile.QuantityG = entities.DefaultQuantityG
	}
	scaled, err := profile.ScaleTo(quantityG)
	if err == nil {
		return scaled
	}
	observability.LoggerFromContext(ctx).Warn().Err(err).Str("description", description).Msg("profile scaling failed, using category fallback")
	fallback, _ := categoryFallback(description).ScaleTo(quantityG)
	return fallback
}

// categoryFallback matches the description against the category keyword
// lists and returns that category's fixed per-100g estimate.
func categoryFallback(description string) entities.NutrientProfile {
	normalized := normalizeDescription(description)
	for _, category := range categoryProfiles {
		for _, keyword := range category.keywords {
			if strings.Contains(normalized, keyword) {
				return category.profile
			}
		}
	}
	return unknownCategoryProfile
}

func profileFromMacros(m providers.MacroNutrients, confidence float64) entities.NutrientProfile {
	return entities.NutrientProfile{
		Calories:   m.Calories,
		Protein:    m.Protein,
		Carbs:      m.Carbs,
		Fat:        m.Fat,
		Fiber:      m.Fiber,
		Sugar:      m.Sugar,
		Sodium:     m.Sodium,
		Source:     entities.SourceUSDA,
		Confidence: confidence,
		QuantityG:  entities.DefaultQuantityG,
	}
}

func normalizeDescription(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
