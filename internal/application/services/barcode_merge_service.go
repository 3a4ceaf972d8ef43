package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

// macroDiscrepancyThreshold flags barcode sources that disagree by more
// than this fraction relative to the preferred source's value. The
// discrepancy is logged but does not change which value wins.
const macroDiscrepancyThreshold = 0.20

// BarcodeMergeService enriches a barcode by querying OpenFoodFacts and
// the USDA branded-food index in parallel and merging the results,
// preferring USDA values where both sources report one.
type BarcodeMergeService struct {
	offProvider  providers.BarcodeProductProvider
	foodProvider providers.FoodDataProvider
	metrics      *observability.Metrics
}

// NewBarcodeMergeService creates a new barcode merge engine
func NewBarcodeMergeService(
	offProvider providers.BarcodeProductProvider,
	foodProvider providers.FoodDataProvider,
	metrics *observability.Metrics,
) *BarcodeMergeService {
	return &BarcodeMergeService{
		offProvider:  offProvider,
		foodProvider: foodProvider,
		metrics:      metrics,
	}
}

// Enrich looks the barcode up in both sources. Either source failing or
// missing the product is treated as "returned nothing"; only when both
// come back empty does the call fail, with both causes in the message.
func (s *BarcodeMergeService) Enrich(ctx context.Context, barcode string) (*entities.BarcodeEnrichmentResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperrors.NewValidationError("barcode must not be empty")
	}

	logger := observability.LoggerFromContext(ctx)

	var (
		wg         sync.WaitGroup
		offProduct *providers.BarcodeProduct
		offErr     error
		usdaMacros *providers.MacroNutrients
		usdaErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		offProduct, offErr = s.offProvider.LookupBarcode(ctx, barcode)
	}()
	go func() {
		defer wg.Done()
		usdaMacros, usdaErr = s.lookupBrandedFood(ctx, barcode)
	}()
	wg.Wait()

	if offErr != nil {
		logger.Info().Err(offErr).Str("barcode", barcode).Msg("openfoodfacts returned nothing for barcode")
		offProduct = nil
	}
	if usdaErr != nil {
		logger.Info().Err(usdaErr).Str("barcode", barcode).Msg("usda returned nothing for barcode")
		usdaMacros = nil
	}

	switch {
	case offProduct != nil && usdaMacros != nil:
		return s.mergeBoth(ctx, barcode, offProduct, usdaMacros), nil
	case offProduct != nil:
		return resultFromOFF(barcode, offProduct), nil
	case usdaMacros != nil:
		return resultFromUSDA(barcode, usdaMacros), nil
	default:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf(
			"barcode %s not found: OpenFoodFacts: %s | USDA: %s",
			barcode, causeMessage(offErr), causeMessage(usdaErr),
		))
	}
}

// lookupBrandedFood searches the food database with the raw barcode as
// the query and extracts macros from the first hit's detail record.
func (s *BarcodeMergeService) lookupBrandedFood(ctx context.Context, barcode string) (*providers.MacroNutrients, error) {
	hits, err := s.foodProvider.SearchFoods(ctx, barcode, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no branded food matches barcode %s", barcode))
	}

	detail, err := s.foodProvider.GetFood(ctx, hits[0].FdcID)
	if err != nil {
		return nil, err
	}
	macros := detail.ExtractMacros()
	return &macros, nil
}

// mergeBoth prefers USDA macros, falling back to OpenFoodFacts for any
// field USDA reports as zero or absent. Metadata always comes from
// OpenFoodFacts since branded USDA records carry none.
func (s *BarcodeMergeService) mergeBoth(ctx context.Context, barcode string, off *providers.BarcodeProduct, usda *providers.MacroNutrients) *entities.BarcodeEnrichmentResult {
	logger := observability.LoggerFromContext(ctx)

	logDiscrepancy := func(field string, usdaVal, offVal float64) {
		if usdaVal == 0 || offVal == 0 {
			return
		}
		if math.Abs(usdaVal-offVal)/usdaVal > macroDiscrepancyThreshold {
			logger.Info().
				Str("barcode", barcode).
				Str("field", field).
				Float64("usda", usdaVal).
				Float64("openfoodfacts", offVal).
				Msg("barcode sources disagree on macro value")
		}
	}
	logDiscrepancy("calories", float64(usda.Calories), float64(off.Calories))
	logDiscrepancy("protein", usda.Protein, off.Protein)
	logDiscrepancy("carbs", usda.Carbs, off.Carbs)
	logDiscrepancy("fat", usda.Fat, off.Fat)

	profile := entities.NutrientProfile{
		Calories:   preferInt(usda.Calories, off.Calories),
		Protein:    preferFloat(usda.Protein, off.Protein),
		Carbs:      preferFloat(usda.Carbs, off.Carbs),
		Fat:        preferFloat(usda.Fat, off.Fat),
		Fiber:      preferPtr(usda.Fiber, off.Fiber),
		Sugar:      preferPtr(usda.Sugar, off.Sugar),
		Sodium:     preferPtr(usda.Sodium, off.Sodium),
		Source:     entities.SourceBarcodeDB,
		Confidence: 0.95,
		QuantityG:  entities.DefaultQuantityG,
	}

	return &entities.BarcodeEnrichmentResult{
		Profile: profile,
		Quality: entities.BarcodeQuality{
			Completeness:      completeness(profile),
			SourceReliability: 0.95,
			DataFreshness:     0.90,
		},
		ProductName:  off.ProductName,
		Brand:        off.Brand,
		ImageURL:     off.ImageURL,
		BarcodeValue: barcode,
	}
}

func resultFromOFF(barcode string, off *providers.BarcodeProduct) *entities.BarcodeEnrichmentResult {
	profile := entities.NutrientProfile{
		Calories:   off.Calories,
		Protein:    off.Protein,
		Carbs:      off.Carbs,
		Fat:        off.Fat,
		Fiber:      off.Fiber,
		Sugar:      off.Sugar,
		Sodium:     off.Sodium,
		Source:     entities.SourceBarcodeDB,
		Confidence: 0.80,
		QuantityG:  entities.DefaultQuantityG,
	}
	return &entities.BarcodeEnrichmentResult{
		Profile: profile,
		Quality: entities.BarcodeQuality{
			Completeness:      completeness(profile),
			SourceReliability: 0.80,
			DataFreshness:     0.85,
		},
		ProductName:  off.ProductName,
		Brand:        off.Brand,
		ImageURL:     off.ImageURL,
		BarcodeValue: barcode,
	}
}

func resultFromUSDA(barcode string, usda *providers.MacroNutrients) *entities.BarcodeEnrichmentResult {
	profile := entities.NutrientProfile{
		Calories:   usda.Calories,
		Protein:    usda.Protein,
		Carbs:      usda.Carbs,
		Fat:        usda.Fat,
		Fiber:      usda.Fiber,
		Sugar:      usda.Sugar,
		Sodium:     usda.Sodium,
		Source:     entities.SourceBarcodeDB,
		Confidence: 0.95,
		QuantityG:  entities.DefaultQuantityG,
	}
	return &entities.BarcodeEnrichmentResult{
		Profile: profile,
		Quality: entities.BarcodeQuality{
			Completeness:      completeness(profile),
			SourceReliability: 0.95,
			DataFreshness:     0.80,
		},
		BarcodeValue: barcode,
	}
}

// completeness is the fraction of the seven tracked nutrient fields that
// carry a nonzero value, rounded to two decimals.
func completeness(p entities.NutrientProfile) float64 {
	filled := 0
	if p.Calories != 0 {
		filled++
	}
	for _, v := range []float64{p.Protein, p.Carbs, p.Fat} {
		if v != 0 {
			filled++
		}
	}
	for _, v := range []*float64{p.Fiber, p.Sugar, p.Sodium} {
		if v != nil && *v != 0 {
			filled++
		}
	}
	return entities.Round2(float64(filled) / 7.0)
}

func preferInt(primary, fallback int) int {
	if primary != 0 {
		return primary
	}
	return fallback
}

func preferFloat(primary, fallback float64) float64 {
	if primary != 0 {
		return primary
	}
	return fallback
}

func preferPtr(primary, fallback *float64) *float64 {
	if primary != nil {
		return primary
	}
	return fallback
}

func causeMessage(err error) string {
	if err == nil {
		return "not found"
	}
	return err.Error()
}
