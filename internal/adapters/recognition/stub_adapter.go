package recognition

import (
	"context"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
)

// StubAdapter returns a fixed two-item baseline. It is the ultimate
// fallback of every other tier and the default in tests and local dev.
type StubAdapter struct{}

// NewStubAdapter creates a new stub recognizer
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{}
}

// baselineItems is the deterministic recognition baseline
func baselineItems() []entities.RecognizedFoodItem {
	return []entities.RecognizedFoodItem{
		{
			Label:       "mixed salad",
			DisplayName: "Mixed Salad",
			QuantityG:   150,
			Confidence:  0.5,
			Category:    "vegetable",
		},
		{
			Label:       "grilled chicken breast",
			DisplayName: "Grilled Chicken Breast",
			QuantityG:   120,
			Confidence:  0.5,
			Category:    "protein",
		},
	}
}

// Analyze returns the fixed baseline regardless of input
func (a *StubAdapter) Analyze(_ context.Context, photoURL, _ string) (*entities.FoodRecognitionResult, error) {
	start := time.Now()
	items := baselineItems()

	return &entities.FoodRecognitionResult{
		Items:            items,
		ImageURL:         photoURL,
		Confidence:       0.5,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Status:           entities.RecognitionSuccess,
	}, nil
}

var _ providers.FoodRecognizer = (*StubAdapter)(nil)
