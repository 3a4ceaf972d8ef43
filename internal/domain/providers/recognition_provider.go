package providers

import (
	"context"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
)

// FoodRecognizer analyzes a meal photo into recognized food items.
//
// Recognizer tiers never return an error for the photo path: every
// internal failure self-downgrades to a lower tier, and failure shows up
// only as the result's Status. The error return exists for interface
// symmetry and stays nil in all shipped implementations.
type FoodRecognizer interface {
	Analyze(ctx context.Context, photoURL, dishHint string) (*entities.FoodRecognitionResult, error)
}
