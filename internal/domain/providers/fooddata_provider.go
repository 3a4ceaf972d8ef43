package providers

import (
	"context"
)

// Nutrient number codes used by the food-database detail API
const (
	NutrientNumberEnergy  = "208"
	NutrientNumberProtein = "203"
	NutrientNumberCarbs   = "205"
	NutrientNumberFat     = "204"
	NutrientNumberFiber   = "291"
	NutrientNumberSugar   = "269"
	NutrientNumberSodium  = "307"
)

// FoodSearchHit is a single result from a free-text food search
type FoodSearchHit struct {
	FdcID       int64
	Description string
	DataType    string
	BrandOwner  string
}

// FoodNutrient is one nutrient value from a food detail record
type FoodNutrient struct {
	Number string
	Name   string
	Amount float64
	Unit   string
}

// FoodDetail is a full nutrient record for a food, per 100 g
type FoodDetail struct {
	FdcID       int64
	Description string
	Nutrients   []FoodNutrient
}

// FoodDataProvider is the food-database search/detail API consumed by
// the enrichment pipeline.
type FoodDataProvider interface {
	// SearchFoods returns up to limit hits for a free-text query.
	// An empty result is returned as a zero-length slice, not an error.
	SearchFoods(ctx context.Context, query string, limit int) ([]FoodSearchHit, error)

	// GetFood fetches the full nutrient detail for a search hit
	GetFood(ctx context.Context, fdcID int64) (*FoodDetail, error)
}
