package entities

import (
	"math"

	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

// NutrientSource identifies where a nutrient profile's values came from
type NutrientSource string

const (
	SourceUSDA            NutrientSource = "USDA"
	SourceBarcodeDB       NutrientSource = "BARCODE_DB"
	SourceCategoryProfile NutrientSource = "CATEGORY_PROFILE"
	SourceEstimated       NutrientSource = "ESTIMATED"
	SourceAIEstimate      NutrientSource = "AI_ESTIMATE"
	SourceManual          NutrientSource = "MANUAL"
)

// DefaultQuantityG is the reference amount nutrient values apply to when
// no explicit quantity is given.
const DefaultQuantityG = 100.0

// NutrientProfile holds nutrient values for a reference quantity of food.
// Values are treated as immutable: scaling produces a new instance.
type NutrientProfile struct {
	Calories   int            `json:"calories" db:"calories"`
	Protein    float64        `json:"protein" db:"protein"`
	Carbs      float64        `json:"carbs" db:"carbs"`
	Fat        float64        `json:"fat" db:"fat"`
	Fiber      *float64       `json:"fiber,omitempty" db:"fiber"`
	Sugar      *float64       `json:"sugar,omitempty" db:"sugar"`
	Sodium     *float64       `json:"sodium,omitempty" db:"sodium"`
	Source     NutrientSource `json:"source" db:"source"`
	Confidence float64        `json:"confidence" db:"confidence"`
	QuantityG  float64        `json:"quantity_g" db:"quantity_g"`
}

// Validate checks the profile invariants
func (p NutrientProfile) Validate() error {
	if p.QuantityG <= 0 {
		return apperrors.NewValidationError("nutrient profile quantity_g must be positive")
	}
	if p.Calories < 0 || p.Protein < 0 || p.Carbs < 0 || p.Fat < 0 {
		return apperrors.NewValidationError("nutrient values must be non-negative")
	}
	for _, v := range []*float64{p.Fiber, p.Sugar, p.Sodium} {
		if v != nil && *v < 0 {
			return apperrors.NewValidationError("nutrient values must be non-negative")
		}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return apperrors.NewValidationError("confidence must be within [0, 1]")
	}
	return nil
}

// ScaleTo returns a new profile scaled to targetG grams.
// Calories are truncated; all other present fields are rounded to one
// decimal. Absent optional fields stay absent. This asymmetric rounding
// is a binding contract for round-trip behavior.
func (p NutrientProfile) ScaleTo(targetG float64) (NutrientProfile, error) {
	if targetG <= 0 {
		return NutrientProfile{}, apperrors.NewValidationError("target quantity must be positive")
	}

	factor := targetG / p.QuantityG

	scaled := NutrientProfile{
		Calories:   int(float64(p.Calories) * factor),
		Protein:    Round1(p.Protein * factor),
		Carbs:      Round1(p.Carbs * factor),
		Fat:        Round1(p.Fat * factor),
		Source:     p.Source,
		Confidence: p.Confidence,
		QuantityG:  targetG,
	}
	if p.Fiber != nil {
		scaled.Fiber = Float64Ptr(Round1(*p.Fiber * factor))
	}
	if p.Sugar != nil {
		scaled.Sugar = Float64Ptr(Round1(*p.Sugar * factor))
	}
	if p.Sodium != nil {
		scaled.Sodium = Float64Ptr(Round1(*p.Sodium * factor))
	}

	return scaled, nil
}

// Round1 rounds to one decimal, ties to even
func Round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

// Round2 rounds to two decimals, ties to even
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// DeriveCalories computes calories from macros with the 4/4/9 rule
func DeriveCalories(protein, carbs, fat float64) int {
	return int(protein*4 + carbs*4 + fat*9)
}
