package entities

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

// AnalysisSource identifies the pipeline that produced an analysis
type AnalysisSource string

const (
	AnalysisSourceAIVision    AnalysisSource = "AI_VISION"
	AnalysisSourceBarcodeScan AnalysisSource = "BARCODE_SCAN"
	AnalysisSourceUSDASearch  AnalysisSource = "USDA_SEARCH"
	AnalysisSourceCategory    AnalysisSource = "CATEGORY"
	AnalysisSourceManual      AnalysisSource = "MANUAL"
)

// AnalysisStatus is the lifecycle status of a meal analysis
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "PENDING"
	AnalysisProcessing AnalysisStatus = "PROCESSING"
	AnalysisCompleted  AnalysisStatus = "COMPLETED"
	AnalysisPartial    AnalysisStatus = "PARTIAL"
	AnalysisFailed     AnalysisStatus = "FAILED"
	AnalysisExpired    AnalysisStatus = "EXPIRED"
)

// DefaultAnalysisTTL is how long an unconfirmed analysis stays queryable
const DefaultAnalysisTTL = 24 * time.Hour

// MaxMealNameLength bounds the meal_name field
const MaxMealNameLength = 200

// analysisIDPattern is a fixed contract with callers: "analysis_"
// followed by exactly 12 lowercase hex characters.
var analysisIDPattern = regexp.MustCompile(`^analysis_[0-9a-f]{12}$`)

// MealAnalysisMetadata carries provenance and confidence for an analysis
type MealAnalysisMetadata struct {
	Source           AnalysisSource `json:"source"`
	Confidence       float64        `json:"confidence"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	AIModelVersion   string         `json:"ai_model_version,omitempty"`
	ImageURL         string         `json:"image_url,omitempty"`
	BarcodeValue     string         `json:"barcode_value,omitempty"`
	FallbackReason   string         `json:"fallback_reason,omitempty"`
}

// MealAnalysis is a quantity-scaled nutrient analysis awaiting
// confirmation into a permanent meal record. The analysis store owns the
// persisted copy; callers hold transient in-flight copies.
type MealAnalysis struct {
	AnalysisID        string               `json:"analysis_id" db:"analysis_id"`
	UserID            string               `json:"user_id" db:"user_id"`
	MealName          string               `json:"meal_name" db:"meal_name"`
	NutrientProfile   NutrientProfile      `json:"nutrient_profile" db:"nutrient_profile"`
	QuantityG         float64              `json:"quantity_g" db:"quantity_g"`
	Metadata          MealAnalysisMetadata `json:"metadata" db:"metadata"`
	Status            AnalysisStatus       `json:"status" db:"status"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
	ExpiresAt         time.Time            `json:"expires_at" db:"expires_at"`
	ConvertedToMealAt *time.Time           `json:"converted_to_meal_at,omitempty" db:"converted_to_meal_at"`
}

// NewAnalysisID generates a fresh analysis identifier
func NewAnalysisID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "analysis_" + hex[:12]
}

// ValidateAnalysisID checks the fixed id format contract
func ValidateAnalysisID(id string) error {
	if !analysisIDPattern.MatchString(id) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid analysis id format: %q", id))
	}
	return nil
}

// NewMealAnalysis builds a validated analysis, stamping created_at and
// expires_at. Pass ttl <= 0 for the default 24h lifetime.
func NewMealAnalysis(
	analysisID, userID, mealName string,
	profile NutrientProfile,
	quantityG float64,
	metadata MealAnalysisMetadata,
	status AnalysisStatus,
	ttl time.Duration,
) (*MealAnalysis, error) {
	if analysisID == "" {
		analysisID = NewAnalysisID()
	}
	if err := ValidateAnalysisID(analysisID); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	mealName = strings.TrimSpace(mealName)
	if mealName == "" {
		return nil, apperrors.NewValidationError("meal name is required")
	}
	if len(mealName) > MaxMealNameLength {
		mealName = mealName[:MaxMealNameLength]
	}
	if quantityG <= 0 {
		return nil, apperrors.NewValidationError("quantity_g must be positive")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}

	now := time.Now().UTC()
	return &MealAnalysis{
		AnalysisID:      analysisID,
		UserID:          userID,
		MealName:        mealName,
		NutrientProfile: profile,
		QuantityG:       quantityG,
		Metadata:        metadata,
		Status:          status,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}, nil
}

// IsExpired reports whether the analysis has outlived its TTL
func (a *MealAnalysis) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// IsConvertible reports whether the analysis can still be promoted to a
// permanent meal record.
func (a *MealAnalysis) IsConvertible(now time.Time) bool {
	return a.Status == AnalysisCompleted && !a.IsExpired(now) && a.ConvertedToMealAt == nil
}

// Validate enforces the aggregate invariants
func (a *MealAnalysis) Validate() error {
	if err := ValidateAnalysisID(a.AnalysisID); err != nil {
		return err
	}
	if a.MealName == "" || len(a.MealName) > MaxMealNameLength {
		return apperrors.NewValidationError("meal name must be non-empty and at most 200 characters")
	}
	if a.QuantityG <= 0 {
		return apperrors.NewValidationError("quantity_g must be positive")
	}
	if !a.ExpiresAt.After(a.CreatedAt) {
		return apperrors.NewValidationError("expires_at must be after created_at")
	}
	if a.ConvertedToMealAt != nil && a.ConvertedToMealAt.Before(a.CreatedAt) {
		return apperrors.NewValidationError("converted_to_meal_at must not precede created_at")
	}
	return a.NutrientProfile.Validate()
}
