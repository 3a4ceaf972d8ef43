package entities

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalysisID_Format(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewAnalysisID()
		assert.NoError(t, ValidateAnalysisID(id))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestValidateAnalysisID(t *testing.T) {
	assert.NoError(t, ValidateAnalysisID("analysis_0123456789ab"))

	for _, bad := range []string{
		"",
		"analysis_",
		"analysis_0123456789",      // too short
		"analysis_0123456789abcd",  // too long
		"analysis_0123456789AB",    // uppercase
		"analysis_0123456789ag",    // non-hex
		"meal_0123456789ab",        // wrong prefix
		" analysis_0123456789ab",   // whitespace
	} {
		assert.Error(t, ValidateAnalysisID(bad), "expected %q to be rejected", bad)
	}
}

func TestNewMealAnalysis_StampsLifecycle(t *testing.T) {
	analysis, err := NewMealAnalysis("", "user-1", "Banana, raw", bananaPer100g(), 150,
		MealAnalysisMetadata{Source: AnalysisSourceUSDASearch, Confidence: 0.95},
		AnalysisCompleted, 0)
	require.NoError(t, err)

	assert.NoError(t, ValidateAnalysisID(analysis.AnalysisID))
	assert.True(t, analysis.ExpiresAt.After(analysis.CreatedAt))
	assert.Equal(t, DefaultAnalysisTTL, analysis.ExpiresAt.Sub(analysis.CreatedAt))
	assert.NoError(t, analysis.Validate())
}

func TestNewMealAnalysis_TruncatesLongMealName(t *testing.T) {
	long := strings.Repeat("x", 300)
	analysis, err := NewMealAnalysis("", "user-1", long, bananaPer100g(), 100,
		MealAnalysisMetadata{Source: AnalysisSourceManual}, AnalysisCompleted, time.Hour)
	require.NoError(t, err)
	assert.Len(t, analysis.MealName, MaxMealNameLength)
}

func TestNewMealAnalysis_RejectsInvalidInput(t *testing.T) {
	_, err := NewMealAnalysis("", "", "Banana", bananaPer100g(), 100,
		MealAnalysisMetadata{}, AnalysisCompleted, time.Hour)
	assert.Error(t, err, "missing user id")

	_, err = NewMealAnalysis("", "user-1", "  ", bananaPer100g(), 100,
		MealAnalysisMetadata{}, AnalysisCompleted, time.Hour)
	assert.Error(t, err, "blank meal name")

	_, err = NewMealAnalysis("", "user-1", "Banana", bananaPer100g(), -5,
		MealAnalysisMetadata{}, AnalysisCompleted, time.Hour)
	assert.Error(t, err, "negative quantity")

	_, err = NewMealAnalysis("not-an-id", "user-1", "Banana", bananaPer100g(), 100,
		MealAnalysisMetadata{}, AnalysisCompleted, time.Hour)
	assert.Error(t, err, "malformed explicit id")
}

func TestMealAnalysis_ExpiryPredicates(t *testing.T) {
	analysis, err := NewMealAnalysis("", "user-1", "Banana", bananaPer100g(), 100,
		MealAnalysisMetadata{Source: AnalysisSourceUSDASearch}, AnalysisCompleted, time.Hour)
	require.NoError(t, err)

	now := analysis.CreatedAt
	assert.False(t, analysis.IsExpired(now))
	assert.True(t, analysis.IsConvertible(now))

	later := analysis.ExpiresAt.Add(time.Minute)
	assert.True(t, analysis.IsExpired(later))
	assert.False(t, analysis.IsConvertible(later))
}

func TestMealAnalysis_ConvertedIsNotConvertible(t *testing.T) {
	analysis, err := NewMealAnalysis("", "user-1", "Banana", bananaPer100g(), 100,
		MealAnalysisMetadata{Source: AnalysisSourceUSDASearch}, AnalysisCompleted, time.Hour)
	require.NoError(t, err)

	converted := analysis.CreatedAt.Add(time.Minute)
	analysis.ConvertedToMealAt = &converted
	assert.False(t, analysis.IsConvertible(analysis.CreatedAt.Add(2*time.Minute)))
}

func TestMealAnalysis_FailedIsNotConvertible(t *testing.T) {
	analysis, err := NewMealAnalysis("", "user-1", "Banana", bananaPer100g(), 100,
		MealAnalysisMetadata{Source: AnalysisSourceBarcodeScan}, AnalysisFailed, time.Hour)
	require.NoError(t, err)
	assert.False(t, analysis.IsConvertible(analysis.CreatedAt))
}
