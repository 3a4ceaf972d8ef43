package recognition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
)

type fakeVisionProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeVisionProvider) Complete(_ context.Context, _ string, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeVisionProvider) ModelVersion() string { return "test-vision-1" }

type fakeEnricher struct {
	profiles map[string]entities.NutrientProfile
}

func (f *fakeEnricher) Enrich(_ context.Context, description string, quantityG float64) entities.NutrientProfile {
	if profile, ok := f.profiles[description]; ok {
		profile.QuantityG = quantityG
		return profile
	}
	return entities.NutrientProfile{
		Calories:   100,
		Protein:    5,
		Carbs:      10,
		Fat:        4,
		Source:     entities.SourceEstimated,
		Confidence: 0.5,
		QuantityG:  quantityG,
	}
}

const richReplyJSON = `{
  "dish_name": "Pollo con riso",
  "items": [
    {"label": "grilled chicken", "display_name": "Grilled Chicken", "quantity_g": 140, "confidence": 0.9, "category": "protein"},
    {"label": "rice", "display_name": "Rice", "quantity_g": 180, "confidence": 0.85, "category": "grain"}
  ]
}`

func TestVisionAdapter_RichReply(t *testing.T) {
	provider := &fakeVisionProvider{reply: richReplyJSON}
	adapter := NewVisionAdapter(provider, &fakeEnricher{}, NormalizationOff, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)

	assert.Equal(t, entities.RecognitionSuccess, result.Status)
	assert.Equal(t, "Pollo con riso", result.DishName)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "grilled chicken", result.Items[0].Label)
	assert.Equal(t, 140.0, result.Items[0].QuantityG)
	assert.Equal(t, 0.9, result.Items[0].Confidence)
	assert.Equal(t, "grain", result.Items[1].Category)
}

func TestVisionAdapter_LegacyReply(t *testing.T) {
	provider := &fakeVisionProvider{reply: "- Spaghetti, 220g, 0.8\n- Meatballs, 90g, 0.75\n"}
	adapter := NewVisionAdapter(provider, &fakeEnricher{}, NormalizationOff, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)

	assert.Equal(t, entities.RecognitionSuccess, result.Status)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "spaghetti", result.Items[0].Label)
	assert.Equal(t, 220.0, result.Items[0].QuantityG)
	assert.Equal(t, 0.8, result.Items[0].Confidence)
	assert.Equal(t, "meatballs", result.Items[1].Label)
}

func TestVisionAdapter_UnparseableReplyDowngradesToStub(t *testing.T) {
	provider := &fakeVisionProvider{reply: "I cannot identify any food in this image."}
	adapter := NewVisionAdapter(provider, &fakeEnricher{}, NormalizationOff, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)

	assert.Equal(t, entities.RecognitionPartial, result.Status)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "mixed salad", result.Items[0].Label)
}

func TestVisionAdapter_ProviderErrorDowngradesToStub(t *testing.T) {
	provider := &fakeVisionProvider{err: errors.New("upstream unavailable")}
	adapter := NewVisionAdapter(provider, &fakeEnricher{}, NormalizationOff, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, entities.RecognitionPartial, result.Status)
	require.Len(t, result.Items, 2)
}

func TestVisionAdapter_DishNameDerivedFromCaloricRanking(t *testing.T) {
	reply := `{
	  "items": [
	    {"label": "parsley", "quantity_g": 5, "confidence": 0.6},
	    {"label": "noodles", "quantity_g": 200, "confidence": 0.8},
	    {"label": "shrimps", "quantity_g": 80, "confidence": 0.7}
	  ]
	}`
	enricher := &fakeEnricher{profiles: map[string]entities.NutrientProfile{
		"parsley": {Calories: 2, QuantityG: 5, Confidence: 0.5, Source: entities.SourceEstimated},
		"noodles": {Calories: 280, Protein: 10, Carbs: 55, Fat: 2, QuantityG: 200, Confidence: 0.9, Source: entities.SourceUSDA},
		"shrimps": {Calories: 85, Protein: 18, Fat: 1, QuantityG: 80, Confidence: 0.9, Source: entities.SourceUSDA},
	}}
	provider := &fakeVisionProvider{reply: reply}
	adapter := NewVisionAdapter(provider, enricher, NormalizationOff, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)

	// garnish excluded, ranked by calories, de-pluralized, bowl suffix
	assert.Equal(t, "noodle shrimp bowl", result.DishName)
}

func TestVisionAdapter_EnforceNormalizationRecomputesCalories(t *testing.T) {
	reply := `{"items": [{"label": "chicken", "quantity_g": 100, "confidence": 0.9}]}`
	enricher := &fakeEnricher{profiles: map[string]entities.NutrientProfile{
		// reported calories disagree with the 4/4/9 derivation
		"chicken": {Calories: 999, Protein: 30, Carbs: 0, Fat: 4, QuantityG: 100, Confidence: 0.9, Source: entities.SourceUSDA},
	}}
	provider := &fakeVisionProvider{reply: reply}
	adapter := NewVisionAdapter(provider, enricher, NormalizationEnforce, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
}

func TestVisionAdapter_EnforceClampsGarnishQuantity(t *testing.T) {
	reply := `{"items": [
	  {"label": "parsley", "quantity_g": 120, "confidence": 0.6},
	  {"label": "chicken", "quantity_g": 150, "confidence": 0.9}
	]}`
	provider := &fakeVisionProvider{reply: reply}
	adapter := NewVisionAdapter(provider, &fakeEnricher{}, NormalizationEnforce, time.Second)

	result, err := adapter.Analyze(context.Background(), "https://img.example/meal.jpg", "")
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 10.0, result.Items[0].QuantityG)
	assert.Equal(t, 150.0, result.Items[1].QuantityG)
}

func TestVisionAdapter_PromptIncludesDishHint(t *testing.T) {
	prompt := buildVisionPrompt("carbonara")
	assert.Contains(t, prompt, "carbonara")

	bare := buildVisionPrompt("")
	assert.NotContains(t, bare, "probably")
}

func TestParseLegacyReply_SkipsMalformedLines(t *testing.T) {
	parsed, err := parseLegacyReply("garbage line\nrice, 100g, 0.9\nno quantity, 0.5\n")
	require.NoError(t, err)
	require.Len(t, parsed.items, 1)
	assert.Equal(t, "rice", parsed.items[0].Label)
}

func TestDepluralize(t *testing.T) {
	assert.Equal(t, "noodle", depluralize("noodles"))
	assert.Equal(t, "rice", depluralize("rice"))
	assert.Equal(t, "swiss", depluralize("swiss"))
}

func TestTitleWords(t *testing.T) {
	assert.Equal(t, "Grilled Chicken Breast", titleWords("grilled chicken breast"))
	assert.Equal(t, "Rice", titleWords("rice"))
	assert.Equal(t, "", titleWords(""))
}
