package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
)

// NormalizationMode controls the post-parse nutrient normalization pass
type NormalizationMode string

const (
	NormalizationOff     NormalizationMode = "off"
	NormalizationDryRun  NormalizationMode = "dry_run"
	NormalizationEnforce NormalizationMode = "enforce"
)

// garnishLabels are excluded from dish-name ranking and get quantity
// clamping in enforce mode.
var garnishLabels = map[string]bool{
	"parsley":  true,
	"lemon":    true,
	"cilantro": true,
	"mint":     true,
	"basil":    true,
}

const garnishMaxQuantityG = 10.0

// NutritionEnricher supplies per-item nutrient profiles for recognized
// foods. Implementations never fail: a profile is always returned, with
// degraded provenance when upstream data is unavailable.
type NutritionEnricher interface {
	Enrich(ctx context.Context, description string, quantityG float64) entities.NutrientProfile
}

// VisionAdapter calls an external vision-capable completion endpoint,
// parses its raw text reply, and enriches every recognized item. Any
// failure along the way degrades the whole call to the stub baseline.
type VisionAdapter struct {
	provider      providers.VisionCompletionProvider
	enricher      NutritionEnricher
	normalization NormalizationMode
	callTimeout   time.Duration
	stub          *StubAdapter
}

// NewVisionAdapter creates a new vision-model recognizer
func NewVisionAdapter(provider providers.VisionCompletionProvider, enricher NutritionEnricher, normalization NormalizationMode, callTimeout time.Duration) *VisionAdapter {
	if callTimeout <= 0 {
		callTimeout = 25 * time.Second
	}
	if normalization == "" {
		normalization = NormalizationOff
	}
	return &VisionAdapter{
		provider:      provider,
		enricher:      enricher,
		normalization: normalization,
		callTimeout:   callTimeout,
		stub:          NewStubAdapter(),
	}
}

// Analyze never returns an error: every internal failure downgrades to
// the stub baseline with a PARTIAL status.
func (a *VisionAdapter) Analyze(ctx context.Context, photoURL, dishHint string) (*entities.FoodRecognitionResult, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	raw, err := a.provider.Complete(callCtx, buildVisionPrompt(dishHint), photoURL)
	if err != nil {
		logger.Warn().Err(err).Str("photo_url", photoURL).Msg("vision completion failed, downgrading to stub")
		return a.downgrade(ctx, photoURL, dishHint, start), nil
	}

	parsed, err := parseVisionReply(raw)
	if err != nil {
		logger.Warn().Err(err).Str("photo_url", photoURL).Msg("vision reply unparseable, downgrading to stub")
		return a.downgrade(ctx, photoURL, dishHint, start), nil
	}

	items := parsed.items
	profiles := make([]entities.NutrientProfile, len(items))
	if a.enricher != nil {
		for i, item := range items {
			profiles[i] = a.enricher.Enrich(ctx, item.Label, item.QuantityG)
		}
	}

	items, profiles = a.normalize(ctx, items, profiles)

	dishName := parsed.dishName
	if dishName == "" {
		dishName = deriveDishName(items, profiles)
	}

	return &entities.FoodRecognitionResult{
		Items:            items,
		DishName:         dishName,
		ImageURL:         photoURL,
		Confidence:       averageConfidence(items),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Status:           entities.RecognitionSuccess,
	}, nil
}

func (a *VisionAdapter) downgrade(ctx context.Context, photoURL, dishHint string, start time.Time) *entities.FoodRecognitionResult {
	result, _ := a.stub.Analyze(context.WithoutCancel(ctx), photoURL, dishHint)
	result.Status = entities.RecognitionPartial
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	return result
}

// normalize applies the configured normalization pass. In enforce mode
// macro-derived calories replace the model's estimates and implausible
// garnish quantities are clamped; in dry_run mode only sugar/sodium
// gaps are filled and discrepancies are logged.
func (a *VisionAdapter) normalize(ctx context.Context, items []entities.RecognizedFoodItem, profiles []entities.NutrientProfile) ([]entities.RecognizedFoodItem, []entities.NutrientProfile) {
	if a.normalization == NormalizationOff || a.enricher == nil {
		return items, profiles
	}
	logger := observability.LoggerFromContext(ctx)

	for i := range items {
		derived := entities.DeriveCalories(profiles[i].Protein, profiles[i].Carbs, profiles[i].Fat)

		switch a.normalization {
		case NormalizationEnforce:
			if derived > 0 && derived != profiles[i].Calories {
				profiles[i].Calories = derived
			}
			if garnishLabels[strings.ToLower(items[i].Label)] && items[i].QuantityG > garnishMaxQuantityG {
				items[i].QuantityG = garnishMaxQuantityG
			}
			fillNutrientGaps(&profiles[i])
		case NormalizationDryRun:
			if derived > 0 && derived != profiles[i].Calories {
				logger.Info().
					Str("label", items[i].Label).
					Int("reported_calories", profiles[i].Calories).
					Int("derived_calories", derived).
					Msg("macro-derived calories differ from reported value")
			}
			fillNutrientGaps(&profiles[i])
		}
	}
	return items, profiles
}

// fillNutrientGaps sets absent sugar/sodium to explicit zeros
func fillNutrientGaps(p *entities.NutrientProfile) {
	if p.Sugar == nil {
		p.Sugar = entities.Float64Ptr(0)
	}
	if p.Sodium == nil {
		p.Sodium = entities.Float64Ptr(0)
	}
}

// buildVisionPrompt asks for strict JSON so the primary parser usually
// succeeds; the legacy free-text shape is still accepted.
func buildVisionPrompt(dishHint string) string {
	var b strings.Builder
	b.WriteString("Identify every food item visible on this meal photo. ")
	b.WriteString("Reply with JSON only, shaped as ")
	b.WriteString(`{"dish_name": "...", "items": [{"label": "...", "display_name": "...", "quantity_g": 0, "confidence": 0.0, "category": "..."}]}. `)
	b.WriteString("Estimate quantity_g as the edible portion in grams and confidence within [0,1]. ")
	b.WriteString("Use the photo's language for dish_name.")
	if dishHint != "" {
		b.WriteString(fmt.Sprintf(" The dish is probably: %s.", dishHint))
	}
	return b.String()
}

type parsedVisionReply struct {
	dishName string
	items    []entities.RecognizedFoodItem
}

// parseVisionReply tries the rich JSON parser first and the legacy
// line-oriented parser second.
func parseVisionReply(raw string) (*parsedVisionReply, error) {
	if parsed, err := parseRichReply(raw); err == nil {
		return parsed, nil
	}
	return parseLegacyReply(raw)
}

type richReplyItem struct {
	Label       string  `json:"label"`
	DisplayName string  `json:"display_name"`
	QuantityG   float64 `json:"quantity_g"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
}

type richReply struct {
	DishName string          `json:"dish_name"`
	Items    []richReplyItem `json:"items"`
}

func parseRichReply(raw string) (*parsedVisionReply, error) {
	var reply richReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("rich parse failed: %w", err)
	}
	if len(reply.Items) == 0 {
		return nil, fmt.Errorf("rich parse found no items")
	}

	items := make([]entities.RecognizedFoodItem, 0, len(reply.Items))
	for _, ri := range reply.Items {
		label := strings.TrimSpace(strings.ToLower(ri.Label))
		if label == "" || ri.QuantityG <= 0 {
			continue
		}
		display := strings.TrimSpace(ri.DisplayName)
		if display == "" {
			display = titleWords(label)
		}
		items = append(items, entities.RecognizedFoodItem{
			Label:       label,
			DisplayName: display,
			QuantityG:   ri.QuantityG,
			Confidence:  clampConfidence(ri.Confidence),
			Category:    strings.ToLower(strings.TrimSpace(ri.Category)),
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("rich parse yielded no valid items")
	}
	return &parsedVisionReply{dishName: strings.TrimSpace(reply.DishName), items: items}, nil
}

// parseLegacyReply accepts the older "label, 150g, 0.8" line format
func parseLegacyReply(raw string) (*parsedVisionReply, error) {
	var items []entities.RecognizedFoodItem

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}

		label := strings.ToLower(strings.TrimSpace(parts[0]))
		if label == "" {
			continue
		}

		quantity := 0.0
		confidence := 0.5
		for _, part := range parts[1:] {
			token := strings.TrimSpace(strings.ToLower(part))
			if strings.HasSuffix(token, "g") {
				if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(token, "g")), 64); err == nil {
					quantity = v
					continue
				}
			}
			if v, err := strconv.ParseFloat(token, 64); err == nil && v >= 0 && v <= 1 {
				confidence = v
			}
		}
		if quantity <= 0 {
			continue
		}

		items = append(items, entities.RecognizedFoodItem{
			Label:       label,
			DisplayName: titleWords(label),
			QuantityG:   quantity,
			Confidence:  clampConfidence(confidence),
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("legacy parse yielded no items")
	}
	return &parsedVisionReply{items: items}, nil
}

// deriveDishName builds a human-readable dish name by ranking items by
// caloric contribution, skipping garnish, de-pluralizing the top three
// labels and appending a "bowl" suffix when several remain. Falls back
// to the first three raw labels when ranking yields nothing.
func deriveDishName(items []entities.RecognizedFoodItem, profiles []entities.NutrientProfile) string {
	type ranked struct {
		label    string
		calories int
	}

	var candidates []ranked
	for i, item := range items {
		if garnishLabels[strings.ToLower(item.Label)] {
			continue
		}
		calories := 0
		if i < len(profiles) {
			calories = profiles[i].Calories
		}
		candidates = append(candidates, ranked{label: item.Label, calories: calories})
	}

	// stable ranking by caloric contribution, descending
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].calories > candidates[j-1].calories; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	var labels []string
	for _, c := range candidates {
		labels = append(labels, depluralize(c.label))
		if len(labels) == 3 {
			break
		}
	}

	if len(labels) == 0 {
		for _, item := range items {
			labels = append(labels, item.Label)
			if len(labels) == 3 {
				break
			}
		}
		return strings.Join(labels, " ")
	}

	name := strings.Join(labels, " ")
	if len(labels) > 1 {
		name += " bowl"
	}
	return name
}

// depluralize naively strips a trailing "s", leaving "ss" endings alone
func depluralize(label string) string {
	if strings.HasSuffix(label, "s") && !strings.HasSuffix(label, "ss") {
		return strings.TrimSuffix(label, "s")
	}
	return label
}

// titleWords upper-cases the first rune of each word in a lowercased
// label for display.
func titleWords(label string) string {
	words := strings.Fields(label)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

var _ providers.FoodRecognizer = (*VisionAdapter)(nil)
