package recognition

import (
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
)

// NewFoodRecognizer builds the recognizer selected by configuration.
// Unknown modes fall back to the stub so a typo in deployment config
// never takes the photo pipeline down.
func NewFoodRecognizer(cfg config.RecognitionConfig, vision providers.VisionCompletionProvider, enricher NutritionEnricher) providers.FoodRecognizer {
	switch cfg.Mode {
	case "heuristic":
		return NewHeuristicAdapter()
	case "model":
		var fallback providers.FoodRecognizer
		if cfg.FallbackTier == "stub" {
			fallback = NewStubAdapter()
		} else {
			fallback = NewHeuristicAdapter()
		}
		return NewRemoteModelAdapter(RemoteModelConfig{
			Latency:     time.Duration(cfg.SimulatedLatency) * time.Millisecond,
			Timeout:     2 * time.Second,
			FailureRate: cfg.FailureRate,
			Fallback:    fallback,
		})
	case "gpt4v":
		if vision != nil {
			return NewVisionAdapter(vision, enricher, NormalizationMode(cfg.Normalization), 25*time.Second)
		}
		return NewStubAdapter()
	default:
		return NewStubAdapter()
	}
}
