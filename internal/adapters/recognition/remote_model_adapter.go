package recognition

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
)

// RemoteModelConfig tunes the simulated remote recognition model
type RemoteModelConfig struct {
	Latency time.Duration
	Timeout time.Duration
	// FailureRate in [0, 1]; applied deterministically per URL so the
	// same photo always behaves the same way.
	FailureRate float64
	// Fallback receives the call when the simulated round trip fails
	Fallback providers.FoodRecognizer
}

// RemoteModelAdapter simulates a network round trip to a hosted
// recognition model. Simulated timeouts and failures downgrade
// transparently to the configured fallback tier; a success lightly
// refines the baseline.
type RemoteModelAdapter struct {
	cfg  RemoteModelConfig
	stub *StubAdapter
}

// NewRemoteModelAdapter creates a new simulated remote recognizer
func NewRemoteModelAdapter(cfg RemoteModelConfig) *RemoteModelAdapter {
	if cfg.Fallback == nil {
		cfg.Fallback = NewHeuristicAdapter()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &RemoteModelAdapter{cfg: cfg, stub: NewStubAdapter()}
}

// Analyze simulates the round trip and never returns an error: the
// fallback tier absorbs every simulated failure.
func (a *RemoteModelAdapter) Analyze(ctx context.Context, photoURL, dishHint string) (*entities.FoodRecognitionResult, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	if a.cfg.Latency >= a.cfg.Timeout {
		logger.Warn().Str("photo_url", photoURL).Msg("remote recognition model timed out, downgrading")
		result, _ := a.cfg.Fallback.Analyze(ctx, photoURL, dishHint)
		result.Status = entities.RecognitionPartial
		return result, nil
	}

	select {
	case <-ctx.Done():
		logger.Warn().Str("photo_url", photoURL).Msg("remote recognition canceled, downgrading")
		fallbackCtx := context.WithoutCancel(ctx)
		result, _ := a.cfg.Fallback.Analyze(fallbackCtx, photoURL, dishHint)
		result.Status = entities.RecognitionPartial
		return result, nil
	case <-time.After(a.cfg.Latency):
	}

	if a.simulatedFailure(photoURL) {
		logger.Warn().Str("photo_url", photoURL).Msg("remote recognition model failed, downgrading")
		result, _ := a.cfg.Fallback.Analyze(ctx, photoURL, dishHint)
		result.Status = entities.RecognitionPartial
		return result, nil
	}

	result, _ := a.stub.Analyze(ctx, photoURL, dishHint)
	for i, item := range result.Items {
		item.QuantityG = entities.Round1(item.QuantityG * 1.05)
		item.Confidence = clampConfidence(item.Confidence + 0.15)
		result.Items[i] = item
	}
	result.Confidence = averageConfidence(result.Items)
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	return result, nil
}

// simulatedFailure hashes the URL into [0, 1) and compares against the
// configured failure rate, keeping the simulation reproducible.
func (a *RemoteModelAdapter) simulatedFailure(photoURL string) bool {
	if a.cfg.FailureRate <= 0 {
		return false
	}
	if a.cfg.FailureRate >= 1 {
		return true
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(photoURL))
	bucket := float64(h.Sum32()%1000) / 1000.0
	return bucket < a.cfg.FailureRate
}

var _ providers.FoodRecognizer = (*RemoteModelAdapter)(nil)
