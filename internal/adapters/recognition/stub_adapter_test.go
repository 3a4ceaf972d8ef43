package recognition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
)

func TestStubAdapter_DeterministicBaseline(t *testing.T) {
	adapter := NewStubAdapter()

	first, err := adapter.Analyze(context.Background(), "https://img.example/1.jpg", "")
	require.NoError(t, err)
	second, err := adapter.Analyze(context.Background(), "https://img.example/2.jpg", "pasta")
	require.NoError(t, err)

	assert.Equal(t, entities.RecognitionSuccess, first.Status)
	assert.Equal(t, first.Items, second.Items)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "mixed salad", first.Items[0].Label)
	assert.Equal(t, 150.0, first.Items[0].QuantityG)
	assert.Equal(t, "grilled chicken breast", first.Items[1].Label)
	assert.Equal(t, 120.0, first.Items[1].QuantityG)
}

func TestHeuristicAdapter_EvenDigitSumScalesFirstItem(t *testing.T) {
	adapter := NewHeuristicAdapter()

	// digits 1+3 = 4, even
	result, err := adapter.Analyze(context.Background(), "https://img.example/photo13.jpg", "")
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 180.0, result.Items[0].QuantityG)
	assert.Equal(t, 0.6, result.Items[0].Confidence)
	assert.Equal(t, 0.5, result.Items[1].Confidence)
}

func TestHeuristicAdapter_OddDigitSumKeepsBaseline(t *testing.T) {
	adapter := NewHeuristicAdapter()

	// digits 1+2 = 3, odd
	result, err := adapter.Analyze(context.Background(), "https://img.example/photo12.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Items[0].QuantityG)
	assert.Equal(t, 0.5, result.Items[0].Confidence)
}

func TestHeuristicAdapter_BeverageHintAppendsWater(t *testing.T) {
	adapter := NewHeuristicAdapter()

	result, err := adapter.Analyze(context.Background(), "https://img.example/green-smoothie1.jpg", "")
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	water := result.Items[2]
	assert.Equal(t, "water", water.Label)
	assert.Equal(t, 250.0, water.QuantityG)
	assert.Equal(t, 0.7, water.Confidence)
	assert.Equal(t, "beverage", water.Category)
}

func TestRemoteModelAdapter_TimeoutDowngrades(t *testing.T) {
	adapter := NewRemoteModelAdapter(RemoteModelConfig{
		Latency:  50,
		Timeout:  10,
		Fallback: NewStubAdapter(),
	})

	result, err := adapter.Analyze(context.Background(), "https://img.example/photo.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, entities.RecognitionPartial, result.Status)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 150.0, result.Items[0].QuantityG)
}

func TestRemoteModelAdapter_SimulatedFailureDowngrades(t *testing.T) {
	adapter := NewRemoteModelAdapter(RemoteModelConfig{
		FailureRate: 1.0,
		Fallback:    NewStubAdapter(),
	})

	result, err := adapter.Analyze(context.Background(), "https://img.example/photo.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, entities.RecognitionPartial, result.Status)
}

func TestRemoteModelAdapter_SuccessRefinesBaseline(t *testing.T) {
	adapter := NewRemoteModelAdapter(RemoteModelConfig{
		FailureRate: 0,
	})

	result, err := adapter.Analyze(context.Background(), "https://img.example/photo.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, entities.RecognitionSuccess, result.Status)
	require.Len(t, result.Items, 2)
	assert.Greater(t, result.Items[0].QuantityG, 150.0)
	assert.Greater(t, result.Items[0].Confidence, 0.5)
}

func TestRemoteModelAdapter_DeterministicPerURL(t *testing.T) {
	adapter := NewRemoteModelAdapter(RemoteModelConfig{FailureRate: 0.5})

	url := "https://img.example/fixed.jpg"
	first, err := adapter.Analyze(context.Background(), url, "")
	require.NoError(t, err)
	second, err := adapter.Analyze(context.Background(), url, "")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Items, second.Items)
}
