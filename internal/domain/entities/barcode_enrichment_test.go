package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBarcodeQuality_OverallScore(t *testing.T) {
	full := BarcodeQuality{Completeness: 1.0, SourceReliability: 0.95, DataFreshness: 0.90}
	assert.Equal(t, 0.96, full.OverallScore())

	partial := BarcodeQuality{Completeness: 0.57, SourceReliability: 0.80, DataFreshness: 0.85}
	assert.Equal(t, 0.72, partial.OverallScore())

	empty := BarcodeQuality{}
	assert.Equal(t, 0.0, empty.OverallScore())
}
