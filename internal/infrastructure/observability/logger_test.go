package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitLogger_LevelParsing(t *testing.T) {
	InitLogger("meal-analysis", "production", "debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	InitLogger("meal-analysis", "production", "not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestAnalysisLogger_CarriesAnalysisFields(t *testing.T) {
	InitLogger("meal-analysis", "production", "info")
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	AnalysisLogger(context.Background(), "analysis_0123456789ab", "BARCODE_SCAN").
		Info().Msg("analysis persisted")

	out := buf.String()
	assert.Contains(t, out, `"analysis_id":"analysis_0123456789ab"`)
	assert.Contains(t, out, `"analysis_source":"BARCODE_SCAN"`)
	assert.Contains(t, out, "analysis persisted")
}
