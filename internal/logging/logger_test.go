package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("warn", "prod", &buf)

	logger.Info().Msg("dropped")
	logger.Warn().Str("booking_id", "b-1").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "b-1", line["booking_id"])
	assert.Contains(t, line, "time")
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("loud", "prod", &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
