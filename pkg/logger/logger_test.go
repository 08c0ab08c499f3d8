package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_AttachesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("bin-service", &buf)

	log.WithComponent("poller").WithRequestID("req-1").Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bin-service", entry["service"])
	assert.Equal(t, "poller", entry["component"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNop_WritesNothing(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.WithCorrelationID("c").Error().Msg("dropped")
	})
}
