package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ariadne-eth/ariadne/logging/colors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestAddAndRemoveWriter will test the Logger.AddWriter and Logger.RemoveWriter functions to ensure that writers are
// tracked correctly and duplicates are rejected.
func TestAddAndRemoveWriter(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)

	// Add a structured writer and make sure duplicates are not re-added
	var buf bytes.Buffer
	logger.AddWriter(&buf, STRUCTURED)
	logger.AddWriter(&buf, STRUCTURED)
	assert.Equal(t, 1, len(logger.writers))

	// Remove the writer and make sure the list is empty again
	logger.RemoveWriter(&buf)
	assert.Equal(t, 0, len(logger.writers))
}

// TestStructuredOutput will test that log events sent to an arbitrary writer carry the structured fields added by
// sub-loggers.
func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)
	subLogger := logger.NewSubLogger("module", "tracing")

	subLogger.Info("reconstructed call tree")

	out := buf.String()
	assert.Contains(t, out, `"module":"tracing"`)
	assert.Contains(t, out, "reconstructed call tree")
}

// TestColorContextSwitching will test that color functions passed as arguments only affect console output and that
// the plain message is preserved for structured writers.
func TestColorContextSwitching(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)

	logger.Info("status: ", colors.Green, "success")

	// The structured writer must hold the un-colorized message
	out := buf.String()
	assert.Contains(t, out, "status: success")
	assert.False(t, strings.Contains(out, "\x1b["))
}

// TestLevelUpdates will test that updating the log level filters events below it.
func TestLevelUpdates(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.Level())

	logger.SetLevel(zerolog.ErrorLevel)
	logger.Info("should be filtered")
	assert.NotContains(t, buf.String(), "should be filtered")

	logger.Error("should appear")
	assert.Contains(t, buf.String(), "should appear")
}
