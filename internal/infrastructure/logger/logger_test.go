// internal/infrastructure/logger/logger_test.go
package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(s)), &entry))
	return entry
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, DebugLevel)

	log.Debug("Debug message", map[string]interface{}{
		"key1": "value1",
	})

	entry := decodeLine(t, buf.String())
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "Debug message", entry["message"])
	assert.Equal(t, "value1", entry["key1"])
	assert.Contains(t, entry, "ts")
	assert.Contains(t, entry["caller"], "logger_test.go")

	// Test that log levels are respected
	buf.Reset()
	warnLogger := NewJSONLogger(&buf, WarnLevel)

	warnLogger.Debug("Should not appear", nil)
	warnLogger.Info("Should not appear either", nil)
	assert.Equal(t, "", buf.String())

	warnLogger.Warn("Warning message", nil)
	assert.Contains(t, buf.String(), "Warning message")

	// Test WithField
	buf.Reset()
	log.WithField("context", "test").Info("With field", nil)

	entry = decodeLine(t, buf.String())
	assert.Equal(t, "test", entry["context"])
	assert.Equal(t, "With field", entry["message"])
	assert.Equal(t, "info", entry["level"])

	// Test WithFields, per-call fields override context fields
	buf.Reset()
	fieldsLogger := log.WithFields(map[string]interface{}{
		"app":     "catalog",
		"version": "1.0.0",
	})
	fieldsLogger.Error("With fields", map[string]interface{}{"version": "2.0.0"})

	entry = decodeLine(t, buf.String())
	assert.Equal(t, "catalog", entry["app"])
	assert.Equal(t, "2.0.0", entry["version"])
	assert.Equal(t, "error", entry["level"])
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, InfoLevel)

	code := -1
	log.exit = func(c int) { code = c }

	log.Fatal("Cannot continue", nil)

	assert.Equal(t, 1, code)
	entry := decodeLine(t, buf.String())
	assert.Equal(t, true, entry["fatal"])
	assert.Equal(t, "error", entry["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}

func TestSetDefaultLogger(t *testing.T) {
	original := GetDefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewJSONLogger(&buf, DebugLevel))
	GetDefaultLogger().Info("through default", nil)
	assert.Contains(t, buf.String(), "through default")

	// nil is ignored
	SetDefaultLogger(nil)
	assert.NotNil(t, GetDefaultLogger())
}
