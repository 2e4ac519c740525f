package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/dex-connector/internal/config"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	logger, err := NewLogger(config.LoggingConfig{
		Level:       "DEBUG",
		Encoding:    "json",
		OutputPaths: []string{out},
	})
	require.NoError(t, err)

	logger.Named("connector").Debug("factory resolved")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))

	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "connector", entry["logger"])
	assert.Equal(t, "factory resolved", entry["msg"])
	assert.Equal(t, serviceName, entry["service"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestNewLoggerLevelFilter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Encoding: "json", OutputPaths: []string{out}})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
