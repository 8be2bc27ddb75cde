package util

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEventNotInitialized(t *testing.T) {
	logger := &ListenerLogger{}
	assert.ErrorIs(t, logger.LogEvent(LOG_LEVEL_INFO, "dropped"), ErrLogNotInitialized)
	logger.DeInit()
}

func TestLogEventWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := &ListenerLogger{}
	logger.InitWriter(&buf)

	require.NoError(t, logger.LogEvent(LOG_LEVEL_WARN, "Sink queue full, dropping point for measurement ", "requests"))
	require.NoError(t, logger.LogEvent("no level given"))
	logger.DeInit()

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "influxdb-listener")
	assert.Contains(t, out, "dropping point for measurement  requests")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "no level given")

	assert.ErrorIs(t, logger.LogEvent(LOG_LEVEL_INFO, "after close"), ErrLogNotInitialized)
}

func TestLogEventRespectsGlobalLevel(t *testing.T) {
	SetCommonLoggerAttributes(LOG_LEVEL_ERROR)
	defer SetCommonLoggerAttributes(LOG_LEVEL_INFO)

	var buf bytes.Buffer
	logger := &ListenerLogger{}
	logger.InitWriter(&buf)

	logger.LogEvent(LOG_LEVEL_INFO, "quiet")
	logger.LogEvent(LOG_LEVEL_ERROR, "loud")
	logger.DeInit()

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestInitLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	CheckAndCreateLogFolder(dir)

	prev := LOG_FOLDER_NAME_WITH_PATH
	SetLoggerPath(dir)
	defer SetLoggerPath(prev)

	logger := &ListenerLogger{}
	require.NoError(t, logger.Init("listener.log", true))
	logger.LogEvent(LOG_LEVEL_INFO, "Created storage ", "jmeter")
	logger.DeInit()

	data, err := os.ReadFile(filepath.Join(dir, "listener.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Created storage  jmeter")
}
