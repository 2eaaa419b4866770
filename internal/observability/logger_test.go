package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gherkit/gherkit/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer so tests can capture
// the console stream.
type syncBuffer struct {
	bytes.Buffer
}

func (*syncBuffer) Sync() error { return nil }

func testLoggerConfig() config.LoggerConfig {
	return config.Default().Logger
}

func TestInitialize(t *testing.T) {
	t.Run("should emit single-line console output with the service name", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.LogFile = ""
		cfg.Colors = false
		Initialize(cfg, &buf)

		GetLogger().Info("Run started.", zap.String("run_id", "run-1"))

		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "gherkit.")
		assert.Contains(t, out, "Run started.")
		assert.Contains(t, out, "run-1")
	})

	t.Run("should wrap levels in ANSI colors when enabled", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.LogFile = ""
		cfg.Colors = true
		Initialize(cfg, &buf)

		GetLogger().Warn("Trace missing.")
		assert.Contains(t, buf.String(), colorYellow+"WARN"+colorReset)
	})

	t.Run("should tee JSON entries into the log file", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		logFile := filepath.Join(t.TempDir(), "gherkit.log")
		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.LogFile = logFile
		Initialize(cfg, &buf)

		GetLogger().Info("Scenario finished.", zap.String("status", "passed"))
		Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "Scenario finished.", entry["msg"])
		assert.Equal(t, "passed", entry["status"])
	})

	t.Run("should honor the configured level", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.LogFile = ""
		cfg.Level = "warn"
		Initialize(cfg, &buf)

		GetLogger().Info("quiet")
		GetLogger().Warn("loud")

		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "loud")
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.LogFile = ""
		cfg.Level = "chatty"
		Initialize(cfg, &buf)

		GetLogger().Info("visible")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("should initialize only once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var first, second syncBuffer
		cfg := testLoggerConfig()
		cfg.LogFile = ""
		cfg.Colors = false
		Initialize(cfg, &first)
		Initialize(cfg, &second)

		GetLogger().Info("routed")
		assert.Contains(t, first.String(), "routed")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must never panic, even at high verbosity.
	logger.Debug("pre-init message")
}

func TestColorizedLevelEncoder(t *testing.T) {
	arr := &stubArrayEncoder{}
	colorizedLevelEncoder(zapcore.ErrorLevel, arr)
	assert.Equal(t, colorRed+"ERROR"+colorReset, arr.last)
}

type stubArrayEncoder struct {
	zapcore.PrimitiveArrayEncoder
	last string
}

func (s *stubArrayEncoder) AppendString(v string) { s.last = v }
