package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/rawhttpd/internal/config"
)

// readLogBuffer splits buffered log output into lines.
func readLogBuffer(buf *bytes.Buffer) []string {
	s := strings.TrimRight(buf.String(), "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }

func TestNewLogger_NilConfig(t *testing.T) {
	_, err := NewLogger(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestErrorLogger_LevelThreshold(t *testing.T) {
	var errBuf bytes.Buffer
	lg := NewWriterLogger(config.LogLevelWarning, &errBuf, nil, "")

	lg.Debug("debug message", nil)
	lg.Info("info message", nil)
	lg.Warn("warn message", LogFields{"path": "/a"})
	lg.Error("error message", LogFields{"error": "boom"})

	lines := readLogBuffer(&errBuf)
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "warn message", entry["message"])
	assert.Equal(t, "/a", entry["path"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestAccessLogger_JSON(t *testing.T) {
	var errBuf, accBuf bytes.Buffer
	lg := NewWriterLogger(config.LogLevelInfo, &errBuf, &accBuf, "json")

	lg.Access(AccessEntry{
		ConnID:        "c-1",
		RemoteAddr:    "127.0.0.1:5555",
		Method:        "GET",
		Path:          "/logo.png",
		Protocol:      "HTTP/1.1",
		Status:        200,
		ResponseBytes: 2048,
		Duration:      15 * time.Millisecond,
	})

	lines := readLogBuffer(&accBuf)
	require.Len(t, lines, 1)
	assert.Empty(t, errBuf.String())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/logo.png", entry["uri"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 2048, entry["resp_bytes"])
	assert.Equal(t, "2.0 kB", entry["resp_size"])
	assert.EqualValues(t, 15, entry["duration_ms"])
	assert.Equal(t, "c-1", entry["conn_id"])
	assert.NotEmpty(t, entry["time"])
}

func TestAccessLogger_Text(t *testing.T) {
	var accBuf bytes.Buffer
	lg := NewWriterLogger(config.LogLevelInfo, &bytes.Buffer{}, &accBuf, "text")

	lg.Access(AccessEntry{Method: "HEAD", Path: "/", Status: 404})

	out := accBuf.String()
	assert.Contains(t, out, "method=HEAD")
	assert.Contains(t, out, "status=404")
	assert.False(t, strings.HasPrefix(out, "{"), "text format must not be JSON")
}

func TestAccessLogger_Disabled(t *testing.T) {
	lg := NewWriterLogger(config.LogLevelInfo, &bytes.Buffer{}, nil, "json")
	assert.NotPanics(t, func() {
		lg.Access(AccessEntry{Method: "GET", Path: "/", Status: 200})
	})
}

func TestNewLogger_FileTargets(t *testing.T) {
	dir := t.TempDir()
	errPath := filepath.Join(dir, "error.log")
	accPath := filepath.Join(dir, "access.log")

	lg, err := NewLogger(&config.LoggingConfig{
		LogLevel: config.LogLevelDebug,
		AccessLog: &config.AccessLogConfig{
			Enabled: boolPtr(true),
			Target:  stringPtr(accPath),
			Format:  "json",
		},
		ErrorLog: &config.ErrorLogConfig{Target: stringPtr(errPath)},
	})
	require.NoError(t, err)

	lg.Debug("to file", LogFields{"k": "v"})
	lg.Access(AccessEntry{Method: "GET", Path: "/x", Status: 200})
	require.NoError(t, lg.CloseLogFiles())

	errData, err := os.ReadFile(errPath)
	require.NoError(t, err)
	assert.Contains(t, string(errData), `"message":"to file"`)

	accData, err := os.ReadFile(accPath)
	require.NoError(t, err)
	assert.Contains(t, string(accData), `"uri":"/x"`)
}

func TestNewLogger_UnopenableAccessTarget(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLogger(&config.LoggingConfig{
		AccessLog: &config.AccessLogConfig{
			Enabled: boolPtr(true),
			Target:  stringPtr(filepath.Join(dir, "missing", "access.log")),
		},
		ErrorLog: &config.ErrorLogConfig{Target: stringPtr(filepath.Join(dir, "error.log"))},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open access log target")
}

func TestNewDiscardLogger(t *testing.T) {
	lg := NewDiscardLogger()
	assert.NotPanics(t, func() {
		lg.Error("dropped", LogFields{"a": 1})
		lg.Access(AccessEntry{})
	})
	assert.NoError(t, lg.CloseLogFiles())
}
