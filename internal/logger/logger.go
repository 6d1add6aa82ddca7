package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"example.com/rawhttpd/internal/config"
)

// LogFields carries structured key/value pairs attached to a log entry.
type LogFields map[string]interface{}

// AccessEntry describes one served request.
type AccessEntry struct {
	ConnID        string
	RemoteAddr    string
	Method        string
	Path          string
	Protocol      string
	Status        int
	ResponseBytes int64
	Duration      time.Duration
}

// AccessLogger handles access logging.
type AccessLogger struct {
	logger zerolog.Logger
	output io.Writer
}

// ErrorLogger handles error logging.
type ErrorLogger struct {
	logger zerolog.Logger
	output io.Writer
}

// Logger is a general logger that contains specific loggers for access and errors.
type Logger struct {
	accessLog *AccessLogger
	errorLog  *ErrorLogger
	files     []*os.File
}

// NewLogger creates and configures a new Logger instance.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	l := &Logger{}

	errorTarget := "stderr"
	if cfg.ErrorLog != nil && cfg.ErrorLog.Target != nil {
		errorTarget = *cfg.ErrorLog.Target
	}
	errorOutput, err := l.openTarget(errorTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log target %s: %w", errorTarget, err)
	}
	l.errorLog = newErrorLogger(errorOutput, cfg.LogLevel)

	if cfg.AccessLog != nil && (cfg.AccessLog.Enabled == nil || *cfg.AccessLog.Enabled) {
		accessTarget := "stdout"
		if cfg.AccessLog.Target != nil {
			accessTarget = *cfg.AccessLog.Target
		}
		accessOutput, err := l.openTarget(accessTarget)
		if err != nil {
			closeErr := l.CloseLogFiles()
			return nil, multierr.Append(
				fmt.Errorf("failed to open access log target %s: %w", accessTarget, err),
				closeErr,
			)
		}
		l.accessLog = newAccessLogger(accessOutput, cfg.AccessLog.Format)
	}

	return l, nil
}

// NewDiscardLogger returns a Logger that drops everything.
func NewDiscardLogger() *Logger {
	return &Logger{
		errorLog: &ErrorLogger{logger: zerolog.Nop(), output: io.Discard},
	}
}

// NewWriterLogger builds a Logger on caller-supplied writers. A nil accessOut
// disables access logging.
func NewWriterLogger(level config.LogLevel, errorOut io.Writer, accessOut io.Writer, accessFormat string) *Logger {
	l := &Logger{errorLog: newErrorLogger(errorOut, level)}
	if accessOut != nil {
		l.accessLog = newAccessLogger(accessOut, accessFormat)
	}
	return l
}

func (l *Logger) openTarget(target string) (io.Writer, error) {
	switch target {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l.files = append(l.files, f)
	return f, nil
}

func newErrorLogger(out io.Writer, level config.LogLevel) *ErrorLogger {
	return &ErrorLogger{
		logger: zerolog.New(out).Level(toZerologLevel(level)).With().Timestamp().Logger(),
		output: out,
	}
}

func newAccessLogger(out io.Writer, format string) *AccessLogger {
	w := out
	if format == "text" {
		w = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	}
	return &AccessLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
		output: out,
	}
}

func toZerologLevel(level config.LogLevel) zerolog.Level {
	switch level {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogAccess writes one access log entry.
func (al *AccessLogger) LogAccess(e AccessEntry) {
	if al == nil {
		return
	}
	ev := al.logger.Log().
		Str("remote_addr", e.RemoteAddr).
		Str("method", e.Method).
		Str("uri", e.Path).
		Str("protocol", e.Protocol).
		Int("status", e.Status).
		Int64("resp_bytes", e.ResponseBytes).
		Str("resp_size", humanize.Bytes(uint64(max(e.ResponseBytes, 0)))).
		Int64("duration_ms", e.Duration.Milliseconds())
	if e.ConnID != "" {
		ev = ev.Str("conn_id", e.ConnID)
	}
	ev.Send()
}

// LogError writes an entry at the given level if it passes the configured threshold.
func (el *ErrorLogger) LogError(level config.LogLevel, msg string, fields LogFields) {
	if el == nil {
		return
	}
	var ev *zerolog.Event
	switch level {
	case config.LogLevelDebug:
		ev = el.logger.Debug()
	case config.LogLevelWarning:
		ev = el.logger.Warn()
	case config.LogLevelError:
		ev = el.logger.Error()
	default:
		ev = el.logger.Info()
	}
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		ev = ev.Fields(map[string]interface{}(fields))
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelWarning, msg, fields)
}

func (l *Logger) Error(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelError, msg, fields)
}

// Access records a served request when access logging is enabled.
func (l *Logger) Access(e AccessEntry) {
	l.accessLog.LogAccess(e)
}

// CloseLogFiles closes any file-backed log targets.
func (l *Logger) CloseLogFiles() error {
	var err error
	for _, f := range l.files {
		err = multierr.Append(err, f.Close())
	}
	l.files = nil
	return err
}
