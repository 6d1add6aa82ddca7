package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// LogLevel defines the minimum severity for error logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

const (
	defaultAddress                 = ":8080"
	defaultReadTimeout             = 10 * time.Second
	defaultWriteTimeout            = 30 * time.Second
	defaultGracefulShutdownTimeout = 30 * time.Second
	defaultMaxHeaderBytes          = 64 * 1024
	defaultAccessLogFormat         = "json"
)

// Config is the top-level configuration structure for the server.
type Config struct {
	Server   *ServerConfig   `json:"server,omitempty" toml:"server,omitempty"`
	Response *ResponseConfig `json:"response,omitempty" toml:"response,omitempty"`
	Logging  *LoggingConfig  `json:"logging,omitempty" toml:"logging,omitempty"`

	// OriginalFilePath is the absolute path the configuration was loaded from.
	OriginalFilePath string `json:"-" toml:"-"`
}

// ServerConfig holds general server settings.
type ServerConfig struct {
	Address *string `json:"address,omitempty" toml:"address,omitempty"`
	// DocumentRoot is the served directory. Empty means the working directory at startup.
	DocumentRoot            string    `json:"document_root,omitempty" toml:"document_root,omitempty"`
	MaxConnections          *int      `json:"max_connections,omitempty" toml:"max_connections,omitempty"`
	MaxHeaderBytes          *int      `json:"max_header_bytes,omitempty" toml:"max_header_bytes,omitempty"`
	ReadTimeout             *Duration `json:"read_timeout,omitempty" toml:"read_timeout,omitempty"`                           // e.g., "10s"
	WriteTimeout            *Duration `json:"write_timeout,omitempty" toml:"write_timeout,omitempty"`                         // e.g., "30s"
	GracefulShutdownTimeout *Duration `json:"graceful_shutdown_timeout,omitempty" toml:"graceful_shutdown_timeout,omitempty"` // e.g., "30s"
}

// ResponseConfig tunes how responses are built.
type ResponseConfig struct {
	// SortEntries orders directory listings lexicographically instead of
	// filesystem enumeration order.
	SortEntries *bool `json:"sort_entries,omitempty" toml:"sort_entries,omitempty"`
	// StrictLineEndings terminates every header line with CRLF instead of the
	// legacy bare LF.
	StrictLineEndings *bool `json:"strict_line_endings,omitempty" toml:"strict_line_endings,omitempty"`
	// MimeTypes maps extensions (".ext") to content types for files whose
	// leading bytes match no known signature.
	MimeTypes map[string]string `json:"mime_types,omitempty" toml:"mime_types,omitempty"`
	// MimeTypesPath points at a JSON object with the same shape as MimeTypes.
	// Relative paths are resolved against the configuration file's directory.
	MimeTypesPath *string `json:"mime_types_path,omitempty" toml:"mime_types_path,omitempty"`
}

// LoggingConfig holds logging configurations.
type LoggingConfig struct {
	LogLevel  LogLevel         `json:"log_level,omitempty" toml:"log_level,omitempty"`
	AccessLog *AccessLogConfig `json:"access_log,omitempty" toml:"access_log,omitempty"`
	ErrorLog  *ErrorLogConfig  `json:"error_log,omitempty" toml:"error_log,omitempty"`
}

// AccessLogConfig configures access logging.
type AccessLogConfig struct {
	Enabled *bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	Target  *string `json:"target,omitempty" toml:"target,omitempty"`
	Format  string  `json:"format,omitempty" toml:"format,omitempty"`
}

// ErrorLogConfig configures error logging.
type ErrorLogConfig struct {
	Target *string `json:"target,omitempty" toml:"target,omitempty"`
}

// ConfigError reports a problem with a configuration file or value.
type ConfigError struct {
	FilePath string
	Message  string
	Err      error
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	if e.FilePath != "" {
		sb.WriteString(e.FilePath)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Duration wraps time.Duration so it can be written as "10s" in JSON and TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler (used by TOML).
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// IsFilePath reports whether a log target names a file rather than a standard stream.
func IsFilePath(target string) bool {
	return target != "" && target != "stdout" && target != "stderr"
}

// LoadConfig reads, decodes, defaults and validates the configuration at path.
// The format is chosen by extension (.json, .toml); other extensions are tried
// as JSON first and then as TOML.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, &ConfigError{Message: "configuration file path cannot be empty"}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &ConfigError{FilePath: path, Message: "failed to resolve configuration file path", Err: err}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &ConfigError{FilePath: absPath, Message: "failed to read configuration file", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{FilePath: absPath, Message: "configuration file is empty"}
	}

	cfg, err := decode(absPath, data)
	if err != nil {
		return nil, err
	}
	cfg.OriginalFilePath = absPath

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) && cerr.FilePath == "" {
			cerr.FilePath = absPath
		}
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, &ConfigError{FilePath: path, Message: "failed to parse JSON configuration", Err: err}
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, &ConfigError{FilePath: path, Message: "failed to parse TOML configuration", Err: err}
		}
	default:
		jsonErr := json.Unmarshal(data, &cfg)
		if jsonErr == nil {
			return &cfg, nil
		}
		cfg = Config{}
		if _, tomlErr := toml.Decode(string(data), &cfg); tomlErr != nil {
			return nil, &ConfigError{
				FilePath: path,
				Message:  "failed to auto-detect configuration format (tried JSON and TOML)",
				Err:      fmt.Errorf("json: %v; toml: %w", jsonErr, tomlErr),
			}
		}
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	s := cfg.Server
	if s.Address == nil {
		s.Address = strPtr(defaultAddress)
	}
	if s.MaxConnections == nil {
		s.MaxConnections = intPtr(0)
	}
	if s.MaxHeaderBytes == nil {
		s.MaxHeaderBytes = intPtr(defaultMaxHeaderBytes)
	}
	if s.ReadTimeout == nil {
		s.ReadTimeout = &Duration{defaultReadTimeout}
	}
	if s.WriteTimeout == nil {
		s.WriteTimeout = &Duration{defaultWriteTimeout}
	}
	if s.GracefulShutdownTimeout == nil {
		s.GracefulShutdownTimeout = &Duration{defaultGracefulShutdownTimeout}
	}

	if cfg.Response == nil {
		cfg.Response = &ResponseConfig{}
	}
	r := cfg.Response
	if r.SortEntries == nil {
		r.SortEntries = boolPtr(false)
	}
	if r.StrictLineEndings == nil {
		r.StrictLineEndings = boolPtr(false)
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	l := cfg.Logging
	if l.LogLevel == "" {
		l.LogLevel = LogLevelInfo
	}
	if l.AccessLog == nil {
		l.AccessLog = &AccessLogConfig{}
	}
	if l.AccessLog.Enabled == nil {
		l.AccessLog.Enabled = boolPtr(true)
	}
	if l.AccessLog.Target == nil {
		l.AccessLog.Target = strPtr("stdout")
	}
	if l.AccessLog.Format == "" {
		l.AccessLog.Format = defaultAccessLogFormat
	}
	if l.ErrorLog == nil {
		l.ErrorLog = &ErrorLogConfig{}
	}
	if l.ErrorLog.Target == nil {
		l.ErrorLog.Target = strPtr("stderr")
	}
}

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ConfigError{Message: "configuration cannot be nil"}
	}

	if s := cfg.Server; s != nil {
		if s.Address != nil && *s.Address == "" {
			return &ConfigError{Message: "server.address cannot be empty"}
		}
		if s.MaxConnections != nil && *s.MaxConnections < 0 {
			return &ConfigError{Message: fmt.Sprintf("server.max_connections must be >= 0, got %d", *s.MaxConnections)}
		}
		if s.MaxHeaderBytes != nil && *s.MaxHeaderBytes <= 0 {
			return &ConfigError{Message: fmt.Sprintf("server.max_header_bytes must be > 0, got %d", *s.MaxHeaderBytes)}
		}
		for name, d := range map[string]*Duration{
			"server.read_timeout":              s.ReadTimeout,
			"server.write_timeout":             s.WriteTimeout,
			"server.graceful_shutdown_timeout": s.GracefulShutdownTimeout,
		} {
			if d != nil && d.Duration < 0 {
				return &ConfigError{Message: fmt.Sprintf("%s cannot be negative, got %s", name, d.Duration)}
			}
		}
	}

	if r := cfg.Response; r != nil {
		for ext, mimeType := range r.MimeTypes {
			if !strings.HasPrefix(ext, ".") {
				return &ConfigError{Message: fmt.Sprintf("response.mime_types: extension %q must start with a '.'", ext)}
			}
			if mimeType == "" {
				return &ConfigError{Message: fmt.Sprintf("response.mime_types: empty MIME type for extension %q", ext)}
			}
		}
		if r.MimeTypesPath != nil && *r.MimeTypesPath == "" {
			return &ConfigError{Message: "response.mime_types_path cannot be an empty string"}
		}
	}

	if l := cfg.Logging; l != nil {
		switch l.LogLevel {
		case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, "":
		default:
			return &ConfigError{Message: fmt.Sprintf("logging.log_level %q is not one of DEBUG, INFO, WARNING, ERROR", l.LogLevel)}
		}
		if a := l.AccessLog; a != nil {
			if a.Format != "" && a.Format != "json" && a.Format != "text" {
				return &ConfigError{Message: fmt.Sprintf("logging.access_log.format %q must be \"json\" or \"text\"", a.Format)}
			}
			if a.Target != nil {
				if err := validateTarget("logging.access_log.target", *a.Target); err != nil {
					return err
				}
			}
		}
		if e := l.ErrorLog; e != nil && e.Target != nil {
			if err := validateTarget("logging.error_log.target", *e.Target); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTarget(field, target string) error {
	if target == "" {
		return &ConfigError{Message: field + " cannot be empty"}
	}
	if IsFilePath(target) && !filepath.IsAbs(target) {
		return &ConfigError{Message: fmt.Sprintf("%s %q must be \"stdout\", \"stderr\" or an absolute file path", field, target)}
	}
	return nil
}

// ResolveMimeTypesPath returns the custom MIME types file path, resolved against
// the directory of the loaded configuration file. It returns "" when unset.
func (c *Config) ResolveMimeTypesPath() string {
	if c.Response == nil || c.Response.MimeTypesPath == nil {
		return ""
	}
	p := *c.Response.MimeTypesPath
	if !filepath.IsAbs(p) && c.OriginalFilePath != "" {
		p = filepath.Join(filepath.Dir(c.OriginalFilePath), p)
	}
	return p
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
