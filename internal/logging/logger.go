// Package logging builds the slog loggers used by the long-running commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

const (
	EnvFormat = "LOG_FORMAT"
	EnvLevel  = "LOG_LEVEL"

	appName = "stackspend"
)

var (
	formats    = []string{"json", "text"}
	levels     = map[string]slog.Level{"debug": slog.LevelDebug, "info": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError}
	secretKeys = []string{"password", "secret", "token", "authorization", "credentials"}
)

// Config is a validated LOG_FORMAT and LOG_LEVEL pair.
type Config struct {
	Format string
	Level  slog.Level
}

type BootstrapOptions struct {
	Command string
	Writer  io.Writer
}

func DefaultConfig() Config {
	return Config{Format: "json", Level: slog.LevelInfo}
}

// ParseConfig validates format and level. Blank values take the defaults.
func ParseConfig(format, level string) (Config, error) {
	cfg := DefaultConfig()
	if format = strings.ToLower(strings.TrimSpace(format)); format != "" {
		if !slices.Contains(formats, format) {
			return Config{}, fmt.Errorf("%s must be one of: %s", EnvFormat, strings.Join(formats, ", "))
		}
		cfg.Format = format
	}
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		lvl, ok := levels[level]
		if !ok {
			return Config{}, fmt.Errorf("%s must be one of: debug, info, warn, error", EnvLevel)
		}
		cfg.Level = lvl
	}
	return cfg, nil
}

func LoadConfigFromEnv() (Config, error) {
	return ParseConfig(os.Getenv(EnvFormat), os.Getenv(EnvLevel))
}

// NewLogger tags every record with the app and the command path and redacts attributes
// whose key names a credential.
func NewLogger(cfg Config, w io.Writer, command string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, ReplaceAttr: redact}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	}
	if command = strings.TrimSpace(command); command == "" {
		command = appName
	}
	return slog.New(h).With("app", appName, "command", command)
}

// BootstrapFromEnv installs the env-configured logger as the slog default.
func BootstrapFromEnv(opts BootstrapOptions) (*slog.Logger, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, opts.Writer, opts.Command)
	slog.SetDefault(logger)
	return logger, nil
}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if slices.ContainsFunc(secretKeys, func(part string) bool { return strings.Contains(key, part) }) {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
