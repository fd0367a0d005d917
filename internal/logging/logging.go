// Package logging builds the process slog loggers from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"github.com/jonny/chatbridge/internal/config"
)

// Factory hands out loggers sharing one format and sink. Adapters may ask
// for a different level than the global one.
type Factory struct {
	format string
	level  slog.Level
	writer io.Writer
}

func NewFactory(cfg config.LoggingConfig) (*Factory, error) {
	var w io.Writer
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}
	return newFactory(cfg, w)
}

func newFactory(cfg config.LoggingConfig, w io.Writer) (*Factory, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return &Factory{format: format, level: level, writer: w}, nil
}

// Logger returns the process-wide logger.
func (f *Factory) Logger() *slog.Logger {
	return f.build(f.level)
}

// ForAdapter returns a logger at levelOverride, or at the global level when
// the override is empty.
func (f *Factory) ForAdapter(levelOverride string) (*slog.Logger, error) {
	if strings.TrimSpace(levelOverride) == "" {
		return f.Logger(), nil
	}
	level, err := ParseLevel(levelOverride)
	if err != nil {
		return nil, err
	}
	return f.build(level), nil
}

func (f *Factory) build(level slog.Level) *slog.Logger {
	if f.format == "text" {
		pretty := charmLog.NewWithOptions(f.writer, charmLog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			Formatter:       charmLog.TextFormatter,
		})
		return slog.New(pretty)
	}
	return slog.New(slog.NewJSONHandler(f.writer, &slog.HandlerOptions{Level: level}))
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

// ParseLevel accepts debug, info, warn (or warning) and error. Empty means info.
func ParseLevel(input string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", input)
	}
}
