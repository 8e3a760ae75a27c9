package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger tagged with one component. base is the same
// logger without the tag, so retagging never stacks component fields.
type Logger struct {
	*slog.Logger
	base *slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig logs app records at info to stdout.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}

	base := slog.New(handler)
	return newTagged(base, config.Component)
}

func newTagged(base *slog.Logger, component string) *Logger {
	logger := base
	if component != "" {
		logger = base.With(FieldComponent, component)
	}
	return &Logger{Logger: logger, base: base}
}

// NewText builds an app logger writing text records to w at the named level.
// An unknown level yields an info logger and the parse error.
func NewText(w io.Writer, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	return New(Config{
		Level:     lvl,
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}),
	}), err
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		base:   l.base.With(args...),
	}
}

// WithComponent returns a logger for component. The parent's component
// attribute is dropped rather than repeated.
func (l *Logger) WithComponent(component string) *Logger {
	return newTagged(l.base, component)
}

// SetDefault installs the untagged form of logger as the slog default, so
// ForComponent can tag it without a second component field.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.base)
}

// ForComponent tags the current default logger with component. Packages that
// are not handed a logger use it at the call site, so a later SetDefault is
// honoured.
func ForComponent(component string) *slog.Logger {
	return slog.Default().With(FieldComponent, component)
}
