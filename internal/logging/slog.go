package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// overridable in tests
var osStdout io.Writer = os.Stdout

// Options configures SlogManager.Setup.
type Options struct {
	// File receives the log. Nil logs to stdout.
	File   io.Writer
	Level  string
	Format string // "text" (default) or "json"
	// Provider enables the OTel bridge when set.
	Provider *sdklog.LoggerProvider
}

// SlogManager owns the process logger and its outputs.
type SlogManager struct {
	logger      *slog.Logger
	level       slog.LevelVar
	logProvider *sdklog.LoggerProvider

	// Context adds dynamic attributes (e.g. the current tick) to every record.
	// Must be set before Setup.
	Context ContextProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel accepts slog level names in any case, e.g. "debug" or "WARN".
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// Setup builds the logger. Calling it again replaces the previous outputs.
// An unknown level falls back to INFO and is reported through the new logger.
func (m *SlogManager) Setup(opts Options) {
	lvl, levelErr := ParseLevel(opts.Level)
	m.level.Set(lvl)
	m.logProvider = opts.Provider

	handlerOpts := &slog.HandlerOptions{
		Level: &m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	out := opts.File
	if out == nil {
		out = osStdout
	}

	var primary slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		primary = slog.NewJSONHandler(out, handlerOpts)
	} else {
		primary = slog.NewTextHandler(out, handlerOpts)
	}

	var otelHandler slog.Handler
	if opts.Provider != nil {
		otelHandler = otelslog.NewHandler("bombwatch", otelslog.WithLoggerProvider(opts.Provider))
	}

	var handler slog.Handler = NewMultiHandler(primary, otelHandler)
	if m.Context != nil {
		handler = NewContextHandler(handler, m.Context)
	}

	m.logger = slog.New(handler)
	if levelErr != nil {
		m.logger.Warn("Invalid log level, using INFO", "error", levelErr)
	}
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// SetLevel changes the level of the text/json output without rebuilding the logger.
func (m *SlogManager) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	m.level.Set(lvl)
	return nil
}

// Level returns the current output level.
func (m *SlogManager) Level() slog.Level {
	return m.level.Level()
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces pending OTel records out.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
