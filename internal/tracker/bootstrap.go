package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/bombwatch/extension/internal/cache"
	"github.com/bombwatch/extension/internal/config"
	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/logging"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/memory/capture"
	intOtel "github.com/bombwatch/extension/internal/otel"
	"github.com/bombwatch/extension/internal/registry"
	"github.com/bombwatch/extension/internal/schema"
	"github.com/bombwatch/extension/internal/state"
)

const logName = "bombwatch"

// Version is reported as the OTel service version. Set at build time via ldflags.
var Version = "dev"

// Source is the process view a tracker reads from.
type Source struct {
	Memory   memory.Reader
	Entities entity.Directory
	// Globals is the address of the globals struct. Ignored when Clock is set.
	Globals uint64
	Clock   state.Clock
	// Layout overrides the configured layout, e.g. for a replayed capture.
	Layout *schema.Layout
}

// FromCapture builds a Source that replays c at its recorded game time.
func FromCapture(c *capture.Capture) (Source, error) {
	layout, err := c.SchemaLayout()
	if err != nil {
		return Source{}, err
	}
	return Source{
		Memory:   c.Image(),
		Entities: c.Table(),
		Clock:    state.FixedClock(c.GameTime),
		Layout:   &layout,
	}, nil
}

// Runtime is a bootstrapped tracker with its logging and telemetry.
type Runtime struct {
	Service   *Service
	Classes   *cache.ClassNameCache
	Logs      *logging.SlogManager
	Telemetry *intOtel.Provider
	Config    config.TrackerConfig

	source     Source
	layout     schema.Layout
	closers    []io.Closer
	captureCfg config.CaptureConfig

	storeMu sync.Mutex
	store   *capture.Store
}

// Bootstrap loads configuration from configDir and wires a tracker over src.
// A missing config file falls back to defaults.
func Bootstrap(configDir string, src Source) (*Runtime, error) {
	if src.Memory == nil || src.Entities == nil {
		return nil, errors.New("source needs memory and entities")
	}

	err := config.Load(configDir)
	var notFound viper.ConfigFileNotFoundError
	missingConfig := errors.As(err, &notFound)
	if err != nil && !missingConfig {
		return nil, err
	}

	rt := &Runtime{
		Config:     config.GetTrackerConfig(),
		captureCfg: config.GetCaptureConfig(),
		source:     src,
	}
	start := time.Now()
	logsDir := config.GetString("logsDir")

	var logFile io.Writer
	if logsDir != "" {
		f, err := logging.OpenLogFile(logsDir, logName, start)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, f)
		logFile = f
	}

	otelCfg := config.GetOTelConfig()
	providerCfg := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		MetricInterval: otelCfg.MetricInterval,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	}
	if otelCfg.Enabled && logsDir != "" {
		f, err := logging.OpenLogFile(logsDir, logName+"-otel", start)
		if err != nil {
			rt.closeFiles()
			return nil, err
		}
		rt.closers = append(rt.closers, f)
		providerCfg.LogWriter = f
	}
	rt.Telemetry, err = intOtel.New(providerCfg)
	if err != nil {
		rt.closeFiles()
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	// the service is created after the logger; the provider reads it lazily
	var svc *Service
	rt.Logs = logging.NewSlogManager()
	rt.Logs.Context = func() []slog.Attr {
		if svc == nil {
			return nil
		}
		return svc.LogContext()
	}
	rt.Logs.Setup(logging.Options{
		File:     logFile,
		Level:    config.GetString("logLevel"),
		Format:   config.GetString("logFormat"),
		Provider: rt.Telemetry.LoggerProvider(),
	})
	logger := rt.Logs.Logger()
	if missingConfig {
		logger.Warn("Config file not found, using defaults", "dir", configDir)
	}

	layout, err := config.GetLayout()
	if err != nil {
		rt.Close(context.Background())
		return nil, err
	}
	if src.Layout != nil {
		layout = *src.Layout
	}
	rt.layout = layout

	clock := src.Clock
	if clock == nil {
		clock = state.GlobalsClock{Memory: src.Memory, Globals: src.Globals, Offset: layout.Globals.CurrentTime}
	}

	rt.Classes = cache.NewClassNameCache(src.Memory, layout.ClassInfo)

	reg, err := registry.New(logger)
	if err != nil {
		rt.Close(context.Background())
		return nil, err
	}

	svc, err = NewService(Dependencies{
		State: state.Deps{
			Memory:   src.Memory,
			Entities: src.Entities,
			Classes:  rt.Classes,
			Clock:    clock,
			Layout:   layout,
		},
		Logger:   logger,
		Registry: reg,
		CacheTTL: rt.Config.CacheTTL,
	})
	if err != nil {
		rt.Close(context.Background())
		return nil, err
	}
	rt.Service = svc

	logger.Info("Tracker ready",
		"poll_interval", rt.Config.PollInterval,
		"cache_ttl", rt.Config.CacheTTL,
		"otel", rt.Telemetry.Enabled())
	return rt, nil
}

// Start begins polling at the configured interval.
func (r *Runtime) Start() error {
	return r.Service.Start(r.Config.PollInterval)
}

// Store opens the configured capture store on first use.
func (r *Runtime) Store() (*capture.Store, error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.store != nil {
		return r.store, nil
	}

	store, err := capture.Open(capture.Config(r.captureCfg), r.Logs.Logger())
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	r.store = store
	return store, nil
}

// Capture records the current source into the capture store. The source
// memory must be a *memory.Image.
func (r *Runtime) Capture(label string) (*capture.Capture, error) {
	img, ok := r.source.Memory.(*memory.Image)
	if !ok {
		return nil, fmt.Errorf("cannot capture from %T", r.source.Memory)
	}
	now, err := r.Service.deps.State.Clock.CurrentTime()
	if err != nil {
		return nil, err
	}
	c, err := capture.New(label, img, r.source.Entities, now, r.layout)
	if err != nil {
		return nil, err
	}
	store, err := r.Store()
	if err != nil {
		return nil, err
	}
	if err := store.Save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Close stops polling, closes the capture store, flushes telemetry and closes log files.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.Service != nil {
		r.Service.Stop()
	}
	r.storeMu.Lock()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, err)
		}
		r.store = nil
	}
	r.storeMu.Unlock()
	if r.Logs != nil {
		if err := r.Logs.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Telemetry != nil {
		if err := r.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.closeFiles(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeFiles() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
