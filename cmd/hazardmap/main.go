package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"

	"github.com/hazardmap/mapservice/internal/api"
	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/database"
	"github.com/hazardmap/mapservice/internal/dispatcher"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/handlers"
	"github.com/hazardmap/mapservice/internal/influx"
	"github.com/hazardmap/mapservice/internal/logging"
	"github.com/hazardmap/mapservice/internal/monitor"
	intOtel "github.com/hazardmap/mapservice/internal/otel"
	"github.com/hazardmap/mapservice/internal/session"
)

const serviceName = "hazardmap"

// app holds everything built from config before a subcommand runs.
type app struct {
	start time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	zlog        zerolog.Logger

	logFile  *os.File
	graylog  *gelf.Writer
	otel     *intOtel.Provider
	influx   *influx.Manager
	database *database.Manager

	metrics  geocode.PointWriter
	cache    *geocode.Cached
	geocoder geocode.Service

	registry atomic.Pointer[session.Registry]
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
		args = args[1:]
	}

	a := &app{start: time.Now()}

	var err error
	switch cmd {
	case "serve":
		err = a.withSetup(a.serve)
	case "geocode":
		err = a.withSetup(func(ctx context.Context) error { return a.geocode(ctx, args) })
	case "reverse":
		err = a.withSetup(func(ctx context.Context) error { return a.reverse(ctx, args) })
	case "suggest":
		err = a.withSetup(func(ctx context.Context) error { return a.suggest(ctx, args) })
	case "health":
		err = health(args)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: hazardmap [command]

commands:
  serve                 run the map service (default)
  geocode <address>     resolve an address to coordinates
  reverse <lon> <lat>   find the address nearest a point
  suggest <text>        list typeahead suggestions
  health [url]          check a running service
`)
}

func configDir() string {
	if dir := os.Getenv("HAZARDMAP_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

func (a *app) withSetup(run func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.setup(ctx)
	defer a.teardown()

	return run(ctx)
}

func (a *app) setup(ctx context.Context) {
	a.slogManager = logging.NewSlogManager()
	a.slogManager.Setup(logging.Options{Level: "info"})
	a.logger = a.slogManager.Logger()

	if err := config.Load(configDir()); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "dir", configDir())
	}
	level := config.GetString("logLevel")

	logPath := logging.LogFilePath(config.GetString("logsDir"), serviceName, a.start)
	f, err := logging.OpenLogFile(logPath)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
	} else {
		a.logFile = f
		a.logger.Info("Begin logging in logs directory", "path", logPath)
	}

	var fileSink io.Writer
	if a.logFile != nil {
		fileSink = a.logFile
	}
	zw := fileSink
	if zw == nil {
		zw = os.Stderr
	}
	a.zlog = logging.NewConsoleLogger(zw, level)

	if otelCfg := config.GetOTelConfig(); otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    fileSink,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.otel = p
			a.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	if glCfg := config.GetGraylogConfig(); glCfg.Enabled {
		w, err := logging.NewGraylogWriter(glCfg.Address, serviceName)
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "error", err, "address", glCfg.Address)
		} else {
			a.graylog = w
		}
	}

	opts := logging.Options{Level: level, File: fileSink, Context: a.logContext}
	if a.graylog != nil {
		opts.Graylog = a.graylog
	}
	if a.otel != nil {
		opts.Provider = a.otel.LoggerProvider()
	}
	a.slogManager.Setup(opts)
	a.logger = a.slogManager.Logger()
	slog.SetDefault(a.logger)

	a.setupInflux(ctx)
	a.geocoder = a.buildGeocoder()
}

// logContext decorates every record with live service state.
func (a *app) logContext() []slog.Attr {
	reg := a.registry.Load()
	if reg == nil {
		return nil
	}
	return []slog.Attr{slog.Int("sessions", reg.Count())}
}

func (a *app) setupInflux(ctx context.Context) {
	backup := filepath.Join(config.GetString("logsDir"), fmt.Sprintf("%s.%s.influx.gz", serviceName, a.start.Format("20060102_150405")))
	m := influx.NewManager(a.zlog, backup)
	if err := m.Connect(ctx, config.GetInfluxConfig()); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			a.logger.Error("Failed to set up InfluxDB", "error", err)
		}
		return
	}
	a.influx = m
	a.metrics = m
}

// buildGeocoder layers the persistent cache and metrics around the ArcGIS
// client. A database failure downgrades to the memory cache.
func (a *app) buildGeocoder() geocode.Service {
	var svc geocode.Service = geocode.NewClient(config.GetGeocoderConfig(), a.logger)

	cacheCfg := config.GetCacheConfig()
	var store geocode.Store
	switch cacheCfg.Type {
	case "sqlite", "postgres":
		db := database.NewManager(a.zlog)
		if err := db.Connect(cacheCfg); err != nil {
			a.logger.Error("Geocode cache database unavailable, using memory only", "type", cacheCfg.Type, "error", err)
			break
		}
		if err := db.Setup(); err != nil {
			a.logger.Error("Failed to migrate geocode cache", "error", err)
			_ = db.Close()
			break
		}
		a.database = db
		store = geocode.NewGormStore(db.DB)
	}

	a.cache = geocode.NewCached(svc, store, cacheCfg.Capacity, a.logger)
	svc = a.cache
	if a.metrics != nil {
		svc = geocode.NewInstrumented(svc, a.metrics, a.logger)
	}
	return svc
}

func (a *app) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Warn("Failed to close InfluxDB", "error", err)
		}
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
	if err := a.slogManager.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otel != nil {
		_ = a.otel.Shutdown(ctx)
	}
	if a.graylog != nil {
		_ = a.graylog.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) serve(ctx context.Context) error {
	layers, err := config.GetLayers()
	if err != nil {
		return fmt.Errorf("read layers: %w", err)
	}

	reg := session.NewRegistry(session.Options{
		Geocoder:        a.geocoder,
		Render:          config.GetRenderConfig(),
		Session:         config.GetSessionConfig(),
		Suggest:         config.GetSuggestConfig(),
		Viewport:        config.GetViewportConfig(),
		Layers:          layers,
		ReverseDistance: config.GetGeocoderConfig().ReverseDist,
		Metrics:         a.metrics,
		Logger:          a.logger,
	})
	a.registry.Store(reg)

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	defer d.Close()

	svc := handlers.NewService(handlers.Dependencies{
		Sessions: reg,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
	svc.Register(d)
	reg.SetEventHandler(svc.EventHandler(d))
	a.logger.Info("Registered commands", "commands", d.Commands())

	srv := api.NewServer(config.GetHTTPConfig(), reg, a.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		deps := monitor.Dependencies{
			Sessions:   reg,
			Cache:      a.cache,
			Metrics:    a.metrics,
			Interval:   monCfg.Interval,
			FlushEvery: monCfg.FlushEvery,
			Logger:     a.logger,
		}
		if monCfg.StatusFile != "" {
			deps.StatusFile = filepath.Join(config.GetString("logsDir"), monCfg.StatusFile)
		}
		if a.database != nil {
			deps.DB = a.database.DB
		}
		mon := monitor.NewService(deps)
		mon.Start()
		defer mon.Stop()
	}

	<-ctx.Done()
	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := reg.CloseAll(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	return errors.Join(errs...)
}
