// Command globeview manages the landmark store and runs a scripted globe
// session against the built-in engine simulator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/OCAP2/globeview/internal/config"
	"github.com/OCAP2/globeview/internal/globe"
	"github.com/OCAP2/globeview/internal/influx"
	"github.com/OCAP2/globeview/internal/logging"
	intOtel "github.com/OCAP2/globeview/internal/otel"
	"github.com/OCAP2/globeview/internal/storage"
	"github.com/rs/zerolog"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger is handed to the storage and influx managers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime = time.Now()

	// controller is published once the demo session is built so log records
	// can carry its interaction state.
	controller atomic.Pointer[globe.Controller]

	logFile *os.File
)

func usage() {
	fmt.Println("Usage: globeview <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  import <lon,lat,elev,id,name>...   add or update landmarks")
	fmt.Println("  list                               print every landmark")
	fmt.Println("  demo                               run a scripted session on the simulator")
	fmt.Println()
	fmt.Println("The configuration is read from $GLOBEVIEW_CONFIG_DIR (default: current directory).")
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := setup(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "import":
		err = importMarkers(ctx, args[1:])
	case "list":
		err = listMarkers(ctx, os.Stdout)
	case "demo":
		err = runDemo(ctx)
	default:
		usage()
		err = fmt.Errorf("unknown command %q", args[0])
	}

	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func configDir() string {
	if dir := os.Getenv("GLOBEVIEW_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

// setup loads the configuration and builds the logging stack.
func setup() error {
	// defaults stay registered when the file is missing
	cfgErr := config.Load(configDir())

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	path := logging.LogFilePath(logsDir, logging.ServiceName, SessionStartTime)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logFile = f

	otelCfg := config.GetOTelConfig()
	otelCfg.LogWriter = logFile
	otelCfg.Version = Version
	otelCfg.SessionStart = SessionStartTime
	otelCfg.Storage = config.GetStorageConfig().Type
	OTelProvider, err = intOtel.New(otelCfg)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}

	opts := logging.Options{
		Level:    config.GetString("logLevel"),
		File:     logFile,
		Provider: OTelProvider.LoggerProvider(),
		Context: func() []slog.Attr {
			if c := controller.Load(); c != nil {
				return c.ContextAttrs()
			}
			return nil
		},
	}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(config.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "graylog disabled:", err)
		} else {
			opts.Graylog = gw
		}
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	ZLogger = logging.NewZerolog(logFile, config.GetString("logLevel"))

	if cfgErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	}
	Logger.Info("globeview starting", "version", Version, "buildDate", BuildDate,
		"session", OTelProvider.SessionID())
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "closing logs:", err)
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutting down OpenTelemetry:", err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
}

// openStorage creates and initializes the configured landmark store.
func openStorage() (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(cfg, ZLogger)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.Type, err)
	}
	Logger.Info("Storage backend initialized", "type", cfg.Type)
	return backend, nil
}

// openDiagnostics connects the influx sink. It returns nil when diagnostics
// are disabled.
func openDiagnostics(ctx context.Context) (*influx.Manager, error) {
	m := influx.NewManager(config.GetInfluxConfig(), ZLogger, nil)
	err := m.Connect(ctx)
	if errors.Is(err, influx.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
