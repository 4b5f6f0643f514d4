package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/pagecascade/internal/application"
	"github.com/eugenenazirov/pagecascade/internal/config"
	"github.com/eugenenazirov/pagecascade/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	overrides, err := parseFlags(os.Args[1:])
	kingpin.FatalIfError(err, "parse flags")

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer zap.ReplaceGlobals(logger)()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// parseFlags turns command-line arguments into config overrides. Numeric
// flags default to -1 so that an explicit 0 can be told apart from "not given".
func parseFlags(args []string) (*config.CLIOverrides, error) {
	kingpinApp := kingpin.New("pagecascade", "Pagination settings service - resolves page size and limits per entity type")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPS := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurst := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	defaultPerPage := kingpinApp.Flag("default-per-page", "Global default page size").Default("-1").Int()
	maxPerPage := kingpinApp.Flag("max-per-page", "Global page size cap").Default("-1").Int()
	logLevel := kingpinApp.Flag("log-level", "Log level").Enum("debug", "info", "warn", "error")
	deprecation := kingpinApp.Flag("deprecation", "What to do when deprecated options are used").Enum("log", "silence", "raise")

	if _, err := kingpinApp.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *rateLimitRPS >= 0 {
		overrides.RateLimitRPS = rateLimitRPS
	}

	if *rateLimitBurst >= 0 {
		overrides.RateLimitBurst = rateLimitBurst
	}

	if *defaultPerPage >= 0 {
		overrides.DefaultPerPage = defaultPerPage
	}

	if *maxPerPage >= 0 {
		overrides.MaxPerPage = maxPerPage
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *deprecation != "" {
		overrides.Deprecation = deprecation
	}

	return overrides, nil
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
