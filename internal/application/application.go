package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/pagecascade/internal/api"
	"github.com/eugenenazirov/pagecascade/internal/config"
	"github.com/eugenenazirov/pagecascade/internal/paging"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	paging   *paging.Config
	registry *paging.Registry
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New configures the process-wide pagination settings from cfg and wires the
// HTTP server around them.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	paging.Configure(cfg.Pagination.Apply)
	return build(cfg, paging.Global(), logger)
}

// NewWithPaging wires the application around base instead of the
// process-wide settings. base is configured from cfg first.
func NewWithPaging(cfg config.Config, base *paging.Config, logger *zap.Logger) (*App, error) {
	if base == nil {
		return nil, errors.New("pagination config is required")
	}
	base.Configure(cfg.Pagination.Apply)
	return build(cfg, base, logger)
}

func build(cfg config.Config, base *paging.Config, logger *zap.Logger) (*App, error) {
	registry := paging.NewRegistry(base,
		paging.WithLogger(logger.Named("paging")),
		paging.WithDeprecationBehavior(cfg.DeprecationBehavior()),
	)
	if err := cfg.ApplyEntities(registry); err != nil {
		return nil, fmt.Errorf("failed to apply entity overrides: %w", err)
	}

	logger.Info("pagination configured",
		zap.Int("default_per_page", base.DefaultPerPage),
		zap.Any("max_per_page", base.MaxPerPage),
		zap.Any("max_pages", base.MaxPages),
		zap.String("param_name", base.PageParameterName()),
		zap.Bool("param_name_deferred", base.ParamName.IsDeferred()),
		zap.Strings("entities", registry.Names()),
		zap.Stringer("deprecation", cfg.DeprecationBehavior()),
	)

	handler := api.NewHandler(registry)
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		paging:   base,
		registry: registry,
		handler:  handler,
		router:   router,
		logger:   logger,
		server:   NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Registry returns the entity override registry served by the application.
func (a *App) Registry() *paging.Registry {
	return a.registry
}
