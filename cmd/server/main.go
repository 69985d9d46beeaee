package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/internal/infra/http"
	"github.com/armorlens/api/internal/infra/http/routes"
	"github.com/armorlens/api/internal/infra/redis"
	"github.com/armorlens/api/internal/infra/telemetry"
	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/validator"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Command line flags.
var (
	showRoutes  = flag.Bool("routes", false, "Print all registered routes and exit")
	routeFormat = flag.String("route-format", "table", "Route output format: table, json, simple")
	routeMethod = flag.String("route-method", "", "Filter routes by HTTP method")
	routePath   = flag.String("route-path", "", "Filter routes containing this path")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "version", version)

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error("failed to flush traces", "error", err)
		}
	}()

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, &cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(redisClient, "redis", log)
	} else {
		log.Warn("redis disabled: dataset snapshots and fetch limits are off")
	}

	// ==========================================================================
	// Services & Handlers
	// ==========================================================================
	services, err := NewServices(ctx, &ServiceDeps{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized")

	handlers := NewHandlers(&HandlerDeps{
		Config:      cfg,
		Log:         log,
		Validator:   validator.New(),
		RedisClient: redisClient,
		Services:    services,
		Version:     version,
	})

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers, cfg, routes.Options{LoadLimit: server.LoadLimit()})

	if *showRoutes {
		rts := http.FilterRoutes(http.CollectRoutes(server.Router()), *routeMethod, *routePath)
		if err := http.PrintRoutes(os.Stdout, rts, *routeFormat); err != nil {
			return 1
		}
		return 0
	}

	// ==========================================================================
	// Initial dataset & background jobs
	// ==========================================================================
	loadInitialDataset(ctx, cfg, services, log)

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if redisClient != nil {
		go redis.StartPoolStatsCollector(bgCtx, redisClient, 15*time.Second)
	}
	if services.Refresher != nil {
		services.Refresher.Start()
	}

	// ==========================================================================
	// Serve
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if services.Refresher != nil {
		services.Refresher.Stop()
		log.Info("dataset refresher stopped")
	}
	bgCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// loadInitialDataset restores the last snapshot, falling back to the
// configured sheet. Failures are logged; the API starts empty.
func loadInitialDataset(ctx context.Context, cfg *config.Config, services *Services, log *logger.Logger) {
	d, err := services.Dataset.Restore(ctx)
	if err == nil {
		log.Info("serving restored dataset", "rules", d.Len(), "source", d.Source().Kind)
		return
	}
	if !errors.Is(err, dataset.ErrNoSnapshot) {
		log.Error("failed to restore dataset snapshot", "error", err)
	}

	if cfg.Ingest.SheetURL == "" {
		log.Info("no dataset configured, waiting for a load request")
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Ingest.FetchTimeout)
	defer cancel()
	d, err = services.Dataset.LoadFromSheet(loadCtx, cfg.Ingest.SheetURL)
	if err != nil {
		log.Error("failed to load configured sheet", "url", logger.MaskSheetURL(cfg.Ingest.SheetURL), "error", err)
		return
	}
	log.Info("loaded configured sheet", "rules", d.Len())
}

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.IsProduction() {
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stdout,
			Sampling: logger.SamplingConfig{
				Enabled:       cfg.Log.SamplingEnabled,
				Tick:          time.Second,
				Threshold:     uint64(cfg.Log.SamplingThreshold),
				Rate:          cfg.Log.SamplingRate,
				ErrorRate:     cfg.Log.ErrorSamplingRate,
				EnableMetrics: cfg.Log.SamplingEnabled,
			},
		})
		if cfg.Log.SamplingEnabled {
			logger.RegisterMetrics(prometheus.DefaultRegisterer)
		}
	} else {
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stdout,
		})
	}
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
