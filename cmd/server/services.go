package main

import (
	"context"
	"fmt"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/internal/infra/fetchers"
	"github.com/armorlens/api/internal/infra/redis"
	"github.com/armorlens/api/pkg/logger"
)

// fetchLimiterPrefix namespaces per-source fetch counters in Redis.
const fetchLimiterPrefix = "armorlens:fetch"

// Services holds all service instances.
type Services struct {
	Dataset *app.DatasetService
	Rule    *app.RuleService

	// Refresher is nil when no refresh schedule is configured.
	Refresher *app.DatasetRefresher
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config *config.Config
	Log    *logger.Logger

	// RedisClient is nil when Redis is disabled.
	RedisClient *redis.Client
}

// NewServices creates all services.
func NewServices(ctx context.Context, deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log

	sheets := fetchers.NewSheetFetcher(fetchers.SheetConfig{
		Timeout:           cfg.Ingest.FetchTimeout,
		MaxBytes:          cfg.Ingest.MaxCSVBytes,
		AllowPrivateHosts: cfg.Ingest.AllowPrivateHosts,
	}, log)

	var opts []app.DatasetServiceOption

	objects, err := fetchers.NewObjectFetcher(ctx, fetchers.ObjectConfig{
		Region:    cfg.Ingest.S3Region,
		Endpoint:  cfg.Ingest.S3Endpoint,
		AccessKey: cfg.Ingest.S3AccessKey,
		SecretKey: cfg.Ingest.S3SecretKey,
		MaxBytes:  cfg.Ingest.MaxCSVBytes,
	})
	if err != nil {
		log.Warn("object storage disabled", "error", err)
	} else {
		opts = append(opts, app.WithObjectFetcher(objects))
	}

	if deps.RedisClient != nil {
		snapshots, err := redis.NewSnapshotRepository(deps.RedisClient, cfg.Ingest.SnapshotTTL)
		if err != nil {
			return nil, fmt.Errorf("snapshot repository: %w", err)
		}
		limiter, err := redis.NewRateLimiter(deps.RedisClient, fetchLimiterPrefix,
			cfg.Ingest.FetchLimit, cfg.Ingest.FetchWindow, log)
		if err != nil {
			return nil, fmt.Errorf("fetch limiter: %w", err)
		}
		opts = append(opts, app.WithSnapshots(snapshots), app.WithFetchLimiter(limiter))
	}

	datasets := app.NewDatasetService(sheets, app.DatasetConfig{
		SnapshotTTL:  cfg.Ingest.SnapshotTTL,
		MaxCSVBytes:  cfg.Ingest.MaxCSVBytes,
		FetchTimeout: cfg.Ingest.FetchTimeout,
	}, log, opts...)

	s := &Services{
		Dataset: datasets,
		Rule: app.NewRuleService(datasets, app.RuleServiceConfig{
			PageSize:    cfg.Engine.PageSize,
			TopProjects: cfg.Engine.TopProjects,
		}, log),
	}

	if cfg.Ingest.RefreshSchedule != "" {
		s.Refresher, err = app.NewDatasetRefresher(datasets, app.DatasetRefresherConfig{
			Schedule: cfg.Ingest.RefreshSchedule,
			Timeout:  cfg.Ingest.FetchTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("dataset refresher: %w", err)
		}
	}

	return s, nil
}
