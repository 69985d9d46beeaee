package main

import (
	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/internal/infra/http/handler"
	"github.com/armorlens/api/internal/infra/http/routes"
	"github.com/armorlens/api/internal/infra/redis"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/validator"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Validator   *validator.Validator
	RedisClient *redis.Client
	Services    *Services
	Version     string
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	log := deps.Log
	v := deps.Validator
	svc := deps.Services

	healthOpts := []handler.HealthHandlerOption{
		handler.WithDatasetStatus(svc.Dataset),
		handler.WithVersion(deps.Version),
	}
	if deps.RedisClient != nil {
		healthOpts = append(healthOpts, handler.WithRedis(deps.RedisClient))
	}

	return routes.Handlers{
		Health:    handler.NewHealthHandler(healthOpts...),
		Dataset:   handler.NewDatasetHandler(svc.Dataset, v, log),
		Rule:      handler.NewRuleHandler(svc.Rule, v, log),
		Analytics: handler.NewAnalyticsHandler(svc.Rule, v, log),
	}
}
