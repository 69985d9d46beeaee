// Package routes registers all HTTP routes for the API.
package routes

import (
	"github.com/armorlens/api/internal/config"
	infrahttp "github.com/armorlens/api/internal/infra/http"
	"github.com/armorlens/api/internal/infra/http/handler"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// multipartOverhead is the allowance for multipart framing on top of the
// CSV size limit.
const multipartOverhead = 64 << 10

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health    *handler.HealthHandler
	Dataset   *handler.DatasetHandler
	Rule      *handler.RuleHandler
	Analytics *handler.AnalyticsHandler
}

// Options holds route-scoped middleware built by the server.
type Options struct {
	// LoadLimit throttles dataset loads per client. Nil disables it.
	LoadLimit Middleware
}

// Register registers all application routes.
//
// Routes are organized across files by area:
//   - misc.go: health, readiness and metrics
//   - dataset.go: loading and clearing the rule inventory
//   - rules.go: the rule ledger and dashboard analytics
func Register(router Router, h Handlers, cfg *config.Config, opts Options) {
	registerHealthRoutes(router, h.Health)

	if h.Dataset != nil {
		registerDatasetRoutes(router, h.Dataset, cfg, opts)
	}
	if h.Rule != nil {
		registerRuleRoutes(router, h.Rule)
	}
	if h.Analytics != nil {
		registerAnalyticsRoutes(router, h.Analytics)
	}
}

// withOptional drops nil middleware.
func withOptional(mws ...Middleware) []Middleware {
	out := make([]Middleware, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}
