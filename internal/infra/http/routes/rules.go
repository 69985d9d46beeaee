package routes

import (
	"github.com/armorlens/api/internal/infra/http/handler"
)

// registerRuleRoutes registers the rule ledger endpoints.
func registerRuleRoutes(router Router, h *handler.RuleHandler) {
	router.Group("/api/v1/rules", func(r Router) {
		r.GET("/", h.List)
		r.GET("/export", h.Export)
		r.GET("/query", h.ParseQuery)
	})
}

// registerAnalyticsRoutes registers dashboard aggregate endpoints.
func registerAnalyticsRoutes(router Router, h *handler.AnalyticsHandler) {
	router.Group("/api/v1/analytics", func(r Router) {
		r.GET("/summary", h.Summary)
		r.GET("/top-projects", h.TopProjects)
		r.GET("/projects", h.Projects)
		r.GET("/projects/{name}", h.Project)
		r.GET("/facets", h.Facets)
	})
}
