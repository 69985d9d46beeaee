package routes

import (
	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/internal/infra/http/handler"
	"github.com/armorlens/api/internal/infra/http/middleware"
)

// registerDatasetRoutes registers rule inventory endpoints. Loads are
// throttled per client; uploads get the CSV size limit instead of the
// JSON one and may be gzip or zstd encoded.
func registerDatasetRoutes(router Router, h *handler.DatasetHandler, cfg *config.Config, opts Options) {
	jsonBody := middleware.BodyLimit(cfg.Server.MaxBodySize)
	csvBody := middleware.BodyLimit(cfg.Ingest.MaxCSVBytes + multipartOverhead)
	decompress := middleware.Decompress(middleware.UploadDecompressConfig(cfg.Ingest.MaxCSVBytes + multipartOverhead))

	router.Group("/api/v1/dataset", func(r Router) {
		r.GET("/", h.Get)
		r.DELETE("/", h.Clear)

		r.POST("/sheet", h.LoadSheet, withOptional(opts.LoadLimit, jsonBody)...)
		r.POST("/object", h.LoadObject, withOptional(opts.LoadLimit, jsonBody)...)
		r.POST("/upload", h.Upload, withOptional(opts.LoadLimit, decompress, csvBody)...)
		r.POST("/refresh", h.Refresh, withOptional(opts.LoadLimit)...)
	})
}
