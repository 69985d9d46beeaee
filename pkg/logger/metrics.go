package logger

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	logsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "armorlens",
			Subsystem: "logger",
			Name:      "logs_dropped_total",
			Help:      "Total number of logs dropped by sampling",
		},
		[]string{"level"},
	)

	logsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "armorlens",
			Subsystem: "logger",
			Name:      "logs_processed_total",
			Help:      "Total number of logs seen by the sampler",
		},
		[]string{"level"},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers the sampler counters with registry, or the
// default registerer when nil. Safe to call more than once.
func RegisterMetrics(registry prometheus.Registerer) {
	registerOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		_ = registry.Register(logsDroppedTotal)
		_ = registry.Register(logsProcessedTotal)
	})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
