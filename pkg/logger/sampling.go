package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SamplingConfig configures log sampling. Repeats of the same level and
// message beyond Threshold within one Tick are kept at Rate (ErrorRate for
// warn and above).
type SamplingConfig struct {
	Enabled   bool
	Tick      time.Duration
	Threshold uint64
	Rate      float64
	ErrorRate float64

	// MaxKeys bounds the number of distinct messages tracked per tick.
	MaxKeys int

	// NeverSample lists message prefixes that are always logged.
	NeverSample []string

	// EnableMetrics exports processed/dropped counters.
	EnableMetrics bool
}

const (
	DefaultSamplingTick      = time.Second
	DefaultSamplingThreshold = 100
	DefaultSamplingRate      = 0.1
	DefaultSamplingMaxKeys   = 10000
)

// samplingState is shared by a handler and every handler derived from it
// through WithAttrs or WithGroup, so attribute-scoped loggers count toward
// the same budget.
type samplingState struct {
	mu        sync.Mutex
	counts    map[string]uint64
	lastReset atomic.Int64
}

type samplingHandler struct {
	handler slog.Handler
	config  SamplingConfig
	state   *samplingState
}

// NewSamplingHandler wraps h with sampling. A disabled config returns h.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSamplingThreshold
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultSamplingMaxKeys
	}

	st := &samplingState{counts: make(map[string]uint64)}
	st.lastReset.Store(time.Now().UnixNano())

	return &samplingHandler{handler: h, config: cfg, state: st}
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.config.EnableMetrics {
		logsProcessedTotal.WithLabelValues(levelLabel(r.Level)).Inc()
	}

	for _, prefix := range h.config.NeverSample {
		if strings.HasPrefix(r.Message, prefix) {
			return h.handler.Handle(ctx, r)
		}
	}

	count, tracked := h.observe(r.Level.String() + ":" + r.Message)
	if !tracked || count <= h.config.Threshold {
		return h.handler.Handle(ctx, r)
	}

	rate := h.config.Rate
	if r.Level >= slog.LevelWarn {
		rate = h.config.ErrorRate
	}
	if keep(count, rate) {
		return h.handler.Handle(ctx, r)
	}

	if h.config.EnableMetrics {
		logsDroppedTotal.WithLabelValues(levelLabel(r.Level)).Inc()
	}
	return nil
}

// observe bumps the counter for key. It reports false when the key table is
// full, in which case the record is logged unsampled.
func (h *samplingHandler) observe(key string) (uint64, bool) {
	st := h.state
	now := time.Now().UnixNano()

	st.mu.Lock()
	defer st.mu.Unlock()

	if now-st.lastReset.Load() >= h.config.Tick.Nanoseconds() {
		clear(st.counts)
		st.lastReset.Store(now)
	}

	n, ok := st.counts[key]
	if !ok && len(st.counts) >= h.config.MaxKeys {
		return 0, false
	}
	n++
	st.counts[key] = n
	return n, true
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{handler: h.handler.WithAttrs(attrs), config: h.config, state: h.state}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{handler: h.handler.WithGroup(name), config: h.config, state: h.state}
}

// keep samples deterministically: every 1/rate-th record passes.
func keep(count uint64, rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return count%uint64(1.0/rate) == 0
}
