package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/armorlens/api/internal/infra/fetchers"
	"github.com/armorlens/api/internal/infra/redis"
	"github.com/armorlens/api/internal/metrics"
	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/domain/shared"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/parsers/cloudarmor"
)

// ErrFetchThrottled is returned when a source was fetched too often recently.
var ErrFetchThrottled = errors.New("source fetched too often, retry later")

// FetchLimiter caps how often one upstream source is fetched.
type FetchLimiter interface {
	Allow(ctx context.Context, key string) (*redis.RateLimitResult, error)
}

// DatasetConfig holds DatasetService settings.
type DatasetConfig struct {
	// SnapshotTTL is how long a persisted snapshot survives.
	SnapshotTTL time.Duration
	// MaxCSVBytes caps uploaded payloads.
	MaxCSVBytes int64
	// FetchTimeout bounds a shared upstream fetch. Default: 30s.
	FetchTimeout time.Duration
}

// DatasetService owns the active rule inventory. Loads replace the whole
// collection; readers always see one complete, immutable dataset.
type DatasetService struct {
	current atomic.Pointer[dataset.Dataset]
	loadMu  sync.Mutex // serializes loads so snapshots land in load order
	fetches singleflight.Group

	sheets    fetchers.Fetcher
	objects   fetchers.Fetcher           // nil when object storage is not configured
	snapshots dataset.SnapshotRepository // nil without Redis
	limiter   FetchLimiter               // nil without Redis

	cfg    DatasetConfig
	logger *logger.Logger
}

// DatasetServiceOption configures optional collaborators.
type DatasetServiceOption func(*DatasetService)

// WithObjectFetcher enables s3:// sources.
func WithObjectFetcher(f fetchers.Fetcher) DatasetServiceOption {
	return func(s *DatasetService) { s.objects = f }
}

// WithSnapshots enables snapshot persistence.
func WithSnapshots(repo dataset.SnapshotRepository) DatasetServiceOption {
	return func(s *DatasetService) { s.snapshots = repo }
}

// WithFetchLimiter enables per-source fetch limiting.
func WithFetchLimiter(l FetchLimiter) DatasetServiceOption {
	return func(s *DatasetService) { s.limiter = l }
}

// NewDatasetService creates a new DatasetService.
func NewDatasetService(sheets fetchers.Fetcher, cfg DatasetConfig, log *logger.Logger, opts ...DatasetServiceOption) *DatasetService {
	if cfg.MaxCSVBytes <= 0 {
		cfg.MaxCSVBytes = 32 << 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	s := &DatasetService{
		sheets: sheets,
		cfg:    cfg,
		logger: log.With("service", "dataset"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the active dataset or dataset.ErrNoDataset.
func (s *DatasetService) Current() (*dataset.Dataset, error) {
	d := s.current.Load()
	if d == nil {
		return nil, dataset.ErrNoDataset
	}
	return d, nil
}

// Rules returns the active collection, or an empty one when nothing is
// loaded. The slice is shared and must not be modified.
func (s *DatasetService) Rules() []*rule.Rule {
	if d := s.current.Load(); d != nil {
		return d.Rules()
	}
	return []*rule.Rule{}
}

// LoadFromSheet fetches a published Google Sheet and makes it active.
func (s *DatasetService) LoadFromSheet(ctx context.Context, sheetURL string) (*dataset.Dataset, error) {
	src, err := dataset.NewSource(dataset.SourceKindSheet, sheetURL)
	if err != nil {
		return nil, err
	}
	return s.loadRemote(ctx, src, s.sheets)
}

// LoadFromObject downloads an s3://bucket/key CSV and makes it active.
func (s *DatasetService) LoadFromObject(ctx context.Context, objectURL string) (*dataset.Dataset, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", shared.ErrUnavailable)
	}
	src, err := dataset.NewSource(dataset.SourceKindObject, objectURL)
	if err != nil {
		return nil, err
	}
	return s.loadRemote(ctx, src, s.objects)
}

// LoadFromUpload parses a CSV stream and makes it active. name is recorded
// as the source location.
func (s *DatasetService) LoadFromUpload(ctx context.Context, name string, r io.Reader) (d *dataset.Dataset, err error) {
	ctx, span := startSpan(ctx, "DatasetService.LoadFromUpload")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() { metrics.RecordIngest(dataset.SourceKindUpload.String(), time.Since(start).Seconds(), err) }()

	src, err := dataset.NewSource(dataset.SourceKindUpload, name)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxCSVBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxCSVBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", fetchers.ErrTooLarge, s.cfg.MaxCSVBytes)
	}

	d, err = s.build(src, data)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rules", d.Len()))
	s.replace(ctx, d)
	return d, nil
}

// Refresh re-fetches the active dataset's source.
func (s *DatasetService) Refresh(ctx context.Context) (*dataset.Dataset, error) {
	d, err := s.Current()
	if err != nil {
		return nil, err
	}
	src := d.Source()
	if !src.Kind.Refreshable() {
		return nil, dataset.ErrNotRefreshable
	}
	if src.Kind == dataset.SourceKindObject {
		return s.LoadFromObject(ctx, src.Location)
	}
	return s.LoadFromSheet(ctx, src.Location)
}

// Restore activates the persisted snapshot, if any.
func (s *DatasetService) Restore(ctx context.Context) (d *dataset.Dataset, err error) {
	ctx, span := startSpan(ctx, "DatasetService.Restore")
	defer func() { endSpan(span, err) }()

	if s.snapshots == nil {
		return nil, dataset.ErrNoSnapshot
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// A load that finished first is newer than any snapshot.
	if cur := s.current.Load(); cur != nil {
		return cur, nil
	}
	d, err = s.snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.activate(d)
	metrics.IngestTotal.WithLabelValues("snapshot", metrics.ResultSuccess).Inc()
	s.logger.Info("dataset restored from snapshot",
		"dataset_id", d.ID().String(),
		"source", d.Source().Kind,
		"rules", d.Len(),
		"age", time.Since(d.LoadedAt()).Round(time.Second),
	)
	return d, nil
}

// Clear drops the active dataset and its snapshot.
func (s *DatasetService) Clear(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.current.Store(nil)
	metrics.DatasetRules.Set(0)
	metrics.DatasetLoadedTimestamp.Set(0)

	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
	}
	s.logger.Info("dataset cleared")
	return nil
}

func (s *DatasetService) loadRemote(ctx context.Context, src dataset.Source, f fetchers.Fetcher) (d *dataset.Dataset, err error) {
	ctx, span := startSpan(ctx, "DatasetService.Load",
		attribute.String("source.kind", src.Kind.String()),
	)
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() { metrics.RecordIngest(src.Kind.String(), time.Since(start).Seconds(), err) }()

	// Concurrent loads of one source share a single upstream fetch. The
	// fetch is detached from the caller that started it, so a cancelled
	// request does not fail the others waiting on it.
	ch := s.fetches.DoChan(src.Kind.String()+"|"+src.Location, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		return s.fetchAndReplace(fetchCtx, src, f)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		d = res.Val.(*dataset.Dataset)
		span.SetAttributes(attribute.Int("rules", d.Len()), attribute.Bool("shared", res.Shared))
		return d, nil
	}
}

func (s *DatasetService) fetchAndReplace(ctx context.Context, src dataset.Source, f fetchers.Fetcher) (*dataset.Dataset, error) {
	if err := s.checkLimit(ctx, src.Location); err != nil {
		return nil, err
	}

	res, err := f.Fetch(ctx, src.Location)
	if err != nil {
		s.logger.Warn("dataset fetch failed", "source", src.Kind, "url", src.Location, "error", err)
		return nil, err
	}

	d, err := s.build(src, res.Body)
	if err != nil {
		return nil, err
	}
	s.replace(ctx, d)
	return d, nil
}

func (s *DatasetService) checkLimit(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.Allow(ctx, key)
	if err != nil {
		// Limiter outages fail open.
		s.logger.Error("fetch limiter check failed", "error", err)
		return nil
	}
	if !res.Allowed {
		return fmt.Errorf("%w (retry after %s)", ErrFetchThrottled, res.RetryAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func (s *DatasetService) build(src dataset.Source, data []byte) (*dataset.Dataset, error) {
	rules, err := cloudarmor.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return dataset.New(src, rules)
}

// replace activates d and persists it. Snapshot failures are logged, not
// returned: the load itself succeeded.
func (s *DatasetService) replace(ctx context.Context, d *dataset.Dataset) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.activate(d)
	ctx = context.WithValue(ctx, logger.ContextKeyDatasetID, d.ID().String())
	log := s.logger.WithContext(ctx)
	log.Info("dataset replaced", "source", d.Source().Kind, "rules", d.Len())

	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, d, s.cfg.SnapshotTTL); err != nil {
		log.WithError(err).Error("failed to save dataset snapshot")
	}
}

func (s *DatasetService) activate(d *dataset.Dataset) {
	s.current.Store(d)
	metrics.DatasetRules.Set(float64(d.Len()))
	metrics.DatasetLoadedTimestamp.Set(float64(d.LoadedAt().Unix()))
}
