package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/armorlens/api/internal/metrics"
	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/logger"
)

// Refresher re-fetches the active dataset's source.
type Refresher interface {
	Refresh(ctx context.Context) (*dataset.Dataset, error)
}

// DatasetRefresherConfig holds configuration for the dataset refresher.
type DatasetRefresherConfig struct {
	// Schedule is a five-field cron expression or a descriptor such as
	// "@hourly" or "@every 15m".
	Schedule string
	// Timeout bounds one refresh (default: 2 minutes).
	Timeout time.Duration
}

// DatasetRefresher periodically refreshes the active dataset from its source.
type DatasetRefresher struct {
	target  Refresher
	cron    *cron.Cron
	timeout time.Duration
	running atomic.Bool
	logger  *logger.Logger

	schedule string
}

// ParseSchedule validates a refresh schedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return sched, nil
}

// NewDatasetRefresher creates a new DatasetRefresher.
func NewDatasetRefresher(target Refresher, cfg DatasetRefresherConfig, log *logger.Logger) (*DatasetRefresher, error) {
	sched, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	r := &DatasetRefresher{
		target:   target,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		timeout:  timeout,
		logger:   log.With("component", "dataset_refresher"),
		schedule: cfg.Schedule,
	}
	r.cron.Schedule(sched, cron.FuncJob(r.runOnce))
	return r, nil
}

// Start starts the refresher.
func (r *DatasetRefresher) Start() {
	r.cron.Start()
	r.logger.Info("dataset refresher started", "schedule", r.schedule)
}

// Stop stops the refresher and waits for a running refresh to finish.
func (r *DatasetRefresher) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("dataset refresher stopped")
}

func (r *DatasetRefresher) runOnce() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("refresh still running, skipping")
		return
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	_ = r.refresh(ctx)
}

// refresh runs one cycle. Nothing loaded and upload-backed datasets are not
// failures.
func (r *DatasetRefresher) refresh(ctx context.Context) error {
	d, err := r.target.Refresh(ctx)
	switch {
	case errors.Is(err, dataset.ErrNoDataset), errors.Is(err, dataset.ErrNotRefreshable):
		r.logger.Debug("nothing to refresh", "reason", err)
		return nil
	case err != nil:
		metrics.RefreshErrorsTotal.Inc()
		r.logger.Error("scheduled refresh failed", "error", err)
		return err
	}

	r.logger.Info("dataset refreshed by scheduler",
		"dataset_id", d.ID().String(),
		"rules", d.Len(),
	)
	return nil
}
