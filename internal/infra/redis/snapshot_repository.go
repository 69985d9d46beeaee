package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/domain/shared"
)

const (
	snapshotPrefix = "armorlens:dataset"
	snapshotKey    = "current"

	// snapshotVersion is bumped whenever snapshotRecord changes shape.
	// Records with another version are treated as missing.
	snapshotVersion = 1
)

type snapshotRecord struct {
	Version  int            `json:"version"`
	ID       string         `json:"id"`
	Source   dataset.Source `json:"source"`
	LoadedAt time.Time      `json:"loadedAt"`
	Rules    []*rule.Rule   `json:"rules"`
}

// SnapshotRepository implements dataset.SnapshotRepository on a Redis key.
type SnapshotRepository struct {
	cache *Cache[snapshotRecord]
}

var _ dataset.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates the repository. defaultTTL applies when Save
// is called with a non-positive ttl.
func NewSnapshotRepository(client *Client, defaultTTL time.Duration) (*SnapshotRepository, error) {
	cache, err := NewCache[snapshotRecord](client, snapshotPrefix, defaultTTL)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	return &SnapshotRepository{cache: cache}, nil
}

// Save stores d as the current snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, d *dataset.Dataset, ttl time.Duration) error {
	if d == nil {
		return errors.New("dataset is required")
	}
	if ttl <= 0 {
		ttl = r.cache.TTL()
	}

	rec := snapshotRecord{
		Version:  snapshotVersion,
		ID:       d.ID().String(),
		Source:   d.Source(),
		LoadedAt: d.LoadedAt(),
		Rules:    d.Rules(),
	}
	if err := r.cache.SetWithTTL(ctx, snapshotKey, rec, ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot or dataset.ErrNoSnapshot.
func (r *SnapshotRepository) Load(ctx context.Context) (*dataset.Dataset, error) {
	rec, err := r.cache.Get(ctx, snapshotKey)
	if errors.Is(err, ErrCacheMiss) {
		return nil, dataset.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load snapshot: %w", shared.ErrUnavailable, err)
	}
	if rec.Version != snapshotVersion {
		return nil, dataset.ErrNoSnapshot
	}

	id, err := shared.IDFromString(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot id: %w", err)
	}

	rules := make([]*rule.Rule, 0, len(rec.Rules))
	for _, rl := range rec.Rules {
		if rl != nil && rl.IsValid() {
			rules = append(rules, rl)
		}
	}

	return dataset.Reconstitute(id, rec.Source, rules, rec.LoadedAt), nil
}

// Delete removes the snapshot.
func (r *SnapshotRepository) Delete(ctx context.Context) error {
	return r.cache.Delete(ctx, snapshotKey)
}
