package dataset

import (
	"context"
	"time"
)

// SnapshotRepository persists the most recent dataset so it survives a
// restart. There is at most one snapshot.
type SnapshotRepository interface {
	// Save stores the dataset, replacing any previous snapshot. The snapshot
	// expires after ttl.
	Save(ctx context.Context, d *Dataset, ttl time.Duration) error

	// Load returns the stored dataset or ErrNoSnapshot.
	Load(ctx context.Context) (*Dataset, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context) error
}
