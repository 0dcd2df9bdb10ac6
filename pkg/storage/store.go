// Package storage defines the persistence sink used by the HTTP surface and the fetch job.
package storage

import (
	"context"

	"orderbookfeed/pkg/storage/postgres"
)

// Store persists snapshot records and answers recent-history queries.
// *postgres.PostgresClient and *memory.MemoryStore implement it.
type Store interface {
	SaveSnapshot(ctx context.Context, record *postgres.SnapshotRecord) error
	RecentSnapshots(ctx context.Context, limit int) ([]postgres.SnapshotRecord, error)
	RecentSnapshotsByCoin(ctx context.Context, coin string, limit int) ([]postgres.SnapshotRecord, error)
	CountSnapshots(ctx context.Context) (int64, error)
	PruneSnapshots(ctx context.Context, keep int) (int64, error)
}

var _ Store = (*postgres.PostgresClient)(nil)
