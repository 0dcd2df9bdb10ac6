package job

import (
	"context"
	"fmt"
	"time"

	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotFetcher produces one round of snapshots.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) ([]memorystore.Snapshot, error)
}

// JobResult summarizes one FetchJob run.
type JobResult struct {
	RunID        uuid.UUID
	Fetched      int
	Saved        int
	Deleted      int64
	TotalRecords int64 // rows counted before pruning
	FinishedAt   time.Time
}

// FetchJob fetches a fresh round of snapshots, stores them and prunes old history.
// It has no retry of its own; a failed run is simply repeated on the next trigger.
type FetchJob struct {
	fetcher    SnapshotFetcher
	store      storage.Store
	maxRecords int
	logger     *zap.Logger
}

func NewFetchJob(fetcher SnapshotFetcher, store storage.Store, maxRecords int, logger *zap.Logger) *FetchJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchJob{
		fetcher:    fetcher,
		store:      store,
		maxRecords: maxRecords,
		logger:     logger,
	}
}

func (j *FetchJob) Run(ctx context.Context) (JobResult, error) {
	res := JobResult{RunID: uuid.New()}
	log := j.logger.With(zap.String("run_id", res.RunID.String()))
	log.Info("fetch job started")

	snaps, err := j.fetcher.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch snapshots: %w", err)
	}
	res.Fetched = len(snaps)
	res.Saved = storage.SaveSnapshots(ctx, j.store, snaps, log)
	log.Info("snapshots saved", zap.Int("saved", res.Saved), zap.Int("fetched", res.Fetched))

	total, err := j.store.CountSnapshots(ctx)
	if err != nil {
		return res, fmt.Errorf("count snapshots: %w", err)
	}
	res.TotalRecords = total

	if j.maxRecords > 0 && total > int64(j.maxRecords) {
		deleted, err := j.store.PruneSnapshots(ctx, j.maxRecords)
		if err != nil {
			return res, fmt.Errorf("prune snapshots: %w", err)
		}
		res.Deleted = deleted
		log.Info("old snapshots deleted", zap.Int64("deleted", deleted))
	} else {
		log.Debug("history size ok", zap.Int64("records", total), zap.Int("max", j.maxRecords))
	}

	res.FinishedAt = time.Now().UTC()
	return res, nil
}
