package storage

import (
	"context"
	"errors"

	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/pkg/storage/postgres"

	"go.uber.org/zap"
)

// SaveSnapshots validates and writes each snapshot, returning how many were stored.
// A failing record is logged and skipped; it never aborts the rest of the batch.
func SaveSnapshots(ctx context.Context, store Store, snaps []memorystore.Snapshot, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}

	saved := 0
	for _, s := range snaps {
		record, err := postgres.ToSnapshotRecord(s)
		if err != nil {
			logger.Warn("failed to convert snapshot to record", zap.String("coin", s.Symbol), zap.Error(err))
			continue
		}

		if err := store.SaveSnapshot(ctx, record); err != nil {
			if errors.Is(err, postgres.ErrDuplicateSnapshot) {
				logger.Debug("snapshot already stored", zap.String("coin", s.Symbol))
			} else {
				logger.Warn("failed to insert snapshot record", zap.String("coin", s.Symbol), zap.Error(err))
			}
			continue
		}
		saved++
	}
	return saved
}
