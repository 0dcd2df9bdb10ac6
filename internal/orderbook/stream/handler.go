package stream

import (
	"orderbookfeed/internal/orderbook/memorystore"

	"go.uber.org/zap"
)

// SnapshotWriter is the write side of the snapshot cache.
type SnapshotWriter interface {
	Put(memorystore.Snapshot)
}

// Publisher fans decoded snapshots out to subscribers.
type Publisher interface {
	Publish(memorystore.Snapshot)
}

// MakeMessageHandler returns a function that handles incoming feed messages
// by decoding them and storing the snapshot in memory.
// Malformed frames are logged and dropped; they never stop the read loop.
// pub may be nil.
func MakeMessageHandler(logger *zap.Logger, store SnapshotWriter, pub Publisher) func(msg []byte) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(msg []byte) {
		snap, err := DecodeFrame(msg)
		if err != nil {
			logger.Warn("failed to decode frame", zap.Int("bytes", len(msg)), zap.Error(err))
			return
		}

		store.Put(snap)

		if pub != nil {
			pub.Publish(snap)
		}
	}
}
