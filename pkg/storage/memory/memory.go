// Package memory is an in-process snapshot store with the same semantics as the
// Postgres sink. It backs tests and runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"orderbookfeed/pkg/storage"
	"orderbookfeed/pkg/storage/postgres"

	"github.com/google/uuid"
)

var _ storage.Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu      sync.Mutex
	records []postgres.SnapshotRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make([]postgres.SnapshotRecord, 0),
	}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, r *postgres.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records {
		if existing.Exchange == r.Exchange && existing.Coin == r.Coin && existing.Timestamp.Equal(r.Timestamp) {
			return fmt.Errorf("%w: exchange=%s coin=%s timestamp=%s",
				postgres.ErrDuplicateSnapshot, r.Exchange, r.Coin, r.Timestamp.Format(time.RFC3339Nano))
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	m.records = append(m.records, *r)
	return nil
}

func (m *MemoryStore) RecentSnapshots(_ context.Context, limit int) ([]postgres.SnapshotRecord, error) {
	return m.recent(limit, func(postgres.SnapshotRecord) bool { return true }), nil
}

func (m *MemoryStore) RecentSnapshotsByCoin(_ context.Context, coin string, limit int) ([]postgres.SnapshotRecord, error) {
	return m.recent(limit, func(r postgres.SnapshotRecord) bool { return r.Coin == coin }), nil
}

func (m *MemoryStore) CountSnapshots(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *MemoryStore) PruneSnapshots(_ context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("prune: keep must be positive, got %d", keep)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) < keep {
		return 0, nil
	}
	sorted := m.sortedLocked()
	cutoff := sorted[keep-1].Timestamp

	kept := m.records[:0]
	for _, r := range m.records {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	deleted := int64(len(m.records) - len(kept))
	m.records = kept
	return deleted, nil
}

func (m *MemoryStore) recent(limit int, keep func(postgres.SnapshotRecord) bool) []postgres.SnapshotRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]postgres.SnapshotRecord, 0, limit)
	for _, r := range m.sortedLocked() {
		if len(out) == limit {
			break
		}
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// sortedLocked returns a copy ordered by timestamp, newest first.
func (m *MemoryStore) sortedLocked() []postgres.SnapshotRecord {
	cp := make([]postgres.SnapshotRecord, len(m.records))
	copy(cp, m.records)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp.After(cp[j].Timestamp) })
	return cp
}
