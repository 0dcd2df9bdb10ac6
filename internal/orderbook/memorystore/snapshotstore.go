package memorystore

import "sync"

// MemorySnapshotStore keeps the latest Snapshot per symbol.
// A single writer (the feed read loop) calls Put while any number of readers call Get/GetAll.
type MemorySnapshotStore struct {
	mu     sync.RWMutex
	latest map[string]Snapshot
	order  []string // symbols in first-seen order
}

func NewSnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		latest: make(map[string]Snapshot),
		order:  make([]string, 0),
	}
}

// Put replaces the entry for s.Symbol unconditionally. The most recently received
// snapshot wins, regardless of its Timestamp.
func (s *MemorySnapshotStore) Put(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.latest[snap.Symbol]; !ok {
		s.order = append(s.order, snap.Symbol)
	}
	s.latest[snap.Symbol] = snap
}

// Get returns the latest snapshot for symbol and whether one has been seen.
func (s *MemorySnapshotStore) Get(symbol string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.latest[symbol]
	return snap, ok
}

// GetAll returns every cached snapshot in first-seen symbol order.
// An empty store yields an empty, non-nil slice.
func (s *MemorySnapshotStore) GetAll() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.order))
	for _, symbol := range s.order {
		out = append(out, s.latest[symbol])
	}
	return out
}

// Len returns the number of distinct symbols seen.
func (s *MemorySnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}
