package stream

import (
	"sync"
	"sync/atomic"

	"orderbookfeed/internal/orderbook/memorystore"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

// DefaultSubscriberBuffer bounds the pending queue of each subscriber.
const DefaultSubscriberBuffer = 256

// Hub delivers every published snapshot to each registered subscriber, in arrival order,
// on a goroutine owned by that subscriber. Publish never waits on a subscriber: when a
// subscriber falls behind by more than its buffer, its oldest pending snapshot is dropped.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	id     uint64
	fn     func(memorystore.Snapshot)
	max    int
	logger *zap.Logger

	mu      sync.Mutex
	pending deque.Deque[memorystore.Snapshot]
	dropped atomic.Int64

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub whose subscribers each buffer up to buffer pending snapshots.
// A non-positive buffer means DefaultSubscriberBuffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[uint64]*subscriber),
	}
}

// Subscribe registers fn and returns a function that unregisters it.
// Unsubscribing waits for an in-flight callback to return, so it must not be called from
// within fn. Pending snapshots are discarded.
func (h *Hub) Subscribe(fn func(memorystore.Snapshot)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return func() {}
	}

	h.nextID++
	s := &subscriber{
		id:     h.nextID,
		fn:     fn,
		max:    h.buffer,
		logger: h.logger,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	h.subs[s.id] = s
	go s.run()

	return func() {
		h.mu.Lock()
		delete(h.subs, s.id)
		h.mu.Unlock()
		s.stop()
	}
}

// Publish enqueues snap for every subscriber.
func (h *Hub) Publish(snap memorystore.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		s.enqueue(snap)
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close stops every subscriber. Later Subscribe calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscriber)
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) enqueue(snap memorystore.Snapshot) {
	s.mu.Lock()
	if s.pending.Len() >= s.max {
		s.pending.PopFront()
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			s.logger.Warn("subscriber lagging, dropping oldest snapshot",
				zap.Uint64("subscriber", s.id), zap.Int64("dropped", n))
		}
	}
	s.pending.PushBack(snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		for {
			select {
			case <-s.quit:
				return
			default:
			}

			s.mu.Lock()
			if s.pending.Len() == 0 {
				s.mu.Unlock()
				break
			}
			snap := s.pending.PopFront()
			s.mu.Unlock()

			s.deliver(snap)
		}
	}
}

func (s *subscriber) deliver(snap memorystore.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked",
				zap.Uint64("subscriber", s.id), zap.String("symbol", snap.Symbol), zap.Any("panic", r))
		}
	}()
	s.fn(snap)
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}
