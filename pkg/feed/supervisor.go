package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SupervisorConfig controls the feed connection and its reconnect policy.
type SupervisorConfig struct {
	URL            string        // Feed endpoint, e.g., "ws://localhost:8080"
	ReconnectDelay time.Duration // Fixed delay between connection cycles
	MaxRetries     int           // Consecutive failed dials allowed before giving up; 0 retries forever
}

// Supervisor keeps one logical connection to the feed open indefinitely.
// Each inbound frame is passed to the message handler synchronously, in arrival order.
// When the connection closes or fails, the supervisor waits ReconnectDelay and dials again.
type Supervisor struct {
	cfg    SupervisorConfig
	dialer Dialer
	logger *zap.Logger

	handler func([]byte)
	state   atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a supervisor. A nil dialer uses the gorilla websocket dialer.
func NewSupervisor(cfg SupervisorConfig, dialer Dialer, logger *zap.Logger) *Supervisor {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if dialer == nil {
		dialer = NewWebsocketDialer(DefaultHandshakeTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:    cfg,
		dialer: dialer,
		logger: logger,
		wait:   sleepContext,
	}
}

// SetMessageHandler sets the function to handle incoming frames.
// It takes effect on the next connection cycle.
func (s *Supervisor) SetMessageHandler(h func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Start runs the connection loop in the background until ctx is done or Stop is called.
// Once the loop has exited on its own (retries exhausted), Start may be called again.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.Run(runCtx); err != nil {
			s.logger.Error("feed supervisor stopped", zap.String("url", s.cfg.URL), zap.Error(err))
		}
		cancel()
		s.release(done)
	}()

	return nil
}

// Stop closes the active connection, cancels any pending reconnect delay
// and waits for the loop to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.release(done)
}

// release forgets the run identified by done, unless a newer run replaced it.
func (s *Supervisor) release(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done {
		s.cancel, s.done = nil, nil
	}
}

// Run connects and reconnects until ctx is done. It returns nil on cancellation and
// ErrRetriesExhausted when MaxRetries consecutive dials have failed.
func (s *Supervisor) Run(ctx context.Context) error {
	failedDials := 0

	for {
		connected, err := s.session(ctx)
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			s.logger.Info("feed supervisor shutting down", zap.String("url", s.cfg.URL))
			return nil
		}

		if connected {
			failedDials = 0
			s.logger.Warn("feed connection closed", zap.String("url", s.cfg.URL), zap.Error(err))
		} else {
			failedDials++
			s.logger.Error("failed to connect to feed",
				zap.String("url", s.cfg.URL), zap.Int("attempt", failedDials), zap.Error(err))
			if s.cfg.MaxRetries > 0 && failedDials > s.cfg.MaxRetries {
				return fmt.Errorf("%w: %d attempts: %v", ErrRetriesExhausted, failedDials, err)
			}
		}

		s.logger.Info("reconnecting to feed", zap.Duration("delay", s.cfg.ReconnectDelay))
		if err := s.wait(ctx, s.cfg.ReconnectDelay); err != nil {
			s.logger.Info("feed supervisor shutting down", zap.String("url", s.cfg.URL))
			return nil
		}
	}
}

// session dials once and reads until the connection ends. connected reports
// whether the dial succeeded.
func (s *Supervisor) session(ctx context.Context) (connected bool, err error) {
	s.setState(StateConnecting)

	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.setState(StateConnected)
	s.logger.Info("feed connected", zap.String("url", s.cfg.URL))

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}

		if handler != nil {
			handler(msg)
		}
	}
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
