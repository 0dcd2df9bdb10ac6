package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/internal/orderbook/stream"
	"orderbookfeed/pkg/feed"

	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultExpectedCount = 5
)

// ErrNoData is returned when the timeout elapses before any snapshot is collected.
var ErrNoData = errors.New("timeout: no data received")

// FetchOptions configures one collection round.
type FetchOptions struct {
	URL string

	// Symbols, when set, is the exact set to collect. Frames for other symbols are ignored
	// and the round completes once every listed symbol has been seen.
	Symbols []string

	// ExpectedCount is the number of distinct symbols that completes a round when
	// Symbols is empty.
	ExpectedCount int

	Timeout time.Duration
}

// Fetcher collects one snapshot per symbol over a short-lived connection.
// It never touches the supervisor's connection or cache.
type Fetcher struct {
	opts   FetchOptions
	dialer feed.Dialer
	logger *zap.Logger
}

func NewFetcher(opts FetchOptions, dialer feed.Dialer, logger *zap.Logger) *Fetcher {
	if opts.URL == "" {
		opts.URL = feed.DefaultURL
	}
	if opts.ExpectedCount <= 0 {
		opts.ExpectedCount = DefaultExpectedCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if dialer == nil {
		dialer = feed.NewWebsocketDialer(feed.DefaultHandshakeTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{opts: opts, dialer: dialer, logger: logger}
}

type readResult struct {
	msg []byte
	err error
}

// Fetch opens a fresh connection and returns the first snapshot received for each symbol.
//
// It returns as soon as the round is complete. On timeout, connection close or ctx
// cancellation it returns whatever was collected; with nothing collected it fails with
// ErrNoData, the transport error, or ctx.Err() respectively.
func (f *Fetcher) Fetch(ctx context.Context) ([]memorystore.Snapshot, error) {
	conn, err := f.dialer.Dial(ctx, f.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", f.opts.URL, err)
	}
	defer conn.Close()
	f.logger.Debug("fetcher connected", zap.String("url", f.opts.URL))

	done := make(chan struct{})
	defer close(done)

	frames := make(chan readResult)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			select {
			case frames <- readResult{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(f.opts.Timeout)
	defer timer.Stop()

	wanted := make(map[string]struct{}, len(f.opts.Symbols))
	for _, s := range f.opts.Symbols {
		wanted[s] = struct{}{}
	}
	target := f.opts.ExpectedCount
	if len(wanted) > 0 {
		target = len(wanted)
	}

	collected := make([]memorystore.Snapshot, 0, target)
	seen := make(map[string]struct{}, target)

	for {
		select {
		case <-timer.C:
			if len(collected) > 0 {
				f.logger.Warn("fetch timed out with partial data",
					zap.Int("collected", len(collected)), zap.Int("expected", target))
				return collected, nil
			}
			return nil, ErrNoData

		case <-ctx.Done():
			if len(collected) > 0 {
				return collected, nil
			}
			return nil, ctx.Err()

		case r := <-frames:
			if r.err != nil {
				if len(collected) > 0 {
					f.logger.Info("feed closed during fetch",
						zap.Int("collected", len(collected)), zap.Error(r.err))
					return collected, nil
				}
				return nil, fmt.Errorf("read: %w", r.err)
			}

			snap, err := stream.DecodeFrame(r.msg)
			if err != nil {
				f.logger.Warn("failed to decode frame", zap.Error(err))
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[snap.Symbol]; !ok {
					continue
				}
			}
			if _, dup := seen[snap.Symbol]; dup {
				continue
			}

			seen[snap.Symbol] = struct{}{}
			collected = append(collected, snap)
			f.logger.Debug("snapshot received", zap.String("symbol", snap.Symbol))

			if len(collected) == target {
				return collected, nil
			}
		}
	}
}
