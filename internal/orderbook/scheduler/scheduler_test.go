package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestIntervalRunsRepeatedly
func TestIntervalRunsRepeatedly(t *testing.T) {
	var runs atomic.Int32
	s := &Interval{
		Every: 20 * time.Millisecond,
		Job: func(context.Context) error {
			if runs.Add(1)%2 == 0 {
				return errors.New("no data received") // failures do not stop the schedule
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

// go test -v --run TestIntervalJobTimeout
func TestIntervalJobTimeout(t *testing.T) {
	deadlines := make(chan bool, 1)
	s := &Interval{
		Every:      10 * time.Millisecond,
		JobTimeout: time.Second,
		Job: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			select {
			case deadlines <- ok:
			default:
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case ok := <-deadlines:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

// go test -v --run TestIntervalDisabled
func TestIntervalDisabled(t *testing.T) {
	s := &Interval{Job: func(context.Context) error {
		t.Error("job must not run")
		return nil
	}}

	select {
	case <-s.Start(context.Background()):
	case <-time.After(time.Second):
		t.Fatal("disabled scheduler should return immediately")
	}
}
