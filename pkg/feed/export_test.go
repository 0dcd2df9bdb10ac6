package feed

import (
	"context"
	"time"
)

// SetWait replaces the reconnect delay function.
func SetWait(s *Supervisor, fn func(ctx context.Context, d time.Duration) error) {
	s.wait = fn
}
