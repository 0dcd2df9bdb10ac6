// Package feedtest provides in-memory feed connections for tests.
package feedtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"orderbookfeed/pkg/feed"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by ReadMessage once Close has been called.
var ErrClosed = errors.New("feedtest: connection closed")

// Conn replays queued frames. After the queue is drained it either reports a normal
// close (HangUp) or blocks until Close is called.
type Conn struct {
	Delay  time.Duration // pause before each frame
	HangUp bool

	mu    sync.Mutex
	queue [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn returns a connection that will deliver frames in order.
func NewConn(hangUp bool, frames ...string) *Conn {
	c := &Conn{HangUp: hangUp, closed: make(chan struct{})}
	for _, f := range frames {
		c.queue = append(c.queue, []byte(f))
	}
	return c
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	if c.Delay > 0 {
		t := time.NewTimer(c.Delay)
		select {
		case <-c.closed:
			t.Stop()
			return 0, nil, ErrClosed
		case <-t.C:
		}
	}

	select {
	case <-c.closed:
		return 0, nil, ErrClosed
	default:
	}

	c.mu.Lock()
	if len(c.queue) > 0 {
		frame := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		return websocket.TextMessage, frame, nil
	}
	c.mu.Unlock()

	if c.HangUp {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}

	<-c.closed
	return 0, nil, ErrClosed
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Dialer hands out connections built by Next, counting attempts.
type Dialer struct {
	Next func(attempt int) (*Conn, error)

	mu       sync.Mutex
	attempts int
}

func (d *Dialer) Dial(ctx context.Context, url string) (feed.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.attempts++
	n := d.attempts
	d.mu.Unlock()

	conn, err := d.Next(n)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Attempts returns the number of Dial calls so far.
func (d *Dialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}
