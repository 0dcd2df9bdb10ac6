package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/internal/orderbook/stream"
	"orderbookfeed/pkg/feed"
	"orderbookfeed/pkg/feed/feedtest"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(coin string, ts string) string {
	return `{"timestamp":` + ts + `,"exchange":"MockExchange","coin":"` + coin +
		`","bids":[[100,1]],"asks":[[110,1]]}`
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

// go test -v --run TestSupervisorReconnectsAtFixedDelay
func TestSupervisorReconnectsAtFixedDelay(t *testing.T) {
	dialer := &feedtest.Dialer{Next: func(int) (*feedtest.Conn, error) {
		return feedtest.NewConn(true), nil // closes right after connecting
	}}

	sup := feed.NewSupervisor(feed.SupervisorConfig{URL: "ws://feed", ReconnectDelay: 5 * time.Second}, dialer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	feed.SetWait(sup, func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 10 {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	require.NoError(t, sup.Run(ctx))

	// One dial per delay interval: every wait is followed by exactly one dial.
	assert.Equal(t, 10, dialer.Attempts())
	require.Len(t, waits, 10)
	for _, d := range waits {
		assert.Equal(t, 5*time.Second, d)
	}
	assert.Equal(t, feed.StateDisconnected, sup.State())
}

// go test -v --run TestSupervisorRetriesDialFailuresForever
func TestSupervisorRetriesDialFailuresForever(t *testing.T) {
	dialer := &feedtest.Dialer{Next: func(int) (*feedtest.Conn, error) {
		return nil, errors.New("connection refused")
	}}
	sup := feed.NewSupervisor(feed.SupervisorConfig{ReconnectDelay: time.Second}, dialer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	feed.SetWait(sup, func(ctx context.Context, d time.Duration) error {
		n++
		if n == 100 {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	require.NoError(t, sup.Run(ctx))
	assert.Equal(t, 100, dialer.Attempts())
}

// go test -v --run TestSupervisorMaxRetries
func TestSupervisorMaxRetries(t *testing.T) {
	dialer := &feedtest.Dialer{Next: func(int) (*feedtest.Conn, error) {
		return nil, errors.New("connection refused")
	}}
	sup := feed.NewSupervisor(feed.SupervisorConfig{ReconnectDelay: time.Second, MaxRetries: 3}, dialer, nil)
	feed.SetWait(sup, func(context.Context, time.Duration) error { return nil })

	err := sup.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrRetriesExhausted)
	assert.Equal(t, 4, dialer.Attempts()) // initial dial plus three retries
}

// go test -v --run TestSupervisorRestartAfterRetriesExhausted
func TestSupervisorRestartAfterRetriesExhausted(t *testing.T) {
	dialer := &feedtest.Dialer{Next: func(int) (*feedtest.Conn, error) {
		return nil, errors.New("connection refused")
	}}
	sup := feed.NewSupervisor(feed.SupervisorConfig{ReconnectDelay: time.Second, MaxRetries: 1}, dialer, nil)
	feed.SetWait(sup, func(context.Context, time.Duration) error { return nil })

	require.NoError(t, sup.Start(context.Background()))
	eventually(t, func() bool { return dialer.Attempts() == 2 })

	// The exhausted loop releases the supervisor without an explicit Stop.
	eventually(t, func() bool { return sup.Start(context.Background()) == nil })
	eventually(t, func() bool { return dialer.Attempts() == 4 })
	sup.Stop()
}

// go test -v --run TestSupervisorSuccessfulDialResetsRetries
func TestSupervisorSuccessfulDialResetsRetries(t *testing.T) {
	dialer := &feedtest.Dialer{Next: func(attempt int) (*feedtest.Conn, error) {
		if attempt%2 == 0 {
			return feedtest.NewConn(true), nil
		}
		return nil, errors.New("connection refused")
	}}
	sup := feed.NewSupervisor(feed.SupervisorConfig{ReconnectDelay: time.Second, MaxRetries: 1}, dialer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.SetWait(sup, func(ctx context.Context, d time.Duration) error {
		if dialer.Attempts() >= 20 {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	require.NoError(t, sup.Run(ctx))
	assert.Equal(t, 20, dialer.Attempts())
}

// go test -v --run TestSupervisorDecodeErrorDoesNotStopStream
func TestSupervisorDecodeErrorDoesNotStopStream(t *testing.T) {
	conn := feedtest.NewConn(false,
		`{"timestamp":1,"exchange":"MockExchange","coin":"BTC/USD","asks":[[1,1]]}`, // missing bids
		`not json at all`,
		frame("BTC/USD", "2"),
		frame("ETH/USD", "3"),
	)
	dialer := &feedtest.Dialer{Next: func(int) (*feedtest.Conn, error) { return conn, nil }}

	cache := memorystore.NewSnapshotStore()
	sup := feed.NewSupervisor(feed.SupervisorConfig{}, dialer, nil)
	sup.SetMessageHandler(stream.MakeMessageHandler(nil, cache, nil))

	require.NoError(t, sup.Start(context.Background()))
	assert.ErrorIs(t, sup.Start(context.Background()), feed.ErrAlreadyStarted)

	eventually(t, func() bool { return cache.Len() == 2 })
	got, ok := cache.Get("BTC/USD")
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Timestamp)
	assert.Equal(t, feed.StateConnected, sup.State())

	sup.Stop()
	assert.True(t, conn.Closed())
	assert.Equal(t, feed.StateDisconnected, sup.State())
	assert.Equal(t, 1, dialer.Attempts())
}

// go test -v --run TestSupervisorStopCancelsReconnectDelay
func TestSupervisorStopCancelsReconnectDelay(t *testing.T) {
	dialer := &feedtest.Dialer{Next: func(int) (*feedtest.Conn, error) {
		return nil, errors.New("connection refused")
	}}
	sup := feed.NewSupervisor(feed.SupervisorConfig{ReconnectDelay: time.Hour}, dialer, nil)

	require.NoError(t, sup.Start(context.Background()))
	eventually(t, func() bool { return dialer.Attempts() == 1 })

	stopped := make(chan struct{})
	go func() {
		sup.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the pending reconnect delay")
	}
	sup.Stop() // second Stop is a no-op
}

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// go test -v --run TestSupervisorOverWebsocket
func TestSupervisorOverWebsocket(t *testing.T) {
	var mu sync.Mutex
	connections := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		if n == 1 {
			// First connection delivers one frame and drops.
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frame("BTC/USD", "1")))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame("ETH/USD", "2")))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cache := memorystore.NewSnapshotStore()
	sup := feed.NewSupervisor(feed.SupervisorConfig{
		URL:            wsURL(server),
		ReconnectDelay: 20 * time.Millisecond,
	}, feed.NewWebsocketDialer(time.Second), nil)
	sup.SetMessageHandler(stream.MakeMessageHandler(nil, cache, nil))

	require.NoError(t, sup.Start(context.Background()))
	defer sup.Stop()

	eventually(t, func() bool { return cache.Len() == 2 })
	eventually(t, func() bool { return sup.State() == feed.StateConnected })
}

// go test -v --run TestStateString
func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", feed.StateDisconnected.String())
	assert.Equal(t, "connecting", feed.StateConnecting.String())
	assert.Equal(t, "connected", feed.StateConnected.String())
	assert.Equal(t, "unknown", feed.State(42).String())
}
