package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open streaming connection. *websocket.Conn satisfies it.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the connection fails.
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens connections to a feed endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials feed endpoints with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

// NewWebsocketDialer returns a dialer using handshakeTimeout, or DefaultHandshakeTimeout when zero.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &WebsocketDialer{HandshakeTimeout: handshakeTimeout}
}

// Dial establishes the websocket connection.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
