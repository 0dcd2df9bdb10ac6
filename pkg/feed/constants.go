package feed

import (
	"errors"
	"time"
)

const (
	DefaultURL              = "ws://localhost:8080"
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	ErrAlreadyStarted   = errors.New("supervisor already started")
	ErrRetriesExhausted = errors.New("feed reconnect retries exhausted")
)

// State is the connection state of a Supervisor.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
