package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type (
	// Conn is the subset of a WebSocket connection the Manager relies on.
	// ReadMessage is only called from one reader goroutine and writes only
	// from the Manager's run loop
	Conn interface {
		ReadMessage() (messageType int, p []byte, err error)
		WriteMessage(messageType int, data []byte) error
		SetWriteDeadline(t time.Time) error
		Close() error
	}

	// Dialer opens a new connection to the given URL
	Dialer interface {
		Dial(ctx context.Context, url string) (Conn, error)
	}

	// WebSocketDialer dials with gorilla/websocket
	WebSocketDialer struct {
		dialer *websocket.Dialer
		header http.Header
	}
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 1 << 20
	wsBufferSize     = 1024
)

// ErrDial wraps failures to establish a connection
var ErrDial = errors.New("failed to dial channel")

var _ Dialer = (*WebSocketDialer)(nil)

// NewWebSocketDialer creates a dialer that sends header with each handshake
func NewWebSocketDialer(header http.Header) *WebSocketDialer {
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   wsBufferSize,
			WriteBufferSize:  wsBufferSize,
		},
		header: header,
	}
}

// Dial performs the WebSocket handshake
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDial, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}
