package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tab-inspector/internal/config"

	"github.com/gorilla/websocket"
)

const incomingBuffer = 64

// Channel is a bidirectional message channel to one browser target.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens channels to debug endpoints.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Channel, error)
}

type WSDialer struct {
	dialer         *websocket.Dialer
	maxMessageSize int64
}

func NewWSDialer(cfg *config.Config) *WSDialer {
	return &WSDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.SessionConfig.DialTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  64 * 1024,
		},
		maxMessageSize: cfg.SessionConfig.MaxMessageSize,
	}
}

func (d *WSDialer) Dial(ctx context.Context, endpoint string) (Channel, error) {
	conn, _, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	if d.maxMessageSize > 0 {
		conn.SetReadLimit(d.maxMessageSize)
	}

	return newWSChannel(conn), nil
}

// wsChannel pumps frames from the socket in a background goroutine so that a
// caller giving up on Receive never leaves the connection in a failed read
// state.
type wsChannel struct {
	conn      *websocket.Conn
	incoming  chan []byte
	done      chan struct{}
	closed    chan struct{}
	readErr   error
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{
		conn:     conn,
		incoming: make(chan []byte, incomingBuffer),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}

	go c.readLoop()

	return c
}

func (c *wsChannel) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err

			return
		}

		select {
		case c.incoming <- data:
		case <-c.closed:
			return
		}
	}
}

func (c *wsChannel) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: %v", ErrChannelClosed, c.readErr)
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}

	return nil
}

func (c *wsChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.done:
		select {
		case data := <-c.incoming:
			return data, nil
		default:
		}

		return nil, fmt.Errorf("%w: %v", ErrChannelClosed, c.readErr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsChannel) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})

	return err
}
