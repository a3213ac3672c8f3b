// Package wsport carries the privileged point-to-point channel over a
// websocket. The background service accepts ports; content contexts dial them.
package wsport

import (
	"context"
	"net/http"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/utils/log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

type (
	Conn struct {
		conn    *websocket.Conn
		writeMu sync.Mutex

		deliverMu sync.Mutex
		mu        sync.Mutex
		listeners map[int]func([]byte)
		nextID    int
		pending   [][]byte

		done      chan struct{}
		closeOnce sync.Once
	}
)

var _ transport.Channel = (*Conn)(nil)

// New wraps an established websocket and starts reading from it.
func New(conn *websocket.Conn) *Conn {
	c := &Conn{
		conn:      conn,
		listeners: make(map[int]func([]byte)),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to a port endpoint such as ws://localhost:9090/port.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

func (c *Conn) Post(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Listen registers fn. Messages that arrived before the first listener was
// registered are handed to it, so nothing posted right after connecting is lost.
func (c *Conn) Listen(fn func([]byte)) func() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	backlog := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, data := range backlog {
		fn(data)
	}

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Done is closed once the connection has gone away.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("port web socket closed", zap.Error(err))
			return
		}

		c.dispatch(data)
	}
}

// dispatch holds deliverMu so listener calls, backlog replay included, stay
// serial and in arrival order.
func (c *Conn) dispatch(data []byte) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if len(c.listeners) == 0 {
		c.pending = append(c.pending, data)
		c.mu.Unlock()
		return
	}
	fns := make([]func([]byte), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}
