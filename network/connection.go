// network/connection.go
package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/roulette/logger"
)

var (
	// ErrConnectionClosed is returned by Send after Close.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a peer stops draining; the connection is closed.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Connection is one client's ordered, reliable channel.
type Connection interface {
	ID() string
	Send(msg Outbound) error
	ReadFrame() ([]byte, error)
	Close() error
	RemoteAddr() net.Addr
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// Options tune a WSConnection.
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{SendBuffer: 64, MaxMessageSize: 8192}

// WSConnection is a websocket-backed Connection. Sends are queued and written by
// a single goroutine, so per-connection order is the order of Send calls.
type WSConnection struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	sendMutex sync.Mutex
	closed    bool
	done      chan struct{}
}

// NewWSConnection wraps conn and starts its writer.
func NewWSConnection(id string, conn *websocket.Conn, opts Options) *WSConnection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions.SendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultOptions.MaxMessageSize
	}

	c := &WSConnection{
		id:   id,
		conn: conn,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}

	conn.SetReadLimit(opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	return c
}

func (c *WSConnection) ID() string {
	return c.id
}

// Send queues msg without blocking.
func (c *WSConnection) Send(msg Outbound) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		logger.Log.Warnw("send buffer full, closing connection", "conn", c.id)
		c.closed = true
		close(c.send)
		return ErrSendBufferFull
	}
}

// ReadFrame blocks for the next text or binary frame.
func (c *WSConnection) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close stops accepting sends. Messages already queued are written before the
// close frame, so a refusal message reaches the peer.
func (c *WSConnection) Close() error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// Done is closed once the underlying socket is closed.
func (c *WSConnection) Done() <-chan struct{} {
	return c.done
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Debugw("write failed", "conn", c.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
