package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"arcade_arena/internal/logger"
	"arcade_arena/internal/protocol"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = 25 * time.Second
	maxMsgSize  = 4096
	sendBufSize = 64
)

// Client is one websocket connection. It implements protocol.Peer: Send
// queues without blocking and never fails.
type Client struct {
	ID   string
	Conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger
}

func NewClient(conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Client{
		ID:     id,
		Conn:   conn,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.Component("ws").With("client", id),
	}
}

// Context is cancelled once the client is closed.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) Send(msg protocol.Outbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encode outbound message", "event", msg.Event, "error", err)
		return
	}
	select {
	case <-c.done:
		c.log.Debug("send on closed client dropped", "event", msg.Event)
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		c.log.Warn("send buffer full, message dropped", "event", msg.Event)
	}
}

// Close flushes queued messages, sends a close frame and shuts the
// connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

// Start launches the write pump.
func (c *Client) Start() {
	go c.writePump()
}

// Serve runs the read pump until the connection drops, handing every text
// message to onMessage in arrival order.
func (c *Client) Serve(onMessage func(raw []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(maxMsgSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
		onMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(kind, data)
}
