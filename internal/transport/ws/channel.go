package ws

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/gorilla/websocket"

	"github.com/bft-labs/obsrelay/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
)

// channel is one connected client. A single goroutine writes; senders only
// append to the queue, so a slow client never blocks a dispatch.
type channel struct {
	id     string
	ws     *websocket.Conn
	logger ports.Logger

	mu     sync.Mutex
	out    *queue.Queue
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newChannel(id string, ws *websocket.Conn, logger ports.Logger) *channel {
	return &channel{
		id:     id,
		ws:     ws,
		logger: logger,
		out:    queue.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (c *channel) send(msg Outbound) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.out.Add(msg)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *channel) next() (Outbound, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out.Length() == 0 {
		return Outbound{}, false
	}
	return c.out.Remove().(Outbound), true
}

func (c *channel) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.wake:
			for {
				msg, ok := c.next()
				if !ok {
					break
				}
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.ws.WriteJSON(msg); err != nil {
					c.logger.Warn("channel write failed", ports.String("channel", c.id), ports.Err(err))
					c.close()
					return
				}
			}
		}
	}
}

func (c *channel) readLoop(onMessage func(Inbound)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("channel read ended", ports.String("channel", c.id), ports.Err(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		in, err := decodeInbound(data)
		if err != nil {
			c.logger.Warn("undecodable client message", ports.String("channel", c.id), ports.Err(err))
			continue
		}
		onMessage(in)
	}
}

// close is safe to call more than once.
func (c *channel) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	_ = c.ws.Close()
}
