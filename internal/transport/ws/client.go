package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradewinds-game/tradewinds/internal/events"
)

const (
	// sendBuffer bounds per-client outbound queueing. A client that falls
	// this far behind starts dropping events rather than stalling emitters.
	sendBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// errSendBufferFull is returned by Deliver when the client cannot keep up.
var errSendBufferFull = errors.New("ws: client send buffer full")

// frame is one outbound JSON message: either an event envelope or a
// command result.
type frame struct {
	Event  string `json:"event,omitempty"`
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  any    `json:"error,omitempty"`

	Payload any               `json:"payload,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Client is one upgraded connection. It implements events.Sink.
type Client struct {
	session Session
	conn    *websocket.Conn
	send    chan frame

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(session Session, conn *websocket.Conn) *Client {
	return &Client{
		session: session,
		conn:    conn,
		send:    make(chan frame, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Deliver enqueues an event without blocking. A full buffer drops the
// event for this client only; the dispatcher records the drop.
func (c *Client) Deliver(_ context.Context, env events.Envelope) error {
	f := frame{Event: env.Name, Payload: env.Payload, Meta: env.Meta}
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errors.New("ws: client closed")
	default:
		return errSendBufferFull
	}
}

// MatchesCharacters reports whether the bound character is in ids.
func (c *Client) MatchesCharacters(ids []string) bool {
	for _, id := range ids {
		if id == c.session.CharacterID {
			return true
		}
	}
	return false
}

// MatchesNames reports whether the bound display name is in names.
func (c *Client) MatchesNames(names []string) bool {
	for _, name := range names {
		if name == c.session.Name {
			return true
		}
	}
	return false
}

// enqueueResult queues a command reply, blocking briefly rather than
// dropping: replies are answers to something the client just asked.
func (c *Client) enqueueResult(f frame) {
	select {
	case c.send <- f:
	case <-c.done:
	case <-time.After(writeWait):
	}
}

// writePump drains the send queue onto the connection. It owns all writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
