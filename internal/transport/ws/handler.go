package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradewinds-game/tradewinds/internal/events"
	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Router dispatches one inbound command to the game core.
type Router interface {
	Dispatch(ctx context.Context, session Session, method string, params json.RawMessage) (any, error)
}

// Registry is the sink registration surface of the event dispatcher.
type Registry interface {
	Register(receiverID string, sink events.Sink)
	Unregister(receiverID string)
}

// command is one inbound JSON frame.
type command struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Handler upgrades HTTP requests to game connections.
type Handler struct {
	tokens   *TokenIssuer
	registry Registry
	router   Router
	upgrader websocket.Upgrader
}

// NewHandler wires the WebSocket endpoint.
func NewHandler(tokens *TokenIssuer, registry Registry, router Router) *Handler {
	return &Handler{
		tokens:   tokens,
		registry: registry,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP authenticates the session token, upgrades the connection, and
// runs it until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	session, err := h.tokens.Verify(token)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	client := newClient(session, conn)
	h.registry.Register(session.CharacterID, client)
	defer func() {
		h.registry.Unregister(session.CharacterID)
		client.close()
	}()

	go client.writePump()
	h.readPump(r.Context(), client)
}

// readPump reads command frames until the connection drops. Malformed
// frames close the connection; command errors are replied, not fatal.
func (h *Handler) readPump(ctx context.Context, client *Client) {
	client.conn.SetReadLimit(32 * 1024)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var cmd command
		if err := client.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read from %s: %v", client.session.CharacterID, err)
			}
			return
		}
		if cmd.Method == "" {
			continue
		}

		result, err := h.router.Dispatch(ctx, client.session, cmd.Method, cmd.Params)
		if err != nil {
			client.enqueueResult(frame{ID: cmd.ID, Error: apperrors.ToRPC(err)})
			continue
		}
		client.enqueueResult(frame{ID: cmd.ID, Result: result})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
