package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interview-engine/internal/session"
)

const (
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	sendBuffer   = 64
	maxInbound   = 64 * 1024
)

// outbound is every frame the server sends to a browser.
type outbound struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// inbound is every frame a browser may send.
type inbound struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans session events out to the websocket clients of one session and
// hands their messages to a handler.
type Hub struct {
	handle func(inbound)
	log    *zap.SugaredLogger

	mu        sync.RWMutex
	sessionID string
	clients   map[*client]struct{}
	closed    bool
}

func NewHub(handle func(inbound), log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		handle:  handle,
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Bind sets the session ID stamped on control messages.
func (h *Hub) Bind(sessionID string) {
	h.mu.Lock()
	h.sessionID = sessionID
	h.mu.Unlock()
}

// OnEvent forwards a session event to every client.
func (h *Hub) OnEvent(e session.Event) {
	h.send(outbound{Type: string(e.Type), SessionID: e.SessionID, Time: e.Time, Data: e.Data})
}

// Broadcast sends a control message to every client.
func (h *Hub) Broadcast(msgType string, data any) {
	h.send(outbound{Type: msgType, SessionID: h.id(), Time: time.Now(), Data: data})
}

func (h *Hub) id() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionID
}

func (h *Hub) send(msg outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("Could not encode %s message: %v", msg.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warnf("Dropping %s message for slow client of session %s", msg.Type, msg.SessionID)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs a client connection until it fails, ctx is cancelled or the
// hub is closed.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) error {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return errHubClosed
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debugf("Client connected to session %s", h.id())

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		_ = conn.Close()
		h.log.Debugf("Client disconnected from session %s", h.id())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readLoop(c) })
	g.Go(func() error { return h.writeLoop(gctx, c) })
	err := g.Wait()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, errClientGone) {
		return nil
	}
	return err
}

func (h *Hub) readLoop(c *client) error {
	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warnf("Ignoring malformed message on session %s: %v", h.id(), err)
			continue
		}
		if h.handle != nil {
			h.handle(msg)
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			_ = c.conn.Close()
			return nil
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				_ = c.conn.Close()
				return errClientGone
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
