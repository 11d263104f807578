package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rescp17/transferkit/pkg/transfer"
)

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type wsClient struct {
	hub  *wsHub
	conn *websocket.Conn
	send chan []byte
}

type directMessage struct {
	client  *wsClient
	payload []byte
}

type wsHub struct {
	clients    map[*wsClient]bool
	count      atomic.Int32
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	logger     *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				_ = client.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second),
				)
				h.drop(client)
			}
			h.logger.Debug("ws hub stopped, all clients disconnected")
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int32(len(h.clients)))
			h.logger.Debug("ws client connected", slog.Int("total", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("ws client disconnected", slog.Int("total", len(h.clients)))
			}
		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.payload)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, msg)
			}
		}
	}
}

// deliver drops clients that cannot keep up
func (h *wsHub) deliver(client *wsClient, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.drop(client)
	}
}

func (h *wsHub) drop(client *wsClient) {
	close(client.send)
	delete(h.clients, client)
	h.count.Store(int32(len(h.clients)))
}

// Close signals the hub to stop and disconnect all clients.
func (h *wsHub) Close() {
	close(h.done)
}

func (h *wsHub) clientCount() int {
	return int(h.count.Load())
}

func encodeMessage(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(wsMessage{Type: msgType, Data: data})
}

// Broadcast sends a typed JSON message to all connected WebSocket clients.
// Messages are skipped while the broadcast queue is full.
func (h *wsHub) Broadcast(msgType string, data interface{}) {
	if h.clientCount() == 0 {
		return
	}
	payload, err := encodeMessage(msgType, data)
	if err != nil {
		h.logger.Error("ws marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

func (h *wsHub) sendTo(client *wsClient, msgType string, data interface{}) {
	payload, err := encodeMessage(msgType, data)
	if err != nil {
		h.logger.Error("ws marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case h.direct <- directMessage{client: client, payload: payload}:
	case <-h.done:
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

type stateEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// hubListener pushes lifecycle events to WebSocket clients as they happen
type hubListener struct {
	id  string
	hub *wsHub
}

func newHubListener(hub *wsHub) *hubListener {
	return &hubListener{id: "ws-" + uuid.NewString(), hub: hub}
}

func (l *hubListener) ID() string { return l.id }

func (l *hubListener) OnStateChanged(t transfer.Transfer, from, to transfer.State) {
	l.hub.Broadcast("state", stateEvent{ID: t.ID(), Name: t.DisplayName(), From: from.String(), To: to.String()})
}

func (l *hubListener) OnDownloadFinished(t transfer.Transfer) {
	l.hub.Broadcast("finished", transfer.Describe(t))
}
