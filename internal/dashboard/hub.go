package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// MessageType identifies a websocket message
type MessageType string

const (
	// MessageTypeView carries a full dashboard view
	MessageTypeView MessageType = "view"
	// MessageTypeError reports a rejected client command
	MessageTypeError MessageType = "error"
)

// Message is the envelope sent to websocket clients
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ClientMessage is a command sent by a websocket client
type ClientMessage struct {
	Action  string `json:"action"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// Commander applies client commands
type Commander interface {
	SetAudioPermission(ctx context.Context, enabled bool) (View, error)
	View() View
}

// Client is one websocket connection
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes every published view to the connected websocket clients
type Hub struct {
	logger    *utils.Logger
	commander Commander
	upgrader  websocket.Upgrader

	clients   map[*Client]bool
	closed    bool
	broadcast chan []byte
	mutex     sync.RWMutex

	ctx context.Context
	wg  sync.WaitGroup
}

// NewHub creates a hub. Run must be called to start it.
func NewHub(commander Commander, logger *utils.Logger) *Hub {
	return &Hub{
		logger:    logger.Named("dashboard_hub"),
		commander: commander,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard API allows every origin, as does its CORS policy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*Client]bool),
		broadcast: make(chan []byte, sendBuffer),
		ctx:       context.Background(),
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run delivers broadcasts until ctx is cancelled, then closes every client
// and waits for their pumps to exit
func (h *Hub) Run(ctx context.Context) {
	h.mutex.Lock()
	h.ctx = ctx
	h.mutex.Unlock()
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			h.closed = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case message := <-h.broadcast:
			h.mutex.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mutex.RUnlock()

			for _, client := range slow {
				h.remove(client)
				h.logger.Warn("Client buffer full, connection closed",
					zap.String("remote", client.conn.RemoteAddr().String()))
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Debug("Client unregistered", zap.String("remote", client.conn.RemoteAddr().String()))
	}
}

// Broadcast queues v for every client. It never blocks; when the queue is
// full the view is skipped since a newer one will follow.
func (h *Hub) Broadcast(v View) {
	data, err := encode(MessageTypeView, v)
	if err != nil {
		h.logger.Error("Failed to marshal view", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug("Broadcast queue full, skipping view")
	}
}

// ServeWS upgrades the request and attaches the connection to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}

	// The current view goes out first so a new client renders immediately
	if data, err := encode(MessageTypeView, h.commander.View()); err == nil {
		client.send <- data
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.wg.Add(2)
	ctx := h.ctx
	h.mutex.Unlock()

	h.logger.Debug("Client registered", zap.String("remote", conn.RemoteAddr().String()))

	go h.readPump(ctx, client)
	go h.writePump(client)
}

func (h *Hub) readPump(ctx context.Context, client *Client) {
	defer func() {
		h.remove(client)
		client.conn.Close()
		h.wg.Done()
	}()

	client.conn.SetReadLimit(4096)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Unexpected websocket close", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Warn("Invalid client message", zap.Error(err), zap.ByteString("message", message))
			h.reply(client, MessageTypeError, utils.ErrorResponse{Error: "bad_request", Message: "invalid JSON message"})
			continue
		}

		switch msg.Action {
		case "audio":
			if msg.Enabled == nil {
				h.reply(client, MessageTypeError, utils.ErrorResponse{Error: "bad_request", Message: "enabled is required"})
				continue
			}
			// The resulting view reaches this client through the broadcast
			if _, err := h.commander.SetAudioPermission(ctx, *msg.Enabled); err != nil {
				h.reply(client, MessageTypeError, utils.ErrorResponse{Error: "service_unavailable", Message: err.Error()})
			}
		default:
			h.reply(client, MessageTypeError, utils.ErrorResponse{Error: "bad_request", Message: "unknown action " + msg.Action})
		}
	}
}

// reply sends a message to one client without blocking
func (h *Hub) reply(client *Client, t MessageType, payload interface{}) {
	data, err := encode(t, payload)
	if err != nil {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(t MessageType, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: t, Timestamp: time.Now().UTC(), Payload: payload})
}
