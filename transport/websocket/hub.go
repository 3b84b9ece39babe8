package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outgoing messages buffered per client before it is dropped.
	sendBuffer = 256
)

// Event names
const (
	EventPartDerived = "part_derived"
	EventRunComplete = "run_complete"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	RunID  string        `json:"run_id"`
	Event  string        `json:"event"`
	Index  *int          `json:"index,omitempty"`
	Result *batch.Result `json:"result,omitempty"`
	Run    *runs.Run     `json:"run,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	runID string
}

// Hub maintains the set of active clients per run and broadcasts run
// progress to them
type Hub struct {
	// Registered clients by run ID
	runs map[string]map[*Client]bool

	// Outbound messages to fan out
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done   chan struct{}
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		runs:       make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logging.OrNop(logger),
	}
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for runID, clients := range h.runs {
				for client := range clients {
					close(client.send)
				}
				delete(h.runs, runID)
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to runID.
// A non-nil greeting is sent to this client before any broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, runID string, greeting *Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		runID: runID,
	}

	if greeting != nil {
		if data, err := json.Marshal(greeting); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// PublishPart broadcasts one finished part of a run
func (h *Hub) PublishPart(runID string, index int, result batch.Result) {
	h.publish(&Message{RunID: runID, Event: EventPartDerived, Index: &index, Result: &result})
}

// PublishRunComplete broadcasts the final state of a run
func (h *Hub) PublishRunComplete(run runs.Run) {
	h.publish(&Message{RunID: run.ID, Event: EventRunComplete, Run: &run})
}

func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// clientCount returns the number of clients subscribed to runID. Only the
// hub goroutine may call it while Run is active.
func (h *Hub) clientCount(runID string) int {
	return len(h.runs[runID])
}

// registerClient adds a client to a run
func (h *Hub) registerClient(client *Client) {
	if h.runs[client.runID] == nil {
		h.runs[client.runID] = make(map[*Client]bool)
	}
	h.runs[client.runID][client] = true

	h.logger.Debug("client registered",
		zap.String("run_id", client.runID),
		zap.Int("clients", len(h.runs[client.runID])))
}

// unregisterClient removes a client from a run
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.runs[client.runID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty runs
			if len(clients) == 0 {
				delete(h.runs, client.runID)
			}

			h.logger.Debug("client unregistered",
				zap.String("run_id", client.runID),
				zap.Int("clients", len(clients)))
		}
	}
}

// broadcastMessage sends a message to all clients of a run
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn("failed to marshal broadcast message", zap.Error(err))
		return
	}

	if clients, ok := h.runs[message.RunID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				h.unregisterClient(client)
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Incoming messages are ignored; reading keeps pongs flowing.
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection, one
// JSON document per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
