package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development, configure for production
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// WSMessage represents a WebSocket message from a client
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client represents one WebSocket connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *WSHub

	mu        sync.Mutex
	vehicleID string // filter, empty means all vehicles
}

// Subscribe narrows the client's stream to one vehicle.
func (c *Client) Subscribe(vehicleID string) {
	c.mu.Lock()
	c.vehicleID = vehicleID
	c.mu.Unlock()
}

// wants reports whether an event for the given vehicle passes the client's
// filter. Events without a vehicle are delivered to everyone.
func (c *Client) wants(vehicleID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vehicleID == "" || vehicleID == "" || c.vehicleID == vehicleID
}

// wsEvent is one broadcast payload tagged with the vehicle it concerns.
type wsEvent struct {
	vehicleID string
	data      []byte
}

// WSHub bridges NATS location and alert subjects to WebSocket clients
type WSHub struct {
	clients    map[*Client]bool
	broadcast  chan wsEvent
	register   chan *Client
	unregister chan *Client
	natsConn   *nats.Conn
	locSub     *nats.Subscription
	alertSub   *nats.Subscription
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(nc *nats.Conn) *WSHub {
	return &WSHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan wsEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		natsConn:   nc,
	}
}

// Run subscribes to NATS and starts the hub's event loop
func (h *WSHub) Run() {
	locSub, err := h.natsConn.Subscribe("fleet.uplink.LOCATION", func(msg *nats.Msg) {
		h.relay("location", msg.Data)
	})
	if err != nil {
		log.Errorf("[WS] Failed to subscribe to location updates: %v", err)
		return
	}
	h.locSub = locSub

	alertSub, err := h.natsConn.Subscribe("fleet.alert.*", func(msg *nats.Msg) {
		h.relay("alert", msg.Data)
	})
	if err != nil {
		log.Errorf("[WS] Failed to subscribe to alerts: %v", err)
		return
	}
	h.alertSub = alertSub

	log.Println("[WS] Hub started, subscribed to location and alert updates")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s", client.ID)

		case ev := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				if !client.wants(ev.vehicleID) {
					continue
				}
				select {
				case client.Send <- ev.data:
				default:
					// Client send buffer is full, close connection
					h.unregister <- client
				}
			}
		}
	}
}

// relay wraps a NATS payload in an envelope and queues it for broadcast,
// tagged with the vehicle the payload concerns.
func (h *WSHub) relay(kind string, payload []byte) {
	var tag struct {
		VehicleID string `json:"vehicle_id"`
	}
	json.Unmarshal(payload, &tag)

	data, err := json.Marshal(map[string]interface{}{
		"type": kind,
		"data": json.RawMessage(payload),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- wsEvent{vehicleID: tag.VehicleID, data: data}:
	default:
		// Broadcast channel full, drop rather than block NATS delivery.
	}
}

// Stop unsubscribes and closes all client connections
func (h *WSHub) Stop() {
	if h.locSub != nil {
		h.locSub.Unsubscribe()
	}
	if h.alertSub != nil {
		h.alertSub.Unsubscribe()
	}
	h.mu.Lock()
	for client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("[WS] Client %s read error: %v", c.ID, err)
			}
			break
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			continue
		}
		switch wsMsg.Type {
		case "subscribe":
			var data struct {
				VehicleID string `json:"vehicle_id"`
			}
			if err := json.Unmarshal(wsMsg.Data, &data); err == nil && data.VehicleID != "" {
				c.Subscribe(data.VehicleID)
				log.Printf("[WS] Client %s subscribed to vehicle %s", c.ID, data.VehicleID)
			}
		case "ping":
			select {
			case c.Send <- []byte(`{"type":"pong"}`):
			default:
			}
		}
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub *WSHub
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *WSHub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleStream upgrades the connection and attaches it to the hub
func (h *WSHandler) HandleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[WS] Failed to upgrade connection: %v", err)
		return
	}

	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &Client{
		ID:        clientID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Hub:       h.hub,
		vehicleID: c.Query("vehicle_id"),
	}

	client.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	welcome := map[string]interface{}{
		"type":      "connected",
		"message":   "Connected to fleet event stream",
		"client_id": clientID,
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// Stats returns WebSocket hub statistics
func (h *WSHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": h.hub.ClientCount(),
	})
}
