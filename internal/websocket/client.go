package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/database"
	"fieldops-backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048
)

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	UserID   string
	UserRole string // "driver" or "supervisor"
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
	db       *sqlx.DB
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// LocationUpdate is the payload of a location_update message
type LocationUpdate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func NewClient(userID, userRole string, conn *websocket.Conn, hub *Hub, db *sqlx.DB) *Client {
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserRole: userRole,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		db:       db,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.markAsDisconnected()
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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		switch msg.Type {
		case "ping":
			c.reply(Outgoing{Type: "pong", Data: map[string]int64{"timestamp": time.Now().Unix()}})
		case "location_update":
			c.handleLocationUpdate(msg.Data)
		default:
			log.Printf("⚠️  Ignoring %q message from %s", msg.Type, c.UserID)
		}
	}
}

// WritePump delivers queued messages one frame each and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel: replaced by a newer connection or shutting down
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// reply queues a message for this client only, dropping it if the buffer is full
func (c *Client) reply(msg Outgoing) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("❌ Failed to encode %s reply: %v", msg.Type, err)
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// ParseLocationUpdate decodes and range-checks a location_update payload
func ParseLocationUpdate(driverID string, raw json.RawMessage) (*models.DriverLocation, error) {
	var u LocationUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("invalid location payload: %w", err)
	}
	if u.Latitude == nil || u.Longitude == nil {
		return nil, fmt.Errorf("latitude and longitude are required")
	}
	if *u.Latitude < -90 || *u.Latitude > 90 || *u.Longitude < -180 || *u.Longitude > 180 {
		return nil, fmt.Errorf("coordinates out of range: (%f, %f)", *u.Latitude, *u.Longitude)
	}
	return &models.DriverLocation{
		DriverID:  driverID,
		Latitude:  *u.Latitude,
		Longitude: *u.Longitude,
		Heading:   u.Heading,
		Speed:     u.Speed,
		Accuracy:  u.Accuracy,
		Timestamp: u.Timestamp,
	}, nil
}

// handleLocationUpdate stores a driver's position and relays it to supervisors
func (c *Client) handleLocationUpdate(raw json.RawMessage) {
	if c.UserRole != models.RoleDriver {
		return
	}

	loc, err := ParseLocationUpdate(c.UserID, raw)
	if err != nil {
		log.Printf("❌ Rejected location_update from %s: %v", c.UserID, err)
		c.reply(Outgoing{Type: MessageError, Data: map[string]string{"error": err.Error()}})
		return
	}

	if err := database.UpsertDriverLocation(c.db, loc, time.Now().Unix()); err != nil {
		log.Printf("❌ Error saving location to database: %v", err)
		return
	}

	c.hub.BroadcastToRole(models.RoleSupervisor, Outgoing{Type: MessageLocationUpdate, Data: loc})
}

// markAsDisconnected keeps the driver's last position but flags them offline
func (c *Client) markAsDisconnected() {
	if c.UserRole != models.RoleDriver {
		return
	}

	if err := database.MarkDriverDisconnected(c.db, c.UserID); err != nil {
		log.Printf("❌ Error marking driver as disconnected: %v", err)
		return
	}

	log.Printf("🔴 Driver %s marked as disconnected (last position preserved)", c.UserID)
}
