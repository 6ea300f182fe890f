package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"fieldops-backend/internal/models"
)

// Outgoing message types
const (
	MessageDomainEvent     = "domain_event"
	MessageTaskUpdated     = "task_updated"
	MessageLocationUpdate  = "driver_location_update"
	MessageForgottenStatus = "forgotten_checkout"
	MessageError           = "error"
)

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients (userID -> Client)
	clients map[string]*Client

	// Inbound messages for a single user
	broadcast chan *Message

	register   chan *Client
	unregister chan *Client

	// Closed once Run returns
	done chan struct{}

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// Message represents a message to deliver to a specific user
type Message struct {
	UserID string
	Data   interface{}
}

// Outgoing is the frame every pushed message is wrapped in
type Outgoing struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			log.Println("🔴 [WEBSOCKET] Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.UserID]; ok && prev != client {
				// newest connection wins
				close(prev.send)
			}
			h.clients[client.UserID] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("✅ [WEBSOCKET] Client CONNECTED: %s (%s), total %d", client.UserID, client.UserRole, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
				close(client.send)
				log.Printf("🔴 [WEBSOCKET] Client DISCONNECTED: %s (%s), remaining %d", client.UserID, client.UserRole, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message.Data)
			if err != nil {
				log.Printf("❌ Failed to marshal message: %v", err)
				continue
			}

			h.mu.Lock()
			if client, ok := h.clients[message.UserID]; ok {
				select {
				case client.send <- data:
				default:
					// Client buffer full, disconnect
					close(client.send)
					delete(h.clients, client.UserID)
					log.Printf("⚠️ Client buffer full, disconnecting: %s", message.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToUser queues a message for a specific user.
// The publishing methods are no-ops on a nil Hub so hosts without realtime can skip it.
func (h *Hub) BroadcastToUser(userID string, data interface{}) {
	if h == nil {
		return
	}
	select {
	case h.broadcast <- &Message{UserID: userID, Data: data}:
	case <-h.done:
	}
}

// BroadcastToRole sends a message to all users with a specific role, skipping full buffers
func (h *Hub) BroadcastToRole(role string, data interface{}) {
	if h == nil {
		return
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserRole == role {
			select {
			case client.send <- dataBytes:
			default:
			}
		}
	}
}

// PublishEvents fans engine events out to supervisors and to the driver they concern
func (h *Hub) PublishEvents(events []models.Event) {
	if h == nil {
		return
	}
	for _, e := range events {
		env, err := models.NewEnvelope(e)
		if err != nil {
			log.Printf("❌ Failed to encode %s event: %v", e.Type(), err)
			continue
		}
		msg := Outgoing{Type: MessageDomainEvent, Data: env}
		h.BroadcastToRole(models.RoleSupervisor, msg)
		if env.DriverID != nil {
			h.BroadcastToUser(*env.DriverID, msg)
		}
	}
}

// PublishTask pushes the latest task document to its driver
func (h *Hub) PublishTask(task models.TransportTask) {
	h.BroadcastToUser(task.DriverID, Outgoing{Type: MessageTaskUpdated, Data: task})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsUserConnected checks if a user is currently connected
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}
