// Package sse provides Server-Sent Events support for real-time order updates
// and in-app notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"workorders_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventOrderChanged      EventType = "order_changed"
	EventInAppNotification EventType = "in_app_notification"
)

const clientBufferSize = 32

// Event represents an SSE event payload
type Event struct {
	Type    EventType   `json:"type"`
	OrderID string      `json:"orderId,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID string
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[string][]*client // userID -> clients
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[string][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

// removeClient unregisters a client connection. The channel is closed under
// the lock so Publish never sends on a closed channel.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Publish sends an event to every connection of one user.
func (s *Service) Publish(userID string, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[userID] {
		s.deliver(c, event)
	}
}

// Broadcast sends an event to every connected client.
func (s *Service) Broadcast(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			s.deliver(c, event)
		}
	}
}

// ConnectedUsers returns how many distinct users are connected.
func (s *Service) ConnectedUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Service) deliver(c *client, event Event) {
	select {
	case c.events <- event:
	default:
		if s.log != nil {
			s.log.Warn("sse buffer full, dropping event", "user_id", c.userID, "type", string(event.Type))
		}
	}
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: userID,
			events: make(chan Event, clientBufferSize),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[string][]*client)
}
