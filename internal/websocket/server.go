package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/flightboard/pkg/logger"
)

// Message types
const (
	MessageTypeBoardUpdate  = "board_update"  // Server sends the board after each cycle
	MessageTypeBoardRequest = "board_request" // Client asks for the current board
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// MessageHandler defines the interface for handling incoming WebSocket messages
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data map[string]any) error
}

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server
	mu     sync.Mutex
	closed bool
}

// Server fans board updates out to every connected client
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	upgrader       websocket.Upgrader
	logger         *logger.Logger
	mu             sync.RWMutex
	messageHandler MessageHandler
	done           chan struct{}
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 8),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("web-socket"),
		done:   make(chan struct{}),
	}
}

// SetMessageHandler sets the handler for incoming client messages
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// ClientCount returns the number of registered clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run dispatches registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.closeSend()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.closeSend()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				if !client.SendMessage(message) {
					// Slow or closed client
					delete(s.clients, client)
					client.closeSend()
				}
			}
			s.mu.Unlock()
		}
	}
}

// HandleConnection upgrades the request and registers the client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Accepted WebSocket connection",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, sendBufferSize),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for every connected client.
// It returns false if the server has stopped.
func (s *Server) Broadcast(message *Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.broadcast <- message:
		return true
	case <-s.done:
		return false
	}
}

// readPump reads client messages until the connection fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		c.server.logger.Debug("Received WebSocket message",
			logger.String("type", message.Type),
			logger.String("client", c.conn.RemoteAddr().String()))

		if c.server.messageHandler != nil {
			if err := c.server.messageHandler.HandleMessage(c, message.Type, message.Data); err != nil {
				c.server.logger.Error("Failed to handle WebSocket message",
					logger.Error(err),
					logger.String("type", message.Type))
			}
		}
	}
}

// writePump writes queued messages to the connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(message); err != nil {
			c.server.logger.Debug("WebSocket write failed", logger.Error(err))
			return
		}
	}

	// Channel closed by the server
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// SendMessage queues a message for this client without blocking.
// It returns false if the client is closed or its buffer is full.
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
