package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/validation"
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu             sync.RWMutex
	installationID string
}

type IncomingMessage struct {
	Type           string `json:"type"`
	InstallationID string `json:"installation_id,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, installationID string) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, hub.settings.ClientBuffer),
		installationID: installationID,
	}
}

// wants reports whether a message for installationID should reach c. An
// empty id on either side matches everything.
func (c *Client) wants(installationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.installationID == "" || installationID == "" || c.installationID == installationID
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	s := c.hub.settings
	c.conn.SetReadLimit(s.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.PongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("WebSocket error: %v", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.handleMessage(&msg)
		}
	}
}

func (c *Client) WritePump() {
	s := c.hub.settings
	ticker := time.NewTicker(s.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *IncomingMessage) {
	switch msg.Type {
	case "subscribe":
		if err := validation.ValidateInstallationID(msg.InstallationID); err != nil {
			c.confirm("rejected", "")
			return
		}
		c.mu.Lock()
		c.installationID = msg.InstallationID
		c.mu.Unlock()
		logger.WithInstallation(msg.InstallationID).Info("WebSocket client subscribed")
		c.confirm("subscribed", msg.InstallationID)
	case "unsubscribe":
		c.mu.Lock()
		old := c.installationID
		c.installationID = ""
		c.mu.Unlock()
		c.confirm("unsubscribed", old)
	}
}

func (c *Client) confirm(action, installationID string) {
	data, err := json.Marshal(OutgoingMessage{
		Type:           MessageTypeSubscription,
		InstallationID: installationID,
		Timestamp:      time.Now().UTC(),
		Data:           gin.H{"action": action},
	})
	if err != nil {
		logger.Errorf("Failed to marshal confirmation: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("Client send channel full, dropping confirmation")
	}
}

// ServeWebSocket upgrades the request and attaches the connection to hub.
// The installation_id query parameter pre-subscribes the client.
func ServeWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  hub.settings.ReadBufferSize,
		WriteBufferSize: hub.settings.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(c *gin.Context) {
		if hub.Full() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many websocket connections"})
			return
		}

		id := c.Query("installation_id")
		if id != "" {
			if err := validation.ValidateInstallationID(id); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(hub, conn, id)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
