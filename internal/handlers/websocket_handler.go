package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/amitdubeyup/jobpay-backend/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// AlertFeedHandler pushes security events (slow-request alerts, block
// events) to connected admin dashboards.
type AlertFeedHandler struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

func NewAlertFeedHandler() *AlertFeedHandler {
	return &AlertFeedHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for testing
			},
		},
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

var _ security.AlertSink = (*AlertFeedHandler)(nil)

// PublishAlert implements security.AlertSink. Non-blocking: if the hub
// is backed up the alert is dropped, the durable copy lives in Redis.
func (h *AlertFeedHandler) PublishAlert(alert security.PerformanceAlert) {
	message := map[string]interface{}{
		"type":      "performance_alert",
		"alert":     alert,
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling alert message: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
	}
}

// PublishBlockEvent notifies dashboards about a new block.
func (h *AlertFeedHandler) PublishBlockEvent(record security.BlockRecord) {
	message := map[string]interface{}{
		"type":      "ip_blocked",
		"record":    record,
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *AlertFeedHandler) HandleConnections(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer func() {
		h.unregister <- ws
		ws.Close()
	}()

	h.register <- ws
	log.Println("Alert feed client connected")

	// Clients only listen. The read loop exists to notice disconnects;
	// every write, pings included, goes through the hub so each
	// connection has exactly one writer.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertFeedHandler) RunHub() {
	log.Println("Starting alert feed hub")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					log.Printf("Error broadcasting to client: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}

		case <-ticker.C:
			for client := range h.clients {
				if err := client.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
		}
	}
}
