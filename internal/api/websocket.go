package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tracex/risk-engine/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS layer
	},
}

// Hub maintains the set of subscribed websocket clients and pushes risk
// alerts to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline keeps one stuck client from hanging the hub.
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Stream] write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the connection and registers the client.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Stream] failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("[Stream] client connected, total %d", len(h.clients))

	// The stream is push-only, but reads are needed to notice disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("[Stream] client disconnected, total %d", len(h.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[Stream] read error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast pushes raw bytes to every subscriber.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// BroadcastRiskAlert pushes a high or critical analysis outcome to the
// stream. Lower levels are not alert-worthy.
func (h *Hub) BroadcastRiskAlert(result *models.AddressAnalysisResult) {
	if result.RiskLevel != "high" && result.RiskLevel != "critical" {
		return
	}
	payload, err := json.Marshal(gin.H{
		"type":       "risk_alert",
		"address":    result.Address,
		"chain":      result.Chain,
		"risk_score": result.RiskScore,
		"risk_level": result.RiskLevel,
		"risk_tags":  result.RiskTags,
	})
	if err != nil {
		return
	}
	h.Broadcast(payload)
	log.Printf("[Alert] %s risk on %s (score %d)", result.RiskLevel, result.Address, result.RiskScore)
}
