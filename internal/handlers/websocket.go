package handlers

import (
	"net/http"
	"time"

	"caotun-spin-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsPongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The feed carries no user data
	},
}

// WebSocketHandler serves the live meal-period feed
type WebSocketHandler struct {
	hub *services.WSHub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket handles GET /ws/meal-period
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	connID, err := h.hub.Register(conn)
	if err != nil {
		log.Error().Err(err).Str("conn_id", connID).Msg("Failed to register WebSocket connection")
		return
	}
	defer h.hub.Unregister(connID)

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// The feed is one-way; reading only detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", connID).Msg("WebSocket closed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}
