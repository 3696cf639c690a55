package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"caotun-spin-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteTimeout = 10 * time.Second
	notifyTimeout  = 30 * time.Second
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub fans the live meal period out to connected clients
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
	resolver    *MealPeriodResolver
	notifier    MealPeriodNotifier

	tickMu     sync.Mutex
	started    bool
	lastPeriod string
	lastDate   string

	notifies sync.WaitGroup
}

// NewWSHub creates a new WebSocket hub. notifier may be nil.
func NewWSHub(resolver *MealPeriodResolver, notifier MealPeriodNotifier) *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
		resolver:    resolver,
		notifier:    notifier,
	}
}

// Register adds a connection and sends it the current period. It returns the connection id.
func (h *WSHub) Register(conn *websocket.Conn) (string, error) {
	id := uuid.New().String()
	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.connections[id] = client
	h.mu.Unlock()
	metrics.MealPeriodClients.Inc()

	log.Info().Str("conn_id", id).Msg("WebSocket connection registered")

	data, err := json.Marshal(h.statusMessage(h.resolver.Status()))
	if err != nil {
		return id, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := client.write(data); err != nil {
		h.Unregister(id)
		return id, fmt.Errorf("failed to send message: %w", err)
	}
	return id, nil
}

// Unregister removes a WebSocket connection
func (h *WSHub) Unregister(id string) {
	h.mu.Lock()
	client, exists := h.connections[id]
	delete(h.connections, id)
	h.mu.Unlock()

	if exists {
		client.conn.Close()
		metrics.MealPeriodClients.Dec()
		log.Info().Str("conn_id", id).Msg("WebSocket connection unregistered")
	}
}

// Count returns the number of open connections
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast sends a message to every connection, dropping the ones that fail
func (h *WSHub) Broadcast(message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.RLock()
	clients := make(map[string]*wsClient, len(h.connections))
	for id, c := range h.connections {
		clients[id] = c
	}
	h.mu.RUnlock()

	for id, c := range clients {
		if err := c.write(data); err != nil {
			log.Error().Err(err).Str("conn_id", id).Msg("Failed to send message")
			h.Unregister(id)
		}
	}
	return nil
}

// Tick re-resolves the meal period and broadcasts when it changed since the last tick.
// The first tick only records the state.
func (h *WSHub) Tick(ctx context.Context) {
	status := h.resolver.Status()

	h.tickMu.Lock()
	changed := h.started && (status.Period.Key != h.lastPeriod || status.Date != h.lastDate)
	opened := changed && status.Active && status.Period.Key != h.lastPeriod
	h.started = true
	h.lastPeriod = status.Period.Key
	h.lastDate = status.Date
	h.tickMu.Unlock()

	if !changed {
		return
	}

	log.Info().
		Str("meal_period", status.Period.Key).
		Bool("active", status.Active).
		Msg("Meal period changed")

	if err := h.Broadcast(h.statusMessage(status)); err != nil {
		log.Error().Err(err).Msg("Failed to broadcast meal period")
	}

	if opened && h.notifier != nil {
		h.notifies.Add(1)
		go func() {
			defer h.notifies.Done()

			notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
			defer cancel()
			if err := h.notifier.NotifyMealPeriodOpened(notifyCtx, status.Period); err != nil {
				log.Error().Err(err).Str("meal_period", status.Period.Key).Msg("Failed to notify meal period")
			}
		}()
	}
}

// Run ticks once per second until ctx is done, then closes every connection and waits
// for pending push notifications
func (h *WSHub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.notifies.Wait()
			return
		case <-ticker.C:
			h.Tick(ctx)
		}
	}
}

func (h *WSHub) closeAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Unregister(id)
	}
}

func (h *WSHub) statusMessage(status MealPeriodStatus) WSMessage {
	return WSMessage{
		Type:      "meal_period",
		Timestamp: status.ServerTime.UnixMilli(),
		Data:      status,
	}
}
