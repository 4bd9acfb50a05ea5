package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler broadcasts run lifecycle and progress events to connected
// UI clients. High-frequency event types can be throttled per configuration;
// a dropped event is simply not broadcast, clients catch up on the next one.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	allowedEvents    map[string]bool          // whitelist (empty = allow all)
	throttlers       map[string]*rate.Limiter // per-event-type broadcast limiters
	serverInstanceID string                   // clients use this to detect server restart
}

// WebSocketMessage is the broadcast envelope
type WebSocketMessage struct {
	Type             string      `json:"type"`
	Payload          interface{} `json:"payload,omitempty"`
	ServerInstanceID string      `json:"server_instance_id,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		allowedEvents:    make(map[string]bool),
		throttlers:       make(map[string]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Invalid throttle interval, throttling disabled for event type")
				continue
			}
			h.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
		}
	}

	if eventService != nil {
		h.subscribeToRunEvents()
	}

	return h
}

// subscribeToRunEvents wires the event bus into the broadcast path
func (h *WebSocketHandler) subscribeToRunEvents() {
	forward := func(ctx context.Context, event interfaces.Event) error {
		h.Broadcast(string(event.Type), event.Payload)
		return nil
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventRunStarted,
		interfaces.EventRunProgress,
		interfaces.EventRunCompleted,
		interfaces.EventScheduleTriggered,
		interfaces.EventStatusChanged,
	} {
		if err := h.eventService.Subscribe(eventType, forward); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket broadcaster")
		}
	}
}

// HandleWebSocket upgrades the connection and registers the client
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", clientCount).Msg("WebSocket client connected")

	// hello message carries the instance id so reconnecting clients can tell
	// a server restart from a network blip
	h.send(conn, WebSocketMessage{
		Type:             "connected",
		ServerInstanceID: h.serverInstanceID,
		Timestamp:        time.Now(),
	})

	go h.readLoop(conn)
}

// readLoop drains client frames until the connection closes
func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	delete(h.clientMutex, conn)
	clientCount := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Info().Int("clients", clientCount).Msg("WebSocket client disconnected")
}

// Broadcast sends an event to every connected client, subject to the
// whitelist and the event type's throttler
func (h *WebSocketHandler) Broadcast(eventType string, payload interface{}) {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[eventType] {
		return
	}
	if limiter, exists := h.throttlers[eventType]; exists && !limiter.Allow() {
		return
	}

	message := WebSocketMessage{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, message)
	}
}

// send writes one message to one client, serialized per connection
func (h *WebSocketHandler) send(conn *websocket.Conn, message WebSocketMessage) {
	h.mu.RLock()
	mutex, exists := h.clientMutex[conn]
	h.mu.RUnlock()
	if !exists {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	if err := conn.WriteJSON(message); err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
		go h.removeClient(conn)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
