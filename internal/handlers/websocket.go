package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/audiofin/fincast/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the wire envelope for pushed events
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler pushes episode lifecycle events to connected clients.
// Clients that miss events fall back to polling the progress endpoint.
type WebSocketHandler struct {
	logger         arbor.ILogger
	clients        map[*websocket.Conn]bool
	clientMutex    map[*websocket.Conn]*sync.Mutex
	mu             sync.RWMutex
	eventService   interfaces.EventService
	stageThrottler *rate.Limiter // Rate limiter for episode_stage events
}

// NewWebSocketHandler creates the handler and subscribes it to episode
// lifecycle events. Stage events are throttled; terminal events always
// go through.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:         logger,
		clients:        make(map[*websocket.Conn]bool),
		clientMutex:    make(map[*websocket.Conn]*sync.Mutex),
		eventService:   eventService,
		stageThrottler: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}

	if eventService != nil {
		h.subscribeToEpisodeEvents()
	}

	return h
}

func (h *WebSocketHandler) subscribeToEpisodeEvents() {
	for _, eventType := range []interfaces.EventType{
		interfaces.EventEpisodeCreated,
		interfaces.EventEpisodeStage,
		interfaces.EventEpisodeCompleted,
		interfaces.EventEpisodeFailed,
	} {
		et := eventType
		if err := h.eventService.Subscribe(et, func(ctx context.Context, event interfaces.Event) error {
			h.broadcastEvent(event)
			return nil
		}); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(et)).Msg("Failed to subscribe WebSocket handler")
		}
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

func (h *WebSocketHandler) broadcastEvent(event interfaces.Event) {
	if event.Type == interfaces.EventEpisodeStage && !h.stageThrottler.Allow() {
		return
	}

	msg := WSMessage{
		Type:    string(event.Type),
		Payload: event.Payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send event to WebSocket client")
		}
	}
}
