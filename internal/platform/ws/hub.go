// Package ws relays reconciled dashboard updates to board clients over
// WebSockets. Clients subscribe to encounter-id topics; every applied stream
// event is re-broadcast to the subscribers of that encounter.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// DashboardEvent is one update pushed to board clients. Data carries the
// full reconciled dashboard after the event was applied.
type DashboardEvent struct {
	Type        string          `json:"type"`
	EncounterID string          `json:"encounter_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// subscribeMessage is the only inbound client message: topic management.
type subscribeMessage struct {
	Action       string   `json:"action"`
	EncounterIDs []string `json:"encounter_ids"`
}

// client is one connected board viewer.
type client struct {
	id     string
	topics map[string]struct{}
	send   chan []byte
}

// Hub tracks connected board clients and their encounter subscriptions.
type Hub struct {
	mu      sync.RWMutex
	byTopic map[string]map[*client]struct{}
	all     map[*client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		byTopic: make(map[string]map[*client]struct{}),
		all:     make(map[*client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[c] = struct{}{}
	for topic := range c.topics {
		h.addTopicLocked(topic, c)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; !ok {
		return
	}
	for topic := range c.topics {
		h.dropTopicLocked(topic, c)
	}
	delete(h.all, c)
	close(c.send)
}

func (h *Hub) addTopicLocked(topic string, c *client) {
	if h.byTopic[topic] == nil {
		h.byTopic[topic] = make(map[*client]struct{})
	}
	h.byTopic[topic][c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) dropTopicLocked(topic string, c *client) {
	if subs, ok := h.byTopic[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.byTopic, topic)
		}
	}
	delete(c.topics, topic)
}

// subscribe and unsubscribe handle dynamic topic changes from a connected
// client.
func (h *Hub) subscribe(c *client, encounterIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range encounterIDs {
		h.addTopicLocked(id, c)
	}
}

func (h *Hub) unsubscribe(c *client, encounterIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range encounterIDs {
		h.dropTopicLocked(id, c)
	}
}

// Broadcast sends an event to every client subscribed to its encounter. A
// client whose send buffer is full misses the event rather than stalling
// the broadcaster; the next event carries the full state anyway.
func (h *Hub) Broadcast(event DashboardEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal dashboard event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.byTopic[event.EncounterID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event DashboardEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal dashboard event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.all {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients watching one encounter.
func (h *Hub) TopicCount(encounterID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[encounterID])
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades board clients to WebSocket and pumps hub broadcasts to
// them.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (wh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wh.Connect)
}

// Connect upgrades the request. An optional ?encounter_id= query parameter
// seeds the initial subscription; further changes arrive as subscribe and
// unsubscribe messages.
func (wh *Handler) Connect(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		id:     uuid.NewString(),
		topics: make(map[string]struct{}),
		send:   make(chan []byte, 64),
	}
	if id := c.QueryParam("encounter_id"); id != "" {
		cl.topics[id] = struct{}{}
	}

	wh.hub.register(cl)

	go wh.writePump(cl, conn)
	go wh.readPump(cl, conn)

	return nil
}

func (wh *Handler) readPump(cl *client, conn *gorillaws.Conn) {
	defer func() {
		wh.hub.unregister(cl)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			wh.hub.subscribe(cl, msg.EncounterIDs)
		case "unsubscribe":
			wh.hub.unsubscribe(cl, msg.EncounterIDs)
		}
	}
}

func (wh *Handler) writePump(cl *client, conn *gorillaws.Conn) {
	defer conn.Close()

	for msg := range cl.send {
		if err := conn.WriteMessage(gorillaws.TextMessage, msg); err != nil {
			return
		}
	}
}
