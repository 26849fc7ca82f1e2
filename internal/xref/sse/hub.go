package sse

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// 事件类型
const (
	EventImportProgress = "import_progress"
	EventBOMProgress    = "bom_progress"
)

// EventTypes lists every event the engine publishes.
var EventTypes = []string{EventImportProgress, EventBOMProgress}

// Event represents a Server-Sent Event. Subject is the import batch or project it concerns.
type Event struct {
	EventType string `json:"event"`
	Subject   string `json:"subject,omitempty"`
	Data      string `json:"data"`
}

// Filter selects the events a client receives. Zero value accepts everything.
type Filter struct {
	Types   map[string]bool
	Subject string
}

// ParseFilter builds a filter from a comma separated type list and an optional subject.
func ParseFilter(types, subject string) (Filter, error) {
	f := Filter{Subject: strings.TrimSpace(subject)}
	for _, t := range strings.Split(types, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !knownType(t) {
			return Filter{}, fmt.Errorf("unknown event type: %s", t)
		}
		if f.Types == nil {
			f.Types = make(map[string]bool)
		}
		f.Types[t] = true
	}
	return f, nil
}

func knownType(t string) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Match reports whether the event passes the filter.
func (f Filter) Match(e Event) bool {
	if len(f.Types) > 0 && !f.Types[e.EventType] {
		return false
	}
	return f.Subject == "" || f.Subject == e.Subject
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Filter Filter
	Events chan Event
}

// Progress is the payload of import_progress and bom_progress events.
type Progress struct {
	BatchID   string `json:"batch_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Stage     string `json:"stage"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

func (p Progress) subject() string {
	if p.BatchID != "" {
		return p.BatchID
	}
	return p.ProjectID
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.String("subject", client.Filter.Subject),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToUser 给特定用户发送事件（按订阅过滤）
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID != userID || !client.Filter.Match(event) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

// PublishProgress sends a progress event to every matching stream the user has open.
func (h *Hub) PublishProgress(userID, eventType string, p Progress) {
	if userID == "" {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	h.SendToUser(userID, Event{EventType: eventType, Subject: p.subject(), Data: string(data)})
}
