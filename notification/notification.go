// Package notification implements the engine's user-facing alert stream:
// persistence-free system events broadcast over the frontend websocket.
// Kept as an in-memory ring buffer since the control plane carries no
// database and durable notification storage is out of scope.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duneflow/perpengine/realtime"
)

// Type tags a Notification's severity/category.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Warning Type = "warning"
	Error   Type = "error"
	Trade   Type = "trade"
)

// Notification is one system event or alert surfaced to the user.
type Notification struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"createdAt"`
	IsRead    bool                   `json:"isRead"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// historyCapacity bounds the in-memory ring: older notifications are
// dropped once the store holds this many, since nothing here is durable
// across a restart.
const historyCapacity = 500

// broadcaster is the narrow seam notification needs from realtime, letting
// tests substitute a fake without pulling in gorilla/websocket.
type broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// Manager owns the notification history and fans new entries out over the
// websocket hub.
type Manager struct {
	mu        sync.Mutex
	history   []Notification
	byID      map[string]int // id -> index into history, for MarkAsRead
	wsManager broadcaster
}

// NewManager builds a Manager. wsManager may be nil, in which case
// notifications are recorded but never broadcast (useful in tests).
func NewManager(wsManager *realtime.WebSocketManager) *Manager {
	var b broadcaster
	if wsManager != nil {
		b = wsManager
	}
	return &Manager{byID: make(map[string]int), wsManager: b}
}

// Send records and broadcasts a new notification, returning its ID.
func (m *Manager) Send(notifType Type, title, message string, metadata map[string]interface{}) string {
	n := Notification{
		ID:        uuid.New().String(),
		Type:      notifType,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}

	m.mu.Lock()
	m.history = append(m.history, n)
	if len(m.history) > historyCapacity {
		m.history = m.history[len(m.history)-historyCapacity:]
		m.byID = make(map[string]int, len(m.history))
		for i, e := range m.history {
			m.byID[e.ID] = i
		}
	} else {
		m.byID[n.ID] = len(m.history) - 1
	}
	m.mu.Unlock()

	if m.wsManager != nil {
		m.wsManager.Broadcast("notification", n)
	}
	return n.ID
}

// GetHistory returns up to limit notifications starting at offset, most
// recent first.
func (m *Manager) GetHistory(limit, offset int) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.history)
	out := make([]Notification, 0, limit)
	for i := n - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out
}

// MarkAsRead marks one notification read by ID. It is a no-op if the ID is
// unknown (e.g. already evicted from the ring).
func (m *Manager) MarkAsRead(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.byID[id]; ok {
		m.history[idx].IsRead = true
	}
}

// MarkAllAsRead marks every current notification read.
func (m *Manager) MarkAllAsRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.history {
		m.history[i].IsRead = true
	}
}

func (m *Manager) Info(title, message string) string {
	return m.Send(Info, title, message, nil)
}

func (m *Manager) SuccessMsg(title, message string) string {
	return m.Send(Success, title, message, nil)
}

func (m *Manager) WarningMsg(title, message string) string {
	return m.Send(Warning, title, message, nil)
}

func (m *Manager) ErrorMsg(title, message string) string {
	return m.Send(Error, title, message, nil)
}
