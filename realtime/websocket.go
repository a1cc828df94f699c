// Package realtime implements the frontend websocket transport: a
// broadcast hub fed by the Bot's outbound Update stream, and per-connection
// readers that decode inbound commands into frontend.Events.
package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duneflow/perpengine/frontend"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// broadcastCapacity bounds the hub's internal queue. Once full, the
	// broadcast is lossy: a stalled connection drops future updates rather
	// than backing up every other client.
	broadcastCapacity = 128
)

// WebSocketMessage is the wire envelope every broadcast Update (and every
// decoded client command) travels in.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EventHandler receives one decoded inbound frontend.Event per client
// message. The Bot's In channel satisfies this via its own send.
type EventHandler func(frontend.Event)

// WebSocketManager owns every connected client and fans frontend.Update
// values out to all of them.
type WebSocketManager struct {
	clients    map[*websocket.Conn]chan WebSocketMessage
	broadcast  chan WebSocketMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	upgrader   websocket.Upgrader

	onEvent EventHandler
}

// NewWebSocketManager creates a new WebSocketManager. onEvent is invoked for
// every successfully decoded inbound client command; pass nil to ignore
// inbound traffic (read-only feeds).
func NewWebSocketManager(onEvent EventHandler) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]chan WebSocketMessage),
		broadcast:  make(chan WebSocketMessage, broadcastCapacity),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		onEvent:    onEvent,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run starts the manager's main loop. It never returns; run it in its own
// goroutine.
func (m *WebSocketManager) Run() {
	for {
		select {
		case conn := <-m.register:
			m.mu.Lock()
			m.clients[conn] = make(chan WebSocketMessage, broadcastCapacity)
			out := m.clients[conn]
			m.mu.Unlock()
			log.Info().Msg("websocket client connected")
			go m.writePump(conn, out)

		case conn := <-m.unregister:
			m.mu.Lock()
			if out, ok := m.clients[conn]; ok {
				delete(m.clients, conn)
				close(out)
			}
			m.mu.Unlock()

		case message := <-m.broadcast:
			m.mu.Lock()
			for _, out := range m.clients {
				select {
				case out <- message:
				default:
					// client's personal queue is full: drop this update for
					// it rather than stall every other client.
				}
			}
			m.mu.Unlock()
		}
	}
}

// writePump owns one connection's socket writes: broadcast fan-out plus the
// periodic ping. Exactly one goroutine ever writes to conn, per gorilla's
// concurrency contract.
func (m *WebSocketManager) writePump(conn *websocket.Conn, out <-chan WebSocketMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case msg, ok := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Error().Err(err).Msg("websocket write failed, closing connection")
				m.unregister <- conn
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("websocket ping failed, closing connection")
				m.unregister <- conn
				return
			}
		}
	}
}

// Broadcast enqueues an update for every connected client.
func (m *WebSocketManager) Broadcast(msgType string, payload interface{}) {
	msg := WebSocketMessage{Type: msgType, Timestamp: time.Now(), Payload: payload}
	select {
	case m.broadcast <- msg:
	default:
		log.Warn().Msg("broadcast queue full, dropping update")
	}
}

// BroadcastUpdate is a typed convenience wrapper over Broadcast for
// frontend.Update values, used by the server's Bot-update relay.
func (m *WebSocketManager) BroadcastUpdate(u frontend.Update) {
	m.Broadcast(string(u.Kind), u)
}

// HandleWebSocket upgrades the HTTP connection and starts serving it.
func (m *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket")
		return
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	m.register <- conn

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("websocket closed unexpectedly")
			}
			break
		}
		if m.onEvent == nil {
			continue
		}
		ev, err := frontend.Decode(raw)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed client command")
			continue
		}
		m.onEvent(ev)
	}
	m.unregister <- conn
}
