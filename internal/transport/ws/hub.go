package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Server-initiated broadcast types
const (
	MsgSessionState     MessageType = "session:state"
	MsgSessionOperation MessageType = "session:operation"
	MsgSessionEnded     MessageType = "session:ended"
	MsgSessionLeave     MessageType = "session:leave"
	MsgChatMessage      MessageType = "session:chat:message"
	MsgAck              MessageType = "ack"
)

// Client-initiated event types
const (
	EvtJoin      MessageType = "session:join"
	EvtOperation MessageType = "session:operation"
	EvtLeave     MessageType = "session:leave"
	EvtPropose   MessageType = "session:question:propose"
	EvtRespond   MessageType = "session:question:respond"
	EvtChat      MessageType = "session:chat:message"
	EvtEnd       MessageType = "session:end"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection represents one socket in a session room. A user may hold
// several at once (multiple tabs).
type Connection struct {
	ID        string
	SessionID string
	UserID    string
	Username  string
	Send      chan []byte

	closeOnce sync.Once
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

type broadcastMessage struct {
	sessionID string
	message   *Message
}

// command serializes fan-out and room teardown through one loop so a
// disconnect never outruns the broadcast that announced it.
type command struct {
	broadcast  *broadcastMessage
	disconnect string
}

// Hub manages WebSocket connections for session rooms, keyed
// sessionID -> userID -> socket set. It implements service.Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]map[*Connection]bool

	commands chan command
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		rooms:    make(map[string]map[string]map[*Connection]bool),
		commands: make(chan command, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.commands {
		if cmd.broadcast != nil {
			h.fanOut(cmd.broadcast)
		}
		if cmd.disconnect != "" {
			h.teardownRoom(cmd.disconnect)
		}
	}
}

func (h *Hub) fanOut(msg *broadcastMessage) {
	data, err := json.Marshal(msg.message)
	if err != nil {
		log.Printf("[hub] failed to marshal %s broadcast: %v", msg.message.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.rooms[msg.sessionID] {
		for conn := range conns {
			select {
			case conn.Send <- data:
			default:
				// Drop message if buffer full
			}
		}
	}
}

func (h *Hub) teardownRoom(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.rooms[sessionID] {
		for conn := range conns {
			conn.closeSend()
		}
	}
	delete(h.rooms, sessionID)
	log.Printf("[hub] room %s disconnected", sessionID)
}

// Register adds a connection to its session room.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[conn.SessionID] == nil {
		h.rooms[conn.SessionID] = make(map[string]map[*Connection]bool)
	}
	if h.rooms[conn.SessionID][conn.UserID] == nil {
		h.rooms[conn.SessionID][conn.UserID] = make(map[*Connection]bool)
	}
	h.rooms[conn.SessionID][conn.UserID][conn] = true
	log.Printf("[hub] user %s connected to session %s (conn %s)", conn.UserID, conn.SessionID, conn.ID)
}

// Unregister removes a connection and returns how many sockets the same user
// still holds in the room. The count drives implicit-leave handling: a bare
// close only counts as a leave once the user's last socket is gone.
func (h *Hub) Unregister(conn *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	users, ok := h.rooms[conn.SessionID]
	if !ok {
		return 0
	}
	conns, ok := users[conn.UserID]
	if !ok || !conns[conn] {
		return len(conns)
	}

	delete(conns, conn)
	conn.closeSend()
	log.Printf("[hub] user %s disconnected from session %s (conn %s)", conn.UserID, conn.SessionID, conn.ID)

	if len(conns) == 0 {
		delete(users, conn.UserID)
	}
	if len(users) == 0 {
		delete(h.rooms, conn.SessionID)
	}
	return len(conns)
}

// UserSocketCount reports how many live sockets a user holds in a room.
func (h *Hub) UserSocketCount(sessionID, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID][userID])
}

// BroadcastToRoom sends a message to every socket in a session's room
// (implements service.Broadcaster).
func (h *Hub) BroadcastToRoom(sessionID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[hub] failed to marshal %s payload: %v", msgType, err)
		return
	}
	h.commands <- command{broadcast: &broadcastMessage{
		sessionID: sessionID,
		message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}}
}

// DisconnectRoom forcibly drops every remaining socket in a session's room
// (implements service.Broadcaster). Queued behind pending broadcasts so the
// final session:ended still goes out.
func (h *Hub) DisconnectRoom(sessionID string) {
	h.commands <- command{disconnect: sessionID}
}
