package ws

import (
	"codepair/internal/apperr"
	"codepair/internal/model"
	"codepair/internal/service"
	"codepair/internal/validator"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // operations carry the full document text

	dispatchTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// clientMessage is the inbound envelope. ID correlates the acknowledgement,
// emulating request/response over the duplex channel.
type clientMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ackPayload struct {
	ID    string        `json:"id,omitempty"`
	OK    bool          `json:"ok"`
	Data  interface{}   `json:"data,omitempty"`
	Error *apperr.Error `json:"error,omitempty"`
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	sessionSvc *service.SessionService
	verifier   service.TokenVerifier
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, sessionSvc *service.SessionService, verifier service.TokenVerifier) *Handler {
	return &Handler{
		hub:        hub,
		sessionSvc: sessionSvc,
		verifier:   verifier,
	}
}

// SessionWS handles GET /v1/ws/sessions/{id}. Authentication and room
// membership are checked once, at connect time; a non-participant never gets
// a socket in the room, so broadcasts stay between the two participants.
func (h *Handler) SessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := h.verifier.VerifyToken(r.Context(), token)
	if err != nil {
		log.Printf("[ws] token verification error: %v", err)
		http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	view, err := h.sessionSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		appErr := apperr.From(err)
		if appErr.Status == http.StatusInternalServerError {
			log.Printf("[ws] session lookup failed for %s: %v", sessionID, err)
		}
		http.Error(w, appErr.Message, appErr.Status)
		return
	}

	member := false
	for _, p := range view.Participants {
		if p.UserID == user.ID {
			member = true
			break
		}
	}
	if !member {
		http.Error(w, "not a session participant", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		Send:      make(chan []byte, 256),
	}

	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		remaining := h.hub.Unregister(conn)
		wsConn.Close()
		if remaining == 0 {
			h.implicitLeave(conn)
		}
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.ack(conn, "", nil, apperr.Validation([]apperr.FieldError{{Field: "message", Message: "malformed event envelope"}}))
			continue
		}

		result, err := h.dispatch(conn, &msg)
		h.ack(conn, msg.ID, result, err)
	}
}

// dispatch routes one client event into the coordinator. The socket's
// verified identity always wins over whatever userId the payload claims.
func (h *Handler) dispatch(conn *Connection, msg *clientMessage) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch msg.Type {
	case EvtJoin:
		return h.sessionSvc.JoinSession(ctx, conn.SessionID, conn.UserID)

	case EvtOperation:
		var op model.Operation
		if err := json.Unmarshal(msg.Payload, &op); err != nil {
			return nil, apperr.Validation([]apperr.FieldError{{Field: "payload", Message: "malformed operation payload"}})
		}
		op.UserID = conn.UserID
		return h.sessionSvc.RecordOperation(ctx, conn.SessionID, &op)

	case EvtLeave:
		var req validator.LeaveRequest
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return nil, apperr.Validation([]apperr.FieldError{{Field: "payload", Message: "malformed leave payload"}})
			}
		}
		req.UserID = conn.UserID
		return h.sessionSvc.LeaveSession(ctx, conn.SessionID, &req)

	case EvtPropose:
		var req validator.ProposeQuestionChangeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, apperr.Validation([]apperr.FieldError{{Field: "payload", Message: "malformed proposal payload"}})
		}
		req.UserID = conn.UserID
		return h.sessionSvc.ProposeQuestionChange(ctx, conn.SessionID, &req)

	case EvtRespond:
		var req validator.RespondQuestionChangeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, apperr.Validation([]apperr.FieldError{{Field: "payload", Message: "malformed response payload"}})
		}
		req.UserID = conn.UserID
		return h.sessionSvc.RespondToQuestionChange(ctx, conn.SessionID, &req)

	case EvtEnd:
		var req validator.EndRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, apperr.Validation([]apperr.FieldError{{Field: "payload", Message: "malformed end payload"}})
		}
		req.UserID = conn.UserID
		return h.sessionSvc.RequestSessionEnd(ctx, conn.SessionID, &req)

	case EvtChat:
		return h.relayChat(conn, msg.Payload)

	default:
		return nil, apperr.Validation([]apperr.FieldError{{Field: "type", Message: "unknown event type"}})
	}
}

type chatPayload struct {
	Message string `json:"message"`
}

type chatMessage struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
	SentAt      string `json:"sentAt"`
}

// relayChat fans a chat line out to the room. Chat is transient: never
// persisted, only relayed.
func (h *Handler) relayChat(conn *Connection, payload json.RawMessage) (interface{}, error) {
	var req chatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, apperr.Validation([]apperr.FieldError{{Field: "payload", Message: "malformed chat payload"}})
	}
	if req.Message == "" {
		return nil, apperr.Validation([]apperr.FieldError{{Field: "message", Message: "message must not be empty"}})
	}

	out := &chatMessage{
		ID:          uuid.New().String(),
		UserID:      conn.UserID,
		DisplayName: conn.Username,
		Message:     req.Message,
		SentAt:      time.Now().UTC().Format(time.RFC3339),
	}
	h.hub.BroadcastToRoom(conn.SessionID, string(MsgChatMessage), out)
	return out, nil
}

// ack reports the outcome of one client event over the same socket. Errors
// outside the taxonomy are logged here and reported generically so internal
// details never reach the client.
func (h *Handler) ack(conn *Connection, id string, data interface{}, err error) {
	payload := ackPayload{ID: id, OK: err == nil, Data: data}
	if err != nil {
		appErr := apperr.From(err)
		if appErr.Status == http.StatusInternalServerError {
			log.Printf("[ws] internal error on %s event: %v", conn.SessionID, err)
		}
		payload.Error = appErr
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[ws] failed to marshal ack: %v", err)
		return
	}
	msg, err := json.Marshal(&Message{Type: MsgAck, Payload: raw})
	if err != nil {
		return
	}

	select {
	case conn.Send <- msg:
	default:
	}
}

// implicitLeave treats a bare socket close as a non-terminating leave once
// the user's last socket is gone. An already-ended or vanished session is
// not an error here.
func (h *Handler) implicitLeave(conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	_, err := h.sessionSvc.LeaveSession(ctx, conn.SessionID, &validator.LeaveRequest{
		UserID: conn.UserID,
	})
	if err != nil {
		appErr := apperr.From(err)
		if appErr.Status == http.StatusInternalServerError {
			log.Printf("[ws] implicit leave failed for user %s session %s: %v", conn.UserID, conn.SessionID, err)
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
