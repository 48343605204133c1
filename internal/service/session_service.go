package service

import (
	"codepair/internal/apperr"
	"codepair/internal/lock"
	"codepair/internal/model"
	"codepair/internal/repository"
	"codepair/internal/store"
	"codepair/internal/validator"
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// SessionService is the coordinator state machine: session lifecycle,
// operation application, question-change consensus, end-session consensus,
// and reconnection handling. It owns the advisory lock manager.
type SessionService struct {
	store       store.SessionStore
	locks       *lock.Manager
	users       UserClient
	questions   QuestionClient
	broadcaster Broadcaster
}

func NewSessionService(st store.SessionStore, users UserClient, questions QuestionClient) *SessionService {
	return &SessionService{
		store:     st,
		locks:     lock.NewManager(),
		users:     users,
		questions: questions,
	}
}

// SetBroadcaster injects the realtime fan-out after construction, breaking
// the cycle between the coordinator and the websocket transport.
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// OperationResult is the outcome of RecordOperation. LockConflict outcomes
// are normal results, not errors: the session is returned unmutated with
// Reason "lock_conflict".
type OperationResult struct {
	Session  *model.SessionView `json:"session"`
	Conflict bool               `json:"conflict"`
	Reason   string             `json:"reason,omitempty"`
	LockedBy string             `json:"lockedBy,omitempty"`
}

// CreateSession is called by the matchmaking collaborator. Participants must
// not already be in an active session; display names and starter code come
// from the identity and question-bank collaborators.
func (s *SessionService) CreateSession(ctx context.Context, req *validator.CreateSessionRequest) (*model.SessionView, error) {
	language, err := validator.ValidateCreateSession(req)
	if err != nil {
		return nil, err
	}

	for _, userID := range req.Participants {
		active, err := s.store.GetParticipantActiveSessions(ctx, userID)
		if err != nil {
			log.Printf("[session] active-session lookup failed for %s: %v", userID, err)
			return nil, apperr.Internal(err)
		}
		if len(active) > 0 {
			return nil, apperr.Conflict(fmt.Sprintf("user %s is already in an active session", userID))
		}
	}

	now := time.Now()
	participants := make([]model.Participant, 0, len(req.Participants))
	for _, userID := range req.Participants {
		user, err := s.users.FetchUser(ctx, userID)
		if err != nil {
			log.Printf("[session] user lookup failed for %s: %v", userID, err)
			return nil, apperr.Internal(err)
		}
		if user == nil {
			return nil, apperr.NotFound(fmt.Sprintf("user %s not found", userID))
		}
		participants = append(participants, model.Participant{
			UserID:      user.ID,
			DisplayName: user.Username,
			JoinedAt:    now,
			LastSeenAt:  now,
		})
	}

	question, err := s.questions.FetchQuestion(ctx, req.QuestionID)
	if err != nil {
		log.Printf("[session] question lookup failed for %s: %v", req.QuestionID, err)
		return nil, apperr.Internal(err)
	}
	if question == nil {
		return nil, apperr.NotFound(fmt.Sprintf("question %s not found", req.QuestionID))
	}

	session := &model.Session{
		RoomID:          generateRoomID(),
		Language:        language,
		QuestionID:      req.QuestionID,
		Code:            question.StarterCode,
		Version:         0,
		Status:          model.SessionActive,
		Participants:    participants,
		EndRequests:     []string{},
		CursorPositions: map[string]model.CursorPosition{},
	}

	if err := s.store.Create(ctx, session); err != nil {
		log.Printf("[session] create failed: %v", err)
		return nil, apperr.Internal(err)
	}

	return session.Sanitize(), nil
}

// GetSession resolves lazy expiry before returning the sanitized view.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*model.SessionView, error) {
	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Sanitize(), nil
}

// JoinSession reconnects a listed participant. Membership is fixed at
// creation; anyone else is rejected outright.
func (s *SessionService) JoinSession(ctx context.Context, sessionID, userID string) (*model.SessionView, error) {
	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := session.ParticipantIndex(userID)
	if i < 0 {
		return nil, apperr.Forbidden("caller is not a session participant")
	}

	now := time.Now()
	field := func(name string) string { return fmt.Sprintf("participants.%d.%s", i, name) }
	updated, err := s.applyUpdate(ctx, sessionID, repository.Update{
		Set: bson.M{
			"status":            model.SessionActive,
			field("connected"):  true,
			field("lastSeenAt"): now,
		},
		Unset: bson.M{
			field("disconnectedAt"): "",
			field("reconnectBy"):    "",
		},
	})
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	s.broadcast(sessionID, "session:state", view)
	return view, nil
}

// RecordOperation applies one edit or presence update. The lock attempt is
// one-shot; a failure returns a conflict result without touching the session.
// The document is overwritten last-write-wins even when the declared base
// version is stale; the mismatch only flags the result.
func (s *SessionService) RecordOperation(ctx context.Context, sessionID string, op *model.Operation) (*OperationResult, error) {
	if err := validator.ValidateOperation(op); err != nil {
		return nil, err
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := session.ParticipantIndex(op.UserID)
	if i < 0 {
		return nil, apperr.Forbidden("caller is not a session participant")
	}

	acquired := s.locks.Acquire(sessionID, op.UserID, op.Range, time.Now())
	if !acquired.Granted {
		return &OperationResult{
			Session:  session.Sanitize(),
			Conflict: true,
			Reason:   "lock_conflict",
			LockedBy: acquired.LockedBy,
		}, nil
	}
	defer s.locks.Release(sessionID, op.UserID, op.Range)

	now := time.Now()
	conflict := op.Version != session.Version
	newVersion := session.Version + 1

	field := func(name string) string { return fmt.Sprintf("participants.%d.%s", i, name) }
	update := repository.Update{
		Set: bson.M{
			field("connected"):  true,
			field("lastSeenAt"): now,
			"lastOperation": model.LastOperation{
				UserID:    op.UserID,
				Type:      op.Type,
				Version:   newVersion,
				Timestamp: now,
				Conflict:  conflict,
			},
		},
		Inc: bson.M{"version": 1},
	}
	if op.Type.MutatesCode() {
		update.Set["code"] = *op.Content
	}
	if op.Cursor != nil {
		update.Set["cursorPositions."+op.UserID] = model.CursorPosition{
			Line:      op.Cursor.Line,
			Column:    op.Cursor.Column,
			UpdatedAt: now,
		}
	}
	if conflict {
		update.Set["lastConflictAt"] = now
	}

	updated, err := s.applyUpdate(ctx, sessionID, update)
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	s.broadcast(sessionID, "session:operation", map[string]interface{}{
		"userId":   op.UserID,
		"type":     op.Type,
		"version":  updated.Version,
		"conflict": conflict,
	})
	s.broadcast(sessionID, "session:state", view)

	return &OperationResult{Session: view, Conflict: conflict}, nil
}

// LeaveSession disconnects a participant. terminateForAll ends the session
// outright; otherwise the leaver gets a reconnect window, and the session
// ends anyway once nobody is left connected.
func (s *SessionService) LeaveSession(ctx context.Context, sessionID string, req *validator.LeaveRequest) (*model.SessionView, error) {
	if err := validator.ValidateLeave(req); err != nil {
		return nil, err
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := session.ParticipantIndex(req.UserID)
	if i < 0 {
		return nil, apperr.Forbidden("caller is not a session participant")
	}

	now := time.Now()

	if req.TerminateForAll {
		updated, err := s.applyUpdate(ctx, sessionID, repository.Update{
			Set: bson.M{"status": model.SessionEnded},
		})
		if err != nil {
			return nil, err
		}
		view := updated.Sanitize()
		s.broadcast(sessionID, "session:leave", map[string]interface{}{"userId": req.UserID, "terminatedForAll": true})
		s.notifyEnded(sessionID, view)
		return view, nil
	}

	othersConnected := 0
	for j := range session.Participants {
		if j != i && session.Participants[j].Connected {
			othersConnected++
		}
	}

	field := func(name string) string { return fmt.Sprintf("participants.%d.%s", i, name) }
	update := repository.Update{
		Set: bson.M{
			field("connected"):      false,
			field("disconnectedAt"): now,
			field("reconnectBy"):    now.Add(model.ReconnectWindow),
			field("lastSeenAt"):     now,
		},
	}
	if othersConnected == 0 {
		update.Set["status"] = model.SessionEnded
	}

	updated, err := s.applyUpdate(ctx, sessionID, update)
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	s.broadcast(sessionID, "session:leave", map[string]interface{}{"userId": req.UserID, "terminatedForAll": false})
	if updated.Status == model.SessionEnded {
		s.notifyEnded(sessionID, view)
	} else {
		s.broadcast(sessionID, "session:state", view)
	}
	return view, nil
}

// ProposeQuestionChange opens a consensus proposal with the proposer
// pre-approved. Only one proposal may be pending at a time.
func (s *SessionService) ProposeQuestionChange(ctx context.Context, sessionID string, req *validator.ProposeQuestionChangeRequest) (*model.SessionView, error) {
	if err := validator.ValidatePropose(req); err != nil {
		return nil, err
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.ParticipantIndex(req.UserID) < 0 {
		return nil, apperr.Forbidden("caller is not a session participant")
	}
	if session.PendingQuestionChange != nil {
		return nil, apperr.Conflict("a question change is already pending")
	}

	question, err := s.questions.FetchQuestion(ctx, req.QuestionID)
	if err != nil {
		log.Printf("[session] question lookup failed for %s: %v", req.QuestionID, err)
		return nil, apperr.Internal(err)
	}
	if question == nil {
		return nil, apperr.NotFound(fmt.Sprintf("question %s not found", req.QuestionID))
	}

	updated, err := s.applyUpdate(ctx, sessionID, repository.Update{
		Set: bson.M{
			"pendingQuestionChange": &model.PendingQuestionChange{
				QuestionID: req.QuestionID,
				ProposedBy: req.UserID,
				Rationale:  req.Rationale,
				Approvals:  []string{req.UserID},
				CreatedAt:  time.Now(),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	s.broadcast(sessionID, "session:state", view)
	return view, nil
}

// RespondToQuestionChange records one participant's vote. A single reject
// clears the proposal; unanimous approval swaps the question and resets the
// document to an empty slate at version 0.
func (s *SessionService) RespondToQuestionChange(ctx context.Context, sessionID string, req *validator.RespondQuestionChangeRequest) (*model.SessionView, error) {
	if err := validator.ValidateRespond(req); err != nil {
		return nil, err
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.ParticipantIndex(req.UserID) < 0 {
		return nil, apperr.Forbidden("caller is not a session participant")
	}
	pending := session.PendingQuestionChange
	if pending == nil {
		return nil, apperr.NotFound("no question change is pending")
	}

	var update repository.Update
	switch {
	case !req.Accept:
		update = repository.Update{Unset: bson.M{"pendingQuestionChange": ""}}

	case s.approvalComplete(session, req.UserID):
		update = repository.Update{
			Set: bson.M{
				"questionId": pending.QuestionID,
				"code":       "",
				"version":    0,
			},
			Unset: bson.M{"pendingQuestionChange": ""},
		}

	default:
		update = repository.Update{
			AddToSet: bson.M{"pendingQuestionChange.approvals": req.UserID},
		}
	}

	updated, err := s.applyUpdate(ctx, sessionID, update)
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	s.broadcast(sessionID, "session:state", view)
	return view, nil
}

// RequestSessionEnd toggles the caller's membership in the end-request set.
// The session ends the instant every participant has confirmed.
func (s *SessionService) RequestSessionEnd(ctx context.Context, sessionID string, req *validator.EndRequest) (*model.SessionView, error) {
	if err := validator.ValidateEnd(req); err != nil {
		return nil, err
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := session.ParticipantIndex(req.UserID)
	if i < 0 {
		return nil, apperr.Forbidden("caller is not a session participant")
	}

	field := func(name string) string { return fmt.Sprintf("participants.%d.%s", i, name) }
	var update repository.Update
	if req.Confirm {
		update = repository.Update{
			Set:      bson.M{field("endConfirmed"): true},
			AddToSet: bson.M{"endRequests": req.UserID},
		}
		if s.endComplete(session, req.UserID) {
			update.Set["status"] = model.SessionEnded
		}
	} else {
		update = repository.Update{
			Set:  bson.M{field("endConfirmed"): false},
			Pull: bson.M{"endRequests": req.UserID},
		}
	}

	updated, err := s.applyUpdate(ctx, sessionID, update)
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	if updated.Status == model.SessionEnded {
		s.notifyEnded(sessionID, view)
	} else {
		s.broadcast(sessionID, "session:state", view)
	}
	return view, nil
}

// TerminateSession is the unconditional administrative transition to ended.
// Authorization is the calling collaborator's problem, not this component's.
func (s *SessionService) TerminateSession(ctx context.Context, sessionID string) (*model.SessionView, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionEnded {
		return session.Sanitize(), nil
	}

	updated, err := s.applyUpdate(ctx, sessionID, repository.Update{
		Set: bson.M{"status": model.SessionEnded},
	})
	if err != nil {
		return nil, err
	}

	view := updated.Sanitize()
	s.notifyEnded(sessionID, view)
	return view, nil
}

// findSession reads the session, mapping absence to NotFound and store
// failures to Internal.
func (s *SessionService) findSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		log.Printf("[session] lookup failed for %s: %v", sessionID, err)
		return nil, apperr.Internal(err)
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	return session, nil
}

// loadActive is the gate every mutating operation runs first: resolve lazy
// expiry, then reject already-ended sessions with Gone.
func (s *SessionService) loadActive(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session, err = s.checkExpiredSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionEnded {
		return nil, apperr.Gone("session has ended")
	}
	return session, nil
}

// checkExpiredSession lazily ends a session once every disconnected
// participant's reconnect deadline has passed. There is no scheduled job;
// this runs on the next access.
func (s *SessionService) checkExpiredSession(ctx context.Context, session *model.Session) (*model.Session, error) {
	if session.Status == model.SessionEnded {
		return session, nil
	}

	now := time.Now()
	anyDisconnected := false
	for i := range session.Participants {
		p := &session.Participants[i]
		if p.Connected || p.ReconnectBy == nil {
			continue
		}
		anyDisconnected = true
		if now.Before(*p.ReconnectBy) {
			return session, nil
		}
	}
	if !anyDisconnected {
		return session, nil
	}

	updated, err := s.applyUpdate(ctx, session.ID, repository.Update{
		Set: bson.M{"status": model.SessionEnded},
	})
	if err != nil {
		return nil, err
	}
	s.notifyEnded(session.ID, updated.Sanitize())
	return updated, nil
}

// applyUpdate persists one atomic update, mapping a vanished session to
// NotFound and store failures to Internal.
func (s *SessionService) applyUpdate(ctx context.Context, sessionID string, update repository.Update) (*model.Session, error) {
	updated, err := s.store.UpdateByID(ctx, sessionID, update)
	if err != nil {
		log.Printf("[session] update failed for %s: %v", sessionID, err)
		return nil, apperr.Internal(err)
	}
	if updated == nil {
		return nil, apperr.NotFound("session not found")
	}
	return updated, nil
}

// approvalComplete reports whether adding userID's vote makes the approval
// set cover every participant.
func (s *SessionService) approvalComplete(session *model.Session, userID string) bool {
	pending := session.PendingQuestionChange
	for i := range session.Participants {
		id := session.Participants[i].UserID
		if id == userID {
			continue
		}
		if !pending.Approved(id) {
			return false
		}
	}
	return true
}

// endComplete reports whether adding userID's confirmation makes the
// end-request set equal the full participant set.
func (s *SessionService) endComplete(session *model.Session, userID string) bool {
	for i := range session.Participants {
		id := session.Participants[i].UserID
		if id == userID {
			continue
		}
		if !session.EndRequested(id) {
			return false
		}
	}
	return true
}

func (s *SessionService) broadcast(sessionID, msgType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(sessionID, msgType, payload)
	}
}

// notifyEnded announces the terminal transition and drops every remaining
// socket in the room.
func (s *SessionService) notifyEnded(sessionID string, view *model.SessionView) {
	s.broadcast(sessionID, "session:state", view)
	s.broadcast(sessionID, "session:ended", view)
	if s.broadcaster != nil {
		s.broadcaster.DisconnectRoom(sessionID)
	}
}

// generateRoomID creates a 6-char human-shareable code, skipping easily
// confused characters.
func generateRoomID() string {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable
		panic(err)
	}
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}
