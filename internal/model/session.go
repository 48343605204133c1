package model

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

type Language string

const (
	LanguagePython     Language = "Python"
	LanguageJavascript Language = "Javascript"
)

// ReconnectWindow is how long a disconnected participant may rejoin before
// the session is considered abandoned.
const ReconnectWindow = 5 * time.Minute

// Participant is one of the two members of a session, fixed at creation.
type Participant struct {
	UserID         string     `json:"userId" bson:"userId"`
	DisplayName    string     `json:"displayName" bson:"displayName"`
	Connected      bool       `json:"connected" bson:"connected"`
	JoinedAt       time.Time  `json:"joinedAt" bson:"joinedAt"`
	LastSeenAt     time.Time  `json:"lastSeenAt" bson:"lastSeenAt"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty" bson:"disconnectedAt,omitempty"`
	ReconnectBy    *time.Time `json:"reconnectBy,omitempty" bson:"reconnectBy,omitempty"`
	EndConfirmed   bool       `json:"endConfirmed" bson:"endConfirmed"`
}

// PendingQuestionChange is a proposal to swap the active problem. It exists
// only while awaiting unanimous approval; any reject clears it.
type PendingQuestionChange struct {
	QuestionID string    `json:"questionId" bson:"questionId"`
	ProposedBy string    `json:"proposedBy" bson:"proposedBy"`
	Rationale  string    `json:"rationale,omitempty" bson:"rationale,omitempty"`
	Approvals  []string  `json:"approvals" bson:"approvals"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Approved reports whether userID is already in the approval set.
func (p *PendingQuestionChange) Approved(userID string) bool {
	for _, id := range p.Approvals {
		if id == userID {
			return true
		}
	}
	return false
}

type CursorPosition struct {
	Line      int       `json:"line" bson:"line"`
	Column    int       `json:"column" bson:"column"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LastOperation records metadata about the most recent accepted operation.
// Per-keystroke history is deliberately not kept.
type LastOperation struct {
	UserID    string        `json:"userId" bson:"userId"`
	Type      OperationType `json:"type" bson:"type"`
	Version   int           `json:"version" bson:"version"`
	Timestamp time.Time     `json:"timestamp" bson:"timestamp"`
	Conflict  bool          `json:"conflict" bson:"conflict"`
}

// Session is the shared document plus participant state for one two-person
// editing collaboration. The durable record is the single source of truth;
// the cache copy is best-effort.
type Session struct {
	ID                    string                    `json:"id" bson:"_id,omitempty"`
	RoomID                string                    `json:"roomId" bson:"roomId"`
	Language              Language                  `json:"language" bson:"language"`
	QuestionID            string                    `json:"questionId" bson:"questionId"`
	Code                  string                    `json:"code" bson:"code"`
	Version               int                       `json:"version" bson:"version"`
	Status                SessionStatus             `json:"status" bson:"status"`
	Participants          []Participant             `json:"participants" bson:"participants"`
	PendingQuestionChange *PendingQuestionChange    `json:"pendingQuestionChange,omitempty" bson:"pendingQuestionChange,omitempty"`
	EndRequests           []string                  `json:"endRequests" bson:"endRequests"`
	CursorPositions       map[string]CursorPosition `json:"cursorPositions" bson:"cursorPositions"`
	LastOperation         *LastOperation            `json:"lastOperation,omitempty" bson:"lastOperation,omitempty"`
	LastConflictAt        *time.Time                `json:"lastConflictAt,omitempty" bson:"lastConflictAt,omitempty"`
	CreatedAt             time.Time                 `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time                 `json:"updatedAt" bson:"updatedAt"`
}

// ParticipantIndex returns the position of userID in the participant list,
// or -1 if the user is not a member.
func (s *Session) ParticipantIndex(userID string) int {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// ConnectedCount returns how many participants currently hold a live
// connection.
func (s *Session) ConnectedCount() int {
	n := 0
	for i := range s.Participants {
		if s.Participants[i].Connected {
			n++
		}
	}
	return n
}

// EndRequested reports whether userID has confirmed ending the session.
func (s *Session) EndRequested(userID string) bool {
	for _, id := range s.EndRequests {
		if id == userID {
			return true
		}
	}
	return false
}
