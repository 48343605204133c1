package model

import "time"

// SessionView is the sanitized session representation sent to clients:
// ids as strings, dates as RFC3339 text, internal fields stripped.
type SessionView struct {
	ID                    string                        `json:"id"`
	RoomID                string                        `json:"roomId"`
	Language              string                        `json:"language"`
	QuestionID            string                        `json:"questionId"`
	Code                  string                        `json:"code"`
	Version               int                           `json:"version"`
	Status                string                        `json:"status"`
	Participants          []ParticipantView             `json:"participants"`
	PendingQuestionChange *PendingQuestionChangeView    `json:"pendingQuestionChange"`
	EndRequests           []string                      `json:"endRequests"`
	CursorPositions       map[string]CursorPositionView `json:"cursorPositions"`
	LastOperation         *LastOperationView            `json:"lastOperation"`
	CreatedAt             string                        `json:"createdAt"`
	UpdatedAt             string                        `json:"updatedAt"`
}

type ParticipantView struct {
	UserID         string  `json:"userId"`
	DisplayName    string  `json:"displayName"`
	Connected      bool    `json:"connected"`
	JoinedAt       string  `json:"joinedAt"`
	LastSeenAt     string  `json:"lastSeenAt"`
	DisconnectedAt *string `json:"disconnectedAt"`
	ReconnectBy    *string `json:"reconnectBy"`
	EndConfirmed   bool    `json:"endConfirmed"`
}

type PendingQuestionChangeView struct {
	QuestionID string   `json:"questionId"`
	ProposedBy string   `json:"proposedBy"`
	Rationale  string   `json:"rationale,omitempty"`
	Approvals  []string `json:"approvals"`
	CreatedAt  string   `json:"createdAt"`
}

type CursorPositionView struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	UpdatedAt string `json:"updatedAt"`
}

type LastOperationView struct {
	UserID    string `json:"userId"`
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
	Conflict  bool   `json:"conflict"`
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isoTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoTime(*t)
	return &s
}

// Sanitize converts the durable record into its client-facing view.
func (s *Session) Sanitize() *SessionView {
	view := &SessionView{
		ID:              s.ID,
		RoomID:          s.RoomID,
		Language:        string(s.Language),
		QuestionID:      s.QuestionID,
		Code:            s.Code,
		Version:         s.Version,
		Status:          string(s.Status),
		EndRequests:     append([]string{}, s.EndRequests...),
		CursorPositions: make(map[string]CursorPositionView, len(s.CursorPositions)),
		CreatedAt:       isoTime(s.CreatedAt),
		UpdatedAt:       isoTime(s.UpdatedAt),
	}

	for i := range s.Participants {
		p := &s.Participants[i]
		view.Participants = append(view.Participants, ParticipantView{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			Connected:      p.Connected,
			JoinedAt:       isoTime(p.JoinedAt),
			LastSeenAt:     isoTime(p.LastSeenAt),
			DisconnectedAt: isoTimePtr(p.DisconnectedAt),
			ReconnectBy:    isoTimePtr(p.ReconnectBy),
			EndConfirmed:   p.EndConfirmed,
		})
	}

	if s.PendingQuestionChange != nil {
		view.PendingQuestionChange = &PendingQuestionChangeView{
			QuestionID: s.PendingQuestionChange.QuestionID,
			ProposedBy: s.PendingQuestionChange.ProposedBy,
			Rationale:  s.PendingQuestionChange.Rationale,
			Approvals:  append([]string{}, s.PendingQuestionChange.Approvals...),
			CreatedAt:  isoTime(s.PendingQuestionChange.CreatedAt),
		}
	}

	for userID, pos := range s.CursorPositions {
		view.CursorPositions[userID] = CursorPositionView{
			Line:      pos.Line,
			Column:    pos.Column,
			UpdatedAt: isoTime(pos.UpdatedAt),
		}
	}

	if s.LastOperation != nil {
		view.LastOperation = &LastOperationView{
			UserID:    s.LastOperation.UserID,
			Type:      string(s.LastOperation.Type),
			Version:   s.LastOperation.Version,
			Timestamp: isoTime(s.LastOperation.Timestamp),
			Conflict:  s.LastOperation.Conflict,
		}
	}

	return view
}
