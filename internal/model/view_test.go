package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	disconnected := created.Add(10 * time.Minute)
	deadline := disconnected.Add(ReconnectWindow)

	s := &Session{
		ID:         "abc123",
		RoomID:     "ROOM01",
		Language:   LanguageJavascript,
		QuestionID: "42",
		Code:       "const x = 1;\n",
		Version:    3,
		Status:     SessionActive,
		Participants: []Participant{
			{UserID: "alice", DisplayName: "Alice", Connected: true, JoinedAt: created, LastSeenAt: created},
			{UserID: "bob", DisplayName: "Bob", JoinedAt: created, LastSeenAt: disconnected,
				DisconnectedAt: &disconnected, ReconnectBy: &deadline},
		},
		PendingQuestionChange: &PendingQuestionChange{
			QuestionID: "99",
			ProposedBy: "alice",
			Approvals:  []string{"alice"},
			CreatedAt:  created,
		},
		EndRequests: []string{"alice"},
		CursorPositions: map[string]CursorPosition{
			"alice": {Line: 1, Column: 5, UpdatedAt: created},
		},
		LastOperation: &LastOperation{
			UserID: "alice", Type: OpInsert, Version: 3, Timestamp: created, Conflict: true,
		},
		CreatedAt: created,
		UpdatedAt: disconnected,
	}

	view := s.Sanitize()

	assert.Equal(t, "Javascript", view.Language)
	assert.Equal(t, "active", view.Status)
	assert.Equal(t, "2026-03-14T09:26:53Z", view.CreatedAt)

	require.Len(t, view.Participants, 2)
	assert.Nil(t, view.Participants[0].DisconnectedAt)
	require.NotNil(t, view.Participants[1].ReconnectBy)
	assert.Equal(t, "2026-03-14T09:41:53Z", *view.Participants[1].ReconnectBy)

	require.NotNil(t, view.PendingQuestionChange)
	assert.Equal(t, []string{"alice"}, view.PendingQuestionChange.Approvals)

	require.NotNil(t, view.LastOperation)
	assert.Equal(t, "insert", view.LastOperation.Type)
	assert.True(t, view.LastOperation.Conflict)

	assert.Equal(t, 5, view.CursorPositions["alice"].Column)

	// Mutating the view's slices must not touch the session.
	view.EndRequests[0] = "mallory"
	assert.Equal(t, "alice", s.EndRequests[0])
}

func TestRangeOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{0, 5}, Range{6, 10}, false},
		{"shared endpoint", Range{0, 5}, Range{5, 10}, true},
		{"nested", Range{0, 10}, Range{3, 4}, true},
		{"identical", Range{2, 8}, Range{2, 8}, true},
		{"single column", Range{4, 4}, Range{4, 4}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}
