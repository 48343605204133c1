package validator

import (
	"codepair/internal/apperr"
	"codepair/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	appErr := apperr.From(err)
	require.Equal(t, 400, appErr.Status)
	names := make([]string, 0, len(appErr.Details))
	for _, d := range appErr.Details {
		names = append(names, d.Field)
	}
	return names
}

func TestValidateCreateSession(t *testing.T) {
	t.Run("valid with default language", func(t *testing.T) {
		req := &CreateSessionRequest{
			Participants: []string{" alice ", "bob"},
			QuestionID:   "42",
		}
		language, err := ValidateCreateSession(req)
		require.NoError(t, err)
		assert.Equal(t, model.LanguagePython, language)
		assert.Equal(t, []string{"alice", "bob"}, req.Participants, "ids are trimmed")
	})

	t.Run("javascript case-insensitive", func(t *testing.T) {
		req := &CreateSessionRequest{
			Participants: []string{"alice", "bob"},
			QuestionID:   "42",
			Language:     "JavaScript",
		}
		language, err := ValidateCreateSession(req)
		require.NoError(t, err)
		assert.Equal(t, model.LanguageJavascript, language)
	})

	t.Run("collects all field errors", func(t *testing.T) {
		req := &CreateSessionRequest{
			Participants: []string{"alice", "alice", "bob"},
			Language:     "Rust",
		}
		_, err := ValidateCreateSession(req)
		require.Error(t, err)
		names := fieldNames(t, err)
		assert.Contains(t, names, "participants")
		assert.Contains(t, names, "questionId")
		assert.Contains(t, names, "language")
		// >2 participants and a duplicate id both report
		assert.GreaterOrEqual(t, len(names), 4)
	})

	t.Run("only maximum enforced here", func(t *testing.T) {
		// A single participant passes: the minimum of 2 is the persistence
		// schema's check.
		req := &CreateSessionRequest{
			Participants: []string{"alice"},
			QuestionID:   "42",
		}
		_, err := ValidateCreateSession(req)
		assert.NoError(t, err)
	})
}

func TestValidateOperation(t *testing.T) {
	content := "x"

	tests := []struct {
		name   string
		op     model.Operation
		fields []string
	}{
		{
			name: "valid insert",
			op:   model.Operation{UserID: "alice", Type: "insert", Content: &content, Version: 0},
		},
		{
			name: "valid cursor without content",
			op:   model.Operation{UserID: "alice", Type: "cursor", Cursor: &model.Cursor{Line: 1, Column: 2}},
		},
		{
			name: "type is normalized",
			op:   model.Operation{UserID: "alice", Type: " Replace ", Content: &content},
		},
		{
			name:   "missing userId and unknown type",
			op:     model.Operation{Type: "patch"},
			fields: []string{"userId", "type"},
		},
		{
			name:   "content required for delete",
			op:     model.Operation{UserID: "alice", Type: "delete"},
			fields: []string{"content"},
		},
		{
			name:   "inverted range",
			op:     model.Operation{UserID: "alice", Type: "insert", Content: &content, Range: &model.Range{Start: 5, End: 2}},
			fields: []string{"range.end"},
		},
		{
			name:   "negative range start",
			op:     model.Operation{UserID: "alice", Type: "insert", Content: &content, Range: &model.Range{Start: -1, End: 2}},
			fields: []string{"range.start"},
		},
		{
			name:   "negative version",
			op:     model.Operation{UserID: "alice", Type: "insert", Content: &content, Version: -1},
			fields: []string{"version"},
		},
		{
			name:   "negative cursor",
			op:     model.Operation{UserID: "alice", Type: "cursor", Cursor: &model.Cursor{Line: -1, Column: -1}},
			fields: []string{"cursor.line", "cursor.column"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperation(&tt.op)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			names := fieldNames(t, err)
			for _, f := range tt.fields {
				assert.Contains(t, names, f)
			}
		})
	}
}

func TestValidateSimpleRequests(t *testing.T) {
	assert.Error(t, ValidateLeave(&LeaveRequest{}))
	assert.NoError(t, ValidateLeave(&LeaveRequest{UserID: "alice"}))

	assert.Error(t, ValidatePropose(&ProposeQuestionChangeRequest{UserID: "alice"}))
	assert.Error(t, ValidatePropose(&ProposeQuestionChangeRequest{QuestionID: "42"}))
	assert.NoError(t, ValidatePropose(&ProposeQuestionChangeRequest{UserID: "alice", QuestionID: "42"}))

	assert.Error(t, ValidateRespond(&RespondQuestionChangeRequest{}))
	assert.NoError(t, ValidateRespond(&RespondQuestionChangeRequest{UserID: "alice", Accept: true}))

	assert.Error(t, ValidateEnd(&EndRequest{}))
	assert.NoError(t, ValidateEnd(&EndRequest{UserID: "alice", Confirm: true}))
}
