// Package validator normalizes and rejects malformed requests before they
// reach the session coordinator. Every check runs so the caller gets the full
// list of field errors in one pass.
package validator

import (
	"codepair/internal/apperr"
	"codepair/internal/model"
	"strings"
)

// CreateSessionRequest is the matchmaking collaborator's payload.
type CreateSessionRequest struct {
	Participants []string `json:"participants"`
	QuestionID   string   `json:"questionId"`
	Language     string   `json:"language,omitempty"`
}

type LeaveRequest struct {
	UserID          string `json:"userId"`
	TerminateForAll bool   `json:"terminateForAll,omitempty"`
}

type ProposeQuestionChangeRequest struct {
	UserID     string `json:"userId"`
	QuestionID string `json:"questionId"`
	Rationale  string `json:"rationale,omitempty"`
}

type RespondQuestionChangeRequest struct {
	UserID string `json:"userId"`
	Accept bool   `json:"accept"`
}

type EndRequest struct {
	UserID  string `json:"userId"`
	Confirm bool   `json:"confirm"`
}

// ValidateCreateSession trims ids, resolves the language (defaulting to
// Python), and enforces the participant maximum of 2. The minimum of 2 is the
// persistence layer's schema check, not enforced here.
func ValidateCreateSession(req *CreateSessionRequest) (model.Language, error) {
	var details []apperr.FieldError

	for i := range req.Participants {
		req.Participants[i] = strings.TrimSpace(req.Participants[i])
	}
	req.QuestionID = strings.TrimSpace(req.QuestionID)

	if len(req.Participants) == 0 {
		details = append(details, apperr.FieldError{Field: "participants", Message: "participants are required"})
	}
	if len(req.Participants) > 2 {
		details = append(details, apperr.FieldError{Field: "participants", Message: "at most 2 participants allowed"})
	}
	seen := make(map[string]bool, len(req.Participants))
	for _, id := range req.Participants {
		if id == "" {
			details = append(details, apperr.FieldError{Field: "participants", Message: "participant userId must not be empty"})
			continue
		}
		if seen[id] {
			details = append(details, apperr.FieldError{Field: "participants", Message: "participant userIds must be distinct"})
		}
		seen[id] = true
	}

	if req.QuestionID == "" {
		details = append(details, apperr.FieldError{Field: "questionId", Message: "questionId is required"})
	}

	language := model.LanguagePython
	switch strings.ToLower(strings.TrimSpace(req.Language)) {
	case "":
	case "python":
		language = model.LanguagePython
	case "javascript":
		language = model.LanguageJavascript
	default:
		details = append(details, apperr.FieldError{Field: "language", Message: "language must be Python or Javascript"})
	}

	if len(details) > 0 {
		return "", apperr.Validation(details)
	}
	return language, nil
}

// ValidateOperation normalizes an edit/presence operation in place.
func ValidateOperation(op *model.Operation) error {
	var details []apperr.FieldError

	op.UserID = strings.TrimSpace(op.UserID)
	op.Type = model.OperationType(strings.ToLower(strings.TrimSpace(string(op.Type))))

	if op.UserID == "" {
		details = append(details, apperr.FieldError{Field: "userId", Message: "userId is required"})
	}

	switch op.Type {
	case model.OpInsert, model.OpDelete, model.OpReplace:
		if op.Content == nil {
			details = append(details, apperr.FieldError{Field: "content", Message: "content is required for " + string(op.Type) + " operations"})
		}
	case model.OpCursor, model.OpSelection:
	default:
		details = append(details, apperr.FieldError{Field: "type", Message: "type must be one of insert, delete, replace, cursor, selection"})
	}

	if op.Range != nil {
		if op.Range.Start < 0 {
			details = append(details, apperr.FieldError{Field: "range.start", Message: "range.start must be non-negative"})
		}
		if op.Range.End < op.Range.Start {
			details = append(details, apperr.FieldError{Field: "range.end", Message: "range.end must not precede range.start"})
		}
	}

	if op.Cursor != nil {
		if op.Cursor.Line < 0 {
			details = append(details, apperr.FieldError{Field: "cursor.line", Message: "cursor.line must be non-negative"})
		}
		if op.Cursor.Column < 0 {
			details = append(details, apperr.FieldError{Field: "cursor.column", Message: "cursor.column must be non-negative"})
		}
	}

	if op.Version < 0 {
		details = append(details, apperr.FieldError{Field: "version", Message: "version must be non-negative"})
	}

	if len(details) > 0 {
		return apperr.Validation(details)
	}
	return nil
}

func ValidateLeave(req *LeaveRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return apperr.Validation([]apperr.FieldError{{Field: "userId", Message: "userId is required"}})
	}
	return nil
}

func ValidatePropose(req *ProposeQuestionChangeRequest) error {
	var details []apperr.FieldError

	req.UserID = strings.TrimSpace(req.UserID)
	req.QuestionID = strings.TrimSpace(req.QuestionID)
	req.Rationale = strings.TrimSpace(req.Rationale)

	if req.UserID == "" {
		details = append(details, apperr.FieldError{Field: "userId", Message: "userId is required"})
	}
	if req.QuestionID == "" {
		details = append(details, apperr.FieldError{Field: "questionId", Message: "questionId is required"})
	}

	if len(details) > 0 {
		return apperr.Validation(details)
	}
	return nil
}

func ValidateRespond(req *RespondQuestionChangeRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return apperr.Validation([]apperr.FieldError{{Field: "userId", Message: "userId is required"}})
	}
	return nil
}

func ValidateEnd(req *EndRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return apperr.Validation([]apperr.FieldError{{Field: "userId", Message: "userId is required"}})
	}
	return nil
}
