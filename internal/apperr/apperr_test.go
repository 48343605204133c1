package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	t.Run("typed errors pass through", func(t *testing.T) {
		err := Gone("session has ended")
		assert.Same(t, err, From(err))
	})

	t.Run("wrapped typed errors unwrap", func(t *testing.T) {
		inner := Conflict("a question change is already pending")
		wrapped := fmt.Errorf("responding: %w", inner)
		assert.Same(t, inner, From(wrapped))
	})

	t.Run("unknown errors become opaque 500s", func(t *testing.T) {
		got := From(errors.New("mongo: connection refused"))
		assert.Equal(t, 500, got.Status)
		assert.Equal(t, "internal server error", got.Message, "internal detail must not leak")
	})
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "404: session not found", NotFound("session not found").Error())

	v := Validation([]FieldError{
		{Field: "participants", Message: "at most 2 participants allowed"},
		{Field: "questionId", Message: "questionId is required"},
	})
	assert.Equal(t, "400: validation failed (2 field errors)", v.Error())
}
