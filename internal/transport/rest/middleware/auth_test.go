package middleware

import (
	"codepair/internal/service"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]*service.User
	err    error
}

func (f *fakeVerifier) VerifyToken(ctx context.Context, token string) (*service.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens[token], nil
}

func protected(t *testing.T, verifier service.TokenVerifier) (http.Handler, *string) {
	t.Helper()
	var seenUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	return NewAuthMiddleware(verifier).RequireUser(next), &seenUserID
}

func TestRequireUser(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]*service.User{
		"good-token": {ID: "alice", Username: "alice"},
	}}

	t.Run("missing token is 401", func(t *testing.T) {
		handler, _ := protected(t, verifier)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		handler, _ := protected(t, verifier)
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("verifier outage is 500", func(t *testing.T) {
		handler, _ := protected(t, &fakeVerifier{err: errors.New("identity service down")})
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("bearer token reaches the handler with user context", func(t *testing.T) {
		handler, seen := protected(t, verifier)
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "alice", *seen)
	})

	t.Run("token query param works for websocket upgrades", func(t *testing.T) {
		handler, seen := protected(t, verifier)
		req := httptest.NewRequest(http.MethodGet, "/v1/ws/sessions/s1?token=good-token", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "alice", *seen)
	})

	t.Run("malformed authorization header is 401", func(t *testing.T) {
		handler, _ := protected(t, verifier)
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)
		req.Header.Set("Authorization", "good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
