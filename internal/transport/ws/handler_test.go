package ws

import (
	"codepair/internal/model"
	"codepair/internal/repository"
	"codepair/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	sessions map[string]*model.Session
}

func (f *fakeSessionStore) Create(ctx context.Context, session *model.Session) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeSessionStore) UpdateByID(ctx context.Context, id string, update repository.Update) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	if status, ok := update.Set["status"]; ok {
		s.Status = status.(model.SessionStatus)
	}
	return s, nil
}

func (f *fakeSessionStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	_, ok := f.sessions[id]
	delete(f.sessions, id)
	return ok, nil
}

func (f *fakeSessionStore) RemoveExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeSessionStore) GetParticipantActiveSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	return nil, nil
}

type fakeVerifier struct {
	tokens map[string]*service.User
}

func (f *fakeVerifier) VerifyToken(ctx context.Context, token string) (*service.User, error) {
	return f.tokens[token], nil
}

func wsTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()

	now := time.Now()
	st := &fakeSessionStore{sessions: map[string]*model.Session{
		"s1": {
			ID: "s1", RoomID: "ROOM01", Status: model.SessionActive,
			Participants: []model.Participant{
				{UserID: "alice", DisplayName: "alice", Connected: true, JoinedAt: now, LastSeenAt: now},
				{UserID: "bob", DisplayName: "bob", Connected: true, JoinedAt: now, LastSeenAt: now},
			},
			CreatedAt: now, UpdatedAt: now,
		},
		"s2": {
			ID: "s2", RoomID: "ROOM02", Status: model.SessionEnded,
			Participants: []model.Participant{
				{UserID: "alice"}, {UserID: "carol"},
			},
			CreatedAt: now, UpdatedAt: now,
		},
	}}

	verifier := &fakeVerifier{tokens: map[string]*service.User{
		"alice-token": {ID: "alice", Username: "alice"},
		"carol-token": {ID: "carol", Username: "carol"},
	}}

	svc := service.NewSessionService(st, nil, nil)
	hub := NewHub()
	handler := NewHandler(hub, svc, verifier)

	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/sessions/{id}", handler.SessionWS).Methods(http.MethodGet)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, hub
}

func TestSessionWSConnectGate(t *testing.T) {
	server, hub := wsTestServer(t)

	get := func(path string) int {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("missing token is 401", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get("/v1/ws/sessions/s1"))
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get("/v1/ws/sessions/s1?token=bogus"))
	})

	t.Run("valid token without membership is 403", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, get("/v1/ws/sessions/s1?token=carol-token"))
		assert.Equal(t, 0, hub.UserSocketCount("s1", "carol"), "rejected handshake must not register a socket")
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/v1/ws/sessions/nope?token=alice-token"))
	})

	t.Run("ended session is 410", func(t *testing.T) {
		assert.Equal(t, http.StatusGone, get("/v1/ws/sessions/s2?token=alice-token"))
	})

	t.Run("participant handshake upgrades and registers", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws/sessions/s1?token=alice-token"
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		if resp != nil {
			resp.Body.Close()
		}
		defer conn.Close()

		require.Eventually(t, func() bool {
			return hub.UserSocketCount("s1", "alice") == 1
		}, time.Second, 10*time.Millisecond)
	})
}
