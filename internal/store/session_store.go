// Package store composes the durable session repository with its
// read-through/write-through cache. The durable record is authoritative; the
// cache is best-effort and its failures are logged, never propagated.
package store

import (
	"codepair/internal/cache"
	"codepair/internal/model"
	"codepair/internal/repository"
	"context"
	"fmt"
	"log"
	"time"
)

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	UpdateByID(ctx context.Context, id string, update repository.Update) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	RemoveExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
	GetParticipantActiveSessions(ctx context.Context, userID string) ([]*model.Session, error)
}

type sessionStore struct {
	repo  repository.SessionRepo
	cache cache.SessionCache
}

func NewSessionStore(repo repository.SessionRepo, cache cache.SessionCache) SessionStore {
	return &sessionStore{
		repo:  repo,
		cache: cache,
	}
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	if err := s.repo.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.cache.Set(ctx, session); err != nil {
		log.Printf("[store] cache set failed for session %s: %v", session.ID, err)
	}
	return nil
}

// FindByID reads cache-first; a miss falls through to the durable record and
// repopulates the cache without a TTL. Unknown ids return nil, not an error.
func (s *sessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		log.Printf("[store] cache get failed for session %s: %v", id, err)
	} else if cached != nil {
		return cached, nil
	}

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if err := s.cache.SetPersistent(ctx, session); err != nil {
		log.Printf("[store] cache repopulate failed for session %s: %v", id, err)
	}
	return session, nil
}

// UpdateByID applies one atomic update to the durable record, then overwrites
// the cache entry with the short TTL. Returns nil if the id does not exist.
func (s *sessionStore) UpdateByID(ctx context.Context, id string, update repository.Update) (*model.Session, error) {
	session, err := s.repo.UpdateByID(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if err := s.cache.Set(ctx, session); err != nil {
		log.Printf("[store] cache overwrite failed for session %s: %v", id, err)
	}
	return session, nil
}

func (s *sessionStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		log.Printf("[store] cache delete failed for session %s: %v", id, err)
	}
	return deleted, nil
}

func (s *sessionStore) RemoveExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, cutoff)
}

func (s *sessionStore) GetParticipantActiveSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	return s.repo.GetActiveByParticipant(ctx, userID)
}
