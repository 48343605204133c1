package cache

import (
	"codepair/internal/model"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotTTL bounds how long a cached session may drift from the durable
// record after a write-through.
const SnapshotTTL = 5 * time.Minute

type SessionCache interface {
	// Set overwrites the cached session with the standard short TTL.
	Set(ctx context.Context, session *model.Session) error
	// SetPersistent caches without a TTL, used when repopulating after a
	// cache miss.
	SetPersistent(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

type sessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{
		client: client,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (c *sessionCache) Set(ctx context.Context, session *model.Session) error {
	return c.set(ctx, session, SnapshotTTL)
}

func (c *sessionCache) SetPersistent(ctx context.Context, session *model.Session) error {
	return c.set(ctx, session, 0)
}

func (c *sessionCache) set(ctx context.Context, session *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(session.ID), data, ttl).Err()
}

func (c *sessionCache) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := c.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *sessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, sessionKey(id)).Err()
}
