package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps sessions in Redis:
//
//	session:<id>                 hash {user_id, tenant_id, created_at, expires_at}
//	user_active_session:<user>   id of the user's current session
//
// Both keys carry the session TTL. Logging in again points the active key at
// the new session and deletes the old hash.
type SessionStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

func sessionKey(id string) string { return "session:" + id }

func activeKey(userID uuid.UUID) string { return "user_active_session:" + userID.String() }

func (s *SessionStore) Create(ctx context.Context, userID, tenantID uuid.UUID, ttl time.Duration) (*models.Session, error) {
	now := s.now().UTC()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TenantID:  tenantID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	previous, err := s.rdb.Get(ctx, activeKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get active session: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := sessionKey(sess.ID)
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    userID.String(),
			"tenant_id":  tenantID.String(),
			"created_at": now.Format(time.RFC3339Nano),
			"expires_at": sess.ExpiresAt.Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, ttl)
		pipe.Set(ctx, activeKey(userID), sess.ID, ttl)
		if previous != "" {
			pipe.Del(ctx, sessionKey(previous))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sess, err := parseSession(sessionID, fields)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, nil
	}

	active, err := s.rdb.Get(ctx, activeKey(sess.UserID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if active != sessionID {
		return nil, nil
	}
	return sess, nil
}

// Delete removes the session. The user's active pointer is cleared only if
// it still names this session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	userID, err := s.rdb.HGet(ctx, sessionKey(sessionID), "user_id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("get session owner: %w", err)
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse session owner: %w", err)
	}
	active, err := s.rdb.Get(ctx, activeKey(uid)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get active session: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		if active == sessionID {
			pipe.Del(ctx, activeKey(uid))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func parseSession(id string, fields map[string]string) (*models.Session, error) {
	userID, err := uuid.Parse(fields["user_id"])
	if err != nil {
		return nil, fmt.Errorf("parse session user: %w", err)
	}
	tenantID, err := uuid.Parse(fields["tenant_id"])
	if err != nil {
		return nil, fmt.Errorf("parse session tenant: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("parse session expires_at: %w", err)
	}
	return &models.Session{
		ID:        id,
		UserID:    userID,
		TenantID:  tenantID,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}
