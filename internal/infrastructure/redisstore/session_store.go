// Package redisstore keeps login sessions and password-reset tokens in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
)

func sessionKey(id string) string    { return "user:session:" + id }
func resetTokenKey(t string) string { return "pwd:reset:token:" + t }

type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func (s *SessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*application.Session, error) {
	id, err := helpers.GenToken(32)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	key := sessionKey(id)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    userID,
		"created_at": now.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &application.Session{ID: id, UserID: userID, CreatedAt: now}, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*application.Session, error) {
	data, err := s.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(data) == 0 {
		return nil, repository.ErrNotFound
	}
	uid, err := strconv.ParseInt(data["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, data["created_at"])
	return &application.Session{ID: id, UserID: uid, CreatedAt: created}, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ResetTokenStore maps one-time reset tokens to user ids.
type ResetTokenStore struct {
	rdb *redis.Client
}

func NewResetTokenStore(rdb *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{rdb: rdb}
}

func (s *ResetTokenStore) Put(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.rdb.Set(ctx, resetTokenKey(token), userID, ttl).Err()
}

func (s *ResetTokenStore) Consume(ctx context.Context, token string) (int64, error) {
	v, err := s.rdb.GetDel(ctx, resetTokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	uid, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt reset token: %w", err)
	}
	return uid, nil
}

var (
	_ application.SessionStore    = (*SessionStore)(nil)
	_ application.ResetTokenStore = (*ResetTokenStore)(nil)
)
