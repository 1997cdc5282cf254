package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
)

type expiring struct {
	userID    int64
	createdAt time.Time
	expiresAt time.Time
}

// SessionStore keeps login sessions and reset tokens in process memory when
// Redis is not configured.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]expiring
	resets   map[string]expiring
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: map[string]expiring{},
		resets:   map[string]expiring{},
		now:      time.Now,
	}
}

func (s *SessionStore) Create(_ context.Context, userID int64, ttl time.Duration) (*application.Session, error) {
	id, err := helpers.GenToken(32)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	s.mu.Lock()
	s.sessions[id] = expiring{userID: userID, createdAt: now, expiresAt: now.Add(ttl)}
	s.mu.Unlock()
	return &application.Session{ID: id, UserID: userID, CreatedAt: now}, nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*application.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.sessions, id)
		return nil, repository.ErrNotFound
	}
	return &application.Session{ID: id, UserID: e.userID, CreatedAt: e.createdAt}, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) Put(_ context.Context, token string, userID int64, ttl time.Duration) error {
	now := s.now().UTC()
	s.mu.Lock()
	s.resets[token] = expiring{userID: userID, createdAt: now, expiresAt: now.Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Consume(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.resets[token]
	delete(s.resets, token)
	if !ok || !s.now().Before(e.expiresAt) {
		return 0, repository.ErrNotFound
	}
	return e.userID, nil
}

var (
	_ application.SessionStore    = (*SessionStore)(nil)
	_ application.ResetTokenStore = (*SessionStore)(nil)
)
