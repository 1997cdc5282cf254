package application

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
)

// Notifier dispatches account emails. Implementations may queue the message;
// callers treat failures as non-fatal.
type Notifier interface {
	SendVerificationCode(ctx context.Context, u *entity.User, code string, expiresIn time.Duration) error
	SendPasswordReset(ctx context.Context, u *entity.User, link string, expiresIn time.Duration) error
}

// ReceiptStore persists expense receipt attachments and returns their public URL.
// Delete takes a URL returned by Save.
type ReceiptStore interface {
	Save(ctx context.Context, groupID int64, filename, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// UserIndex keeps a searchable projection of verified users.
type UserIndex interface {
	Index(ctx context.Context, u *entity.User) error
	Search(ctx context.Context, q string, size int) ([]UserHit, error)
}

// UserHit is one search result.
type UserHit struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	College  string `json:"college"`
}

// Session is the server-side login record referenced by the session cookie.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
}

// SessionStore holds login sessions. Get returns repository.ErrNotFound for unknown or expired ids.
type SessionStore interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// ResetTokenStore holds password-reset tokens. Consume returns repository.ErrNotFound for
// unknown or expired tokens and deletes the token otherwise.
type ResetTokenStore interface {
	Put(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Consume(ctx context.Context, token string) (int64, error)
}
