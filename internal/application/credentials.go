package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/oksasatya/go-expense-split/internal/domain/repository"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
)

type AuthMethod string

const (
	AuthBearer  AuthMethod = "bearer"
	AuthSession AuthMethod = "session"
)

// AuthenticatedUser is the caller identity every protected operation receives,
// whichever credential produced it.
type AuthenticatedUser struct {
	ID        int64
	Username  string
	Email     string
	College   string
	Method    AuthMethod
	SessionID string
}

// Credentials are the raw values presented with a request.
type Credentials struct {
	BearerToken string
	SessionID   string
}

// Authenticator resolves credentials to a user. A bearer token wins over the
// session cookie; a bad bearer token fails without consulting the session.
type Authenticator struct {
	Users    repository.UserRepository
	Sessions SessionStore
	JWT      *helpers.JWTManager
}

func NewAuthenticator(users repository.UserRepository, sessions SessionStore, jwt *helpers.JWTManager) *Authenticator {
	return &Authenticator{Users: users, Sessions: sessions, JWT: jwt}
}

func (a *Authenticator) Authenticate(ctx context.Context, cred Credentials) (*AuthenticatedUser, error) {
	switch {
	case cred.BearerToken != "":
		return a.fromBearer(ctx, cred.BearerToken)
	case cred.SessionID != "" && a.Sessions != nil:
		return a.fromSession(ctx, cred.SessionID)
	default:
		return nil, newError(ErrUnauthenticated, "authentication credentials were not provided")
	}
}

func (a *Authenticator) fromBearer(ctx context.Context, token string) (*AuthenticatedUser, error) {
	claims, err := a.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, newError(ErrUnauthenticated, "invalid or expired token")
	}
	au, err := a.resolve(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	au.Method = AuthBearer
	return au, nil
}

func (a *Authenticator) fromSession(ctx context.Context, id string) (*AuthenticatedUser, error) {
	sess, err := a.Sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUnauthenticated, "session expired")
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	au, err := a.resolve(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	au.Method = AuthSession
	au.SessionID = sess.ID
	return au, nil
}

func (a *Authenticator) resolve(ctx context.Context, userID int64) (*AuthenticatedUser, error) {
	u, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUnauthenticated, "user no longer exists")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &AuthenticatedUser{ID: u.ID, Username: u.Username, Email: u.Email, College: u.College}, nil
}
