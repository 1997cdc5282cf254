package application_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-expense-split/config"
	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/memory"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
)

type sentMail struct {
	Email string
	Code  string
	Link  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, u *entity.User, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{Email: u.Email, Code: code})
	return n.err
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, u *entity.User, link string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{Email: u.Email, Link: link})
	return n.err
}

func (n *recordingNotifier) last(t *testing.T, email string) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Email == email {
			return n.sent[i]
		}
	}
	t.Fatalf("no mail sent to %s", email)
	return sentMail{}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	cfg      *config.Config
	store    *memory.Store
	sessions *memory.SessionStore
	notifier *recordingNotifier
	jwt      *helpers.JWTManager
	identity *application.IdentityService
	auth     *application.Authenticator
	groups   *application.GroupService
	expenses *application.ExpenseService
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	helpers.PasswordCost = bcrypt.MinCost
	cfg := &config.Config{
		JWTAccessSecret:     "test-access",
		JWTRefreshSecret:    "test-refresh",
		AccessTTL:           time.Hour,
		RefreshTTL:          24 * time.Hour,
		SessionTTL:          24 * time.Hour,
		VerificationCodeTTL: time.Hour,
		ResetTokenTTL:       10 * time.Minute,
		ResetPasswordURL:    "http://localhost:3000/reset-password",
	}
	logger := quietLogger()
	store := memory.NewStore()
	sessions := memory.NewSessionStore()
	notifier := &recordingNotifier{}
	jwt := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	return &fixture{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		notifier: notifier,
		jwt:      jwt,
		identity: application.NewIdentityService(store.Users(), sessions, sessions, notifier, nil, jwt, cfg, logger),
		auth:     application.NewAuthenticator(store.Users(), sessions, jwt),
		groups: application.NewGroupService(store.Groups(), store.Users(), store.Expenses(), store.Categories(),
			store, logger),
		expenses: application.NewExpenseService(store.Groups(), store.Categories(), store.Expenses(),
			store.Settlements(), store, nil, logger),
	}
}

func signUpInput(username, email, college string) application.SignUpInput {
	return application.SignUpInput{
		Username:        username,
		Email:           email,
		Password:        "Pw1!",
		ConfirmPassword: "Pw1!",
		College:         college,
		Semester:        3,
		PaymentMethod:   "Cash",
	}
}

// verifiedUser signs up and verifies a user, returning the identity services see.
func (f *fixture) verifiedUser(t *testing.T, username, college string) *application.AuthenticatedUser {
	t.Helper()
	ctx := context.Background()
	email := username + "@x.com"
	u, err := f.identity.SignUp(ctx, signUpInput(username, email, college))
	require.NoError(t, err)
	require.NoError(t, f.identity.VerifyCode(ctx, email, f.notifier.last(t, email).Code))
	return &application.AuthenticatedUser{ID: u.ID, Username: u.Username, Email: u.Email, College: u.College}
}

func (f *fixture) category(t *testing.T, name string) int64 {
	t.Helper()
	cats, err := f.store.Categories().List(context.Background())
	require.NoError(t, err)
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %s not seeded", name)
	return 0
}

func requireKind(t *testing.T, err error, kind error) *application.Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var appErr *application.Error
	require.True(t, errors.As(err, &appErr), "expected *application.Error, got %T", err)
	return appErr
}
