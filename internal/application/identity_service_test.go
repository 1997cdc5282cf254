package application_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

func TestSignUpLoginRequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
	assert.False(t, u.IsVerified)
	require.NotNil(t, u.VerificationCode)
	assert.Len(t, *u.VerificationCode, 6)

	_, err = f.identity.Login(ctx, "a@x.com", "Pw1!")
	appErr := requireKind(t, err, application.ErrUnauthorized)
	assert.Equal(t, "account is not verified", appErr.Message)

	code := f.notifier.last(t, "a@x.com").Code
	assert.Equal(t, *u.VerificationCode, code)
	require.NoError(t, f.identity.VerifyCode(ctx, "a@x.com", code))

	stored, err := f.store.Users().GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationCode)
	assert.Nil(t, stored.VerificationCodeCreatedAt)

	res, err := f.identity.Login(ctx, "a@x.com", "Pw1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	require.NotNil(t, res.Session)
	assert.Equal(t, u.ID, res.Session.UserID)

	claims, err := f.jwt.ParseAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		edit  func(in *application.SignUpInput)
		field string
	}{
		{"missing username", func(in *application.SignUpInput) { in.Username = " " }, "username"},
		{"missing college", func(in *application.SignUpInput) { in.College = "" }, "college"},
		{"malformed email", func(in *application.SignUpInput) { in.Email = "nope" }, "email"},
		{"semester too high", func(in *application.SignUpInput) { in.Semester = 9 }, "semester"},
		{"semester zero", func(in *application.SignUpInput) { in.Semester = 0 }, "semester"},
		{"password mismatch", func(in *application.SignUpInput) { in.ConfirmPassword = "other" }, "confirm_password"},
		{"password too long", func(in *application.SignUpInput) {
			in.Password = strings.Repeat("p", 73)
			in.ConfirmPassword = in.Password
		}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := signUpInput("bob", "b@x.com", "MIT")
			tt.edit(&in)
			_, err := f.identity.SignUp(context.Background(), in)
			appErr := requireKind(t, err, application.ErrInvalidInput)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
	assert.Zero(t, f.notifier.count())
}

func TestSignUpConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)

	_, err = f.identity.SignUp(ctx, signUpInput("alice", "other@x.com", "MIT"))
	appErr := requireKind(t, err, application.ErrConflict)
	assert.Contains(t, appErr.Fields, "username")

	_, err = f.identity.SignUp(ctx, signUpInput("alice2", "A@X.com", "MIT"))
	appErr = requireKind(t, err, application.ErrConflict)
	assert.Contains(t, appErr.Fields, "email")
}

func TestSignUpSucceedsWhenNotifierFails(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("queue down")

	u, err := f.identity.SignUp(context.Background(), signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
}

func TestVerifyCodeErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.identity.VerifyCode(ctx, "nobody@x.com", "123456")
	requireKind(t, err, application.ErrNotFound)

	_, err = f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
	code := f.notifier.last(t, "a@x.com").Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = f.identity.VerifyCode(ctx, "a@x.com", wrong)
	requireKind(t, err, application.ErrCodeMismatch)

	require.NoError(t, f.identity.VerifyCode(ctx, "a@x.com", code))
	// the code is single use
	err = f.identity.VerifyCode(ctx, "a@x.com", code)
	requireKind(t, err, application.ErrCodeMismatch)
}

func TestVerifyCodeExpiredDeletesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
	code := f.notifier.last(t, "a@x.com").Code

	f.identity.Now = func() time.Time { return time.Now().Add(61 * time.Minute) }
	err = f.identity.VerifyCode(ctx, "a@x.com", code)
	requireKind(t, err, application.ErrCodeExpired)

	_, err = f.store.Users().GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// the address is free again
	_, err = f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
}

func TestResendCodeRestartsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Now()

	f.identity.Now = func() time.Time { return start }
	_, err := f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
	first := f.notifier.last(t, "a@x.com").Code

	requireKind(t, f.identity.ResendCode(ctx, "ghost@x.com"), application.ErrNotFound)

	f.identity.Now = func() time.Time { return start.Add(50 * time.Minute) }
	require.NoError(t, f.identity.ResendCode(ctx, "a@x.com"))
	second := f.notifier.last(t, "a@x.com").Code
	assert.Equal(t, 2, f.notifier.count())

	f.identity.Now = func() time.Time { return start.Add(90 * time.Minute) }
	if first != second {
		requireKind(t, f.identity.VerifyCode(ctx, "a@x.com", first), application.ErrCodeMismatch)
	}
	require.NoError(t, f.identity.VerifyCode(ctx, "a@x.com", second))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedUser(t, "alice", "MIT")

	_, err := f.identity.Login(ctx, "alice@x.com", "wrong")
	appErr := requireKind(t, err, application.ErrUnauthorized)
	assert.Equal(t, "invalid credentials", appErr.Message)

	_, err = f.identity.Login(ctx, "ghost@x.com", "Pw1!")
	appErr = requireKind(t, err, application.ErrUnauthorized)
	assert.Equal(t, "invalid credentials", appErr.Message)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedUser(t, "alice", "MIT")

	res, err := f.identity.Login(ctx, "alice@x.com", "Pw1!")
	require.NoError(t, err)

	access, exp, err := f.identity.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
	claims, err := f.jwt.ParseAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, _, err = f.identity.Refresh(ctx, res.AccessToken)
	requireKind(t, err, application.ErrUnauthenticated)

	require.NoError(t, f.identity.Logout(ctx, res.Session.ID))
	_, err = f.sessions.Get(ctx, res.Session.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, f.identity.Logout(ctx, res.Session.ID))
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedUser(t, "alice", "MIT")

	require.NoError(t, f.identity.RequestPasswordReset(ctx, "ghost@x.com"))
	sent := f.notifier.count()

	require.NoError(t, f.identity.RequestPasswordReset(ctx, "alice@x.com"))
	assert.Equal(t, sent+1, f.notifier.count())

	link, err := url.Parse(f.notifier.last(t, "alice@x.com").Link)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	requireKind(t, f.identity.ResetPassword(ctx, token, ""), application.ErrInvalidInput)
	require.NoError(t, f.identity.ResetPassword(ctx, token, "N3w!"))
	requireKind(t, f.identity.ResetPassword(ctx, token, "again"), application.ErrInvalidInput)

	_, err = f.identity.Login(ctx, "alice@x.com", "Pw1!")
	requireKind(t, err, application.ErrUnauthorized)
	_, err = f.identity.Login(ctx, "alice@x.com", "N3w!")
	require.NoError(t, err)
}

func TestSearchUsersWithoutIndex(t *testing.T) {
	f := newFixture(t)
	hits, err := f.identity.SearchUsers(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// codeRaceUsers makes the first writes fail as if another signup had just
// claimed the same verification code.
type codeRaceUsers struct {
	repository.UserRepository
	collisions int
	tried      []string
}

func (r *codeRaceUsers) collide(u *entity.User) bool {
	if u.VerificationCode == nil {
		return false
	}
	r.tried = append(r.tried, *u.VerificationCode)
	if r.collisions > 0 {
		r.collisions--
		return true
	}
	return false
}

func (r *codeRaceUsers) Create(ctx context.Context, u *entity.User) error {
	if r.collide(u) {
		return repository.ErrCodeInUse
	}
	return r.UserRepository.Create(ctx, u)
}

func (r *codeRaceUsers) Update(ctx context.Context, u *entity.User) error {
	if r.collide(u) {
		return repository.ErrCodeInUse
	}
	return r.UserRepository.Update(ctx, u)
}

func TestVerificationCodeCollisionIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := &codeRaceUsers{UserRepository: f.store.Users(), collisions: 2}
	f.identity.Users = users

	u, err := f.identity.SignUp(ctx, signUpInput("alice", "a@x.com", "MIT"))
	require.NoError(t, err)
	require.Len(t, users.tried, 3)
	assert.Equal(t, users.tried[2], *u.VerificationCode)
	assert.Equal(t, users.tried[2], f.notifier.last(t, "a@x.com").Code)

	users.collisions = 1
	require.NoError(t, f.identity.ResendCode(ctx, "a@x.com"))
	require.Len(t, users.tried, 5)
	assert.Equal(t, users.tried[4], f.notifier.last(t, "a@x.com").Code)
	require.NoError(t, f.identity.VerifyCode(ctx, "a@x.com", users.tried[4]))
}

func TestVerificationCodeCollisionIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	users := &codeRaceUsers{UserRepository: f.store.Users(), collisions: 1 << 10}
	f.identity.Users = users

	_, err := f.identity.SignUp(context.Background(), signUpInput("alice", "a@x.com", "MIT"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrConflict)
}
