package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/config"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
	"github.com/oksasatya/go-expense-split/pkg/validation"
)

const maxCodeAttempts = 20

// IdentityService owns signup, email verification, login and password reset.
type IdentityService struct {
	Users       repository.UserRepository
	Sessions    SessionStore
	ResetTokens ResetTokenStore
	Notifier    Notifier
	Index       UserIndex
	JWT         *helpers.JWTManager
	Cfg         *config.Config
	Logger      *logrus.Logger

	// Now is the clock used for code expiry; tests replace it.
	Now func() time.Time
}

func NewIdentityService(
	users repository.UserRepository,
	sessions SessionStore,
	resetTokens ResetTokenStore,
	notifier Notifier,
	index UserIndex,
	jwt *helpers.JWTManager,
	cfg *config.Config,
	logger *logrus.Logger,
) *IdentityService {
	return &IdentityService{
		Users:       users,
		Sessions:    sessions,
		ResetTokens: resetTokens,
		Notifier:    notifier,
		Index:       index,
		JWT:         jwt,
		Cfg:         cfg,
		Logger:      logger,
		Now:         time.Now,
	}
}

type SignUpInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	College         string
	Semester        int
	PaymentMethod   string
}

var passwordTooLong = fmt.Sprintf("must be at most %d bytes", helpers.MaxPasswordBytes)

func (in SignUpInput) validate() *Error {
	fields := map[string]string{}
	required := map[string]string{
		"username":         in.Username,
		"email":            in.Email,
		"password":         in.Password,
		"confirm_password": in.ConfirmPassword,
		"college":          in.College,
	}
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			fields[name] = "is required"
		}
	}
	if _, missing := fields["email"]; !missing && !validation.IsEmail(in.Email) {
		fields["email"] = "must be a valid email"
	}
	if in.Semester < 1 || in.Semester > 8 {
		fields["semester"] = "must be between 1 and 8"
	}
	if in.Password != "" && in.ConfirmPassword != "" && in.Password != in.ConfirmPassword {
		fields["confirm_password"] = "passwords do not match"
	}
	if len(in.Password) > helpers.MaxPasswordBytes {
		fields["password"] = passwordTooLong
	}
	if len(fields) > 0 {
		return invalidFields(fields)
	}
	return nil
}

// SignUp registers an unverified user and sends the first verification code.
func (s *IdentityService) SignUp(ctx context.Context, in SignUpInput) (*entity.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.validate(); err != nil {
		return nil, err
	}

	usernameTaken, emailTaken, err := s.Users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if usernameTaken || emailTaken {
		fields := map[string]string{}
		if usernameTaken {
			fields["username"] = "already registered"
		}
		if emailTaken {
			fields["email"] = "already registered"
		}
		return nil, &Error{Kind: ErrConflict, Message: "username or email already registered", Fields: fields}
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &entity.User{
		Username:             in.Username,
		Email:                in.Email,
		PasswordHash:         hash,
		College:              strings.TrimSpace(in.College),
		Semester:             in.Semester,
		DefaultPaymentMethod: strings.TrimSpace(in.PaymentMethod),
	}
	code, err := s.withFreshCode(ctx, u, s.Users.Create)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "username or email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.sendCode(ctx, u, code)
	return u, nil
}

// VerifyCode consumes the outstanding code. A matching code past its window
// removes the account so the user can sign up again.
func (s *IdentityService) VerifyCode(ctx context.Context, email, code string) error {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !u.HasOutstandingCode() || *u.VerificationCode != strings.TrimSpace(code) {
		return newError(ErrCodeMismatch, "invalid verification code")
	}
	if u.VerificationCodeCreatedAt != nil && s.Now().Sub(*u.VerificationCodeCreatedAt) > s.Cfg.VerificationCodeTTL {
		if err := s.Users.Delete(ctx, u.ID); err != nil {
			return fmt.Errorf("delete expired user: %w", err)
		}
		s.Logger.WithField("user_id", u.ID).Info("expired verification code, account removed")
		return newError(ErrCodeExpired, "verification code has expired, please sign up again")
	}

	u.MarkVerified()
	if err := s.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.index(ctx, u)
	return nil
}

// ResendCode issues a fresh code and restarts the expiry window.
func (s *IdentityService) ResendCode(ctx context.Context, email string) error {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	code, err := s.withFreshCode(ctx, u, s.Users.Update)
	if err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	s.sendCode(ctx, u, code)
	return nil
}

// LoginResult carries everything the transport needs to hand out credentials.
type LoginResult struct {
	User               *entity.User
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
	Session            *Session
	SessionExpiry      time.Time
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "invalid credentials")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, newError(ErrUnauthorized, "invalid credentials")
	}
	if !u.IsVerified {
		return nil, newError(ErrUnauthorized, "account is not verified")
	}

	sub := subjectOf(u)
	access, aexp, err := s.JWT.GenerateAccessToken(sub)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return nil, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(sub)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return nil, err
	}
	res := &LoginResult{
		User:               u,
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}
	if s.Sessions != nil {
		sess, err := s.Sessions.Create(ctx, u.ID, s.Cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		res.Session = sess
		res.SessionExpiry = sess.CreatedAt.Add(s.Cfg.SessionTTL)
	}
	return res, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, newError(ErrUnauthenticated, "invalid refresh token")
	}
	u, err := s.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", time.Time{}, newError(ErrUnauthenticated, "invalid refresh token")
		}
		return "", time.Time{}, fmt.Errorf("load user: %w", err)
	}
	return s.JWT.GenerateAccessToken(subjectOf(u))
}

// Logout drops the server-side session. Unknown ids are ignored.
func (s *IdentityService) Logout(ctx context.Context, sessionID string) error {
	if s.Sessions == nil || sessionID == "" {
		return nil
	}
	if err := s.Sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RequestPasswordReset mails a reset link when the address is known and is
// silent otherwise so callers cannot probe for accounts.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.Logger.WithField("email", email).Debug("password reset for unknown email")
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if s.ResetTokens == nil {
		return errors.New("password reset unavailable")
	}
	tok, err := helpers.GenToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.ResetTokens.Put(ctx, tok, u.ID, s.Cfg.ResetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := s.Cfg.ResetPasswordURL + "?token=" + url.QueryEscape(tok)
	if s.Notifier != nil {
		if err := s.Notifier.SendPasswordReset(ctx, u, link, s.Cfg.ResetTokenTTL); err != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("enqueue password reset email failed")
		}
	}
	return nil
}

func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return invalidFields(map[string]string{"new_password": "is required"})
	}
	if len(newPassword) > helpers.MaxPasswordBytes {
		return invalidFields(map[string]string{"new_password": passwordTooLong})
	}
	if s.ResetTokens == nil {
		return errors.New("password reset unavailable")
	}
	uid, err := s.ResetTokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrInvalidInput, "invalid or expired token")
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.UpdatePassword(ctx, uid, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrInvalidInput, "invalid or expired token")
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SearchUsers queries the user index; without one it returns no hits.
func (s *IdentityService) SearchUsers(ctx context.Context, q string, size int) ([]UserHit, error) {
	q = strings.TrimSpace(q)
	if s.Index == nil || q == "" {
		return []UserHit{}, nil
	}
	return s.Index.Search(ctx, q, size)
}

func (s *IdentityService) userByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "user with this email does not exist")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

var errNoFreeCode = errors.New("could not allocate a unique verification code")

// withFreshCode assigns u a code no other user holds and persists it with save.
// A concurrent writer can still claim the same code between the check and the
// write; the store reports that as ErrCodeInUse and another code is drawn.
func (s *IdentityService) withFreshCode(ctx context.Context, u *entity.User, save func(context.Context, *entity.User) error) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := helpers.GenOTPCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		inUse, err := s.Users.VerificationCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if inUse {
			continue
		}
		u.SetVerificationCode(code, s.Now().UTC())
		err = save(ctx, u)
		if errors.Is(err, repository.ErrCodeInUse) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", errNoFreeCode
}

func (s *IdentityService) sendCode(ctx context.Context, u *entity.User, code string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendVerificationCode(ctx, u, code, s.Cfg.VerificationCodeTTL); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("enqueue verification email failed")
	}
}

func (s *IdentityService) index(ctx context.Context, u *entity.User) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, u); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("index user failed")
	}
}

func subjectOf(u *entity.User) helpers.TokenSubject {
	return helpers.TokenSubject{UserID: u.ID, Username: u.Username, Email: u.Email}
}
