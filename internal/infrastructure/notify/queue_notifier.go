// Package notify turns account events into email jobs on the RabbitMQ queue.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/config"
	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/pkg/mailer"
	mailtpl "github.com/oksasatya/go-expense-split/pkg/mailer/templates"
)

// Publisher is satisfied by helpers.RabbitPublisher.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type QueueNotifier struct {
	Pub    Publisher
	Cfg    *config.Config
	Logger *logrus.Logger
}

func NewQueueNotifier(pub Publisher, cfg *config.Config, logger *logrus.Logger) *QueueNotifier {
	return &QueueNotifier{Pub: pub, Cfg: cfg, Logger: logger}
}

func (n *QueueNotifier) SendVerificationCode(ctx context.Context, u *entity.User, code string, expiresIn time.Duration) error {
	data := mailtpl.NewVerificationCodeData(n.Cfg, u.Username, u.Email, code,
		mailtpl.WithTime(time.Now()),
		mailtpl.WithExpiresIn(expiresIn),
	)
	return n.publish(ctx, mailer.EmailJob{To: u.Email, Template: mailtpl.VerificationCode, Data: data})
}

func (n *QueueNotifier) SendPasswordReset(ctx context.Context, u *entity.User, link string, expiresIn time.Duration) error {
	data := mailtpl.NewPasswordResetData(n.Cfg, u.Username, u.Email, link,
		mailtpl.WithTime(time.Now()),
		mailtpl.WithExpiresIn(expiresIn),
	)
	return n.publish(ctx, mailer.EmailJob{To: u.Email, Template: mailtpl.PasswordReset, Data: data})
}

func (n *QueueNotifier) publish(ctx context.Context, job mailer.EmailJob) error {
	if !n.Cfg.MailSendEnabled || n.Pub == nil {
		n.Logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template}).Info("mail sending disabled, job dropped")
		return nil
	}
	return n.Pub.PublishJSON(ctx, job)
}

var _ application.Notifier = (*QueueNotifier)(nil)
