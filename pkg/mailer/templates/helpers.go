package templates

import (
	"time"

	"github.com/oksasatya/go-expense-split/config"
)

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}

func WithResetURL(url string) Option { return func(d *EmailData) { d.ResetURL = url } }

func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) {
		utc := time.Now().Add(dur).UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04 MST")
		d.ExpiresIn = dur.Round(time.Minute).String()
	}
}

// NewBaseEmailData fills the fields shared by every template from cfg, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ string, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,
		CompanyName:    cfg.CompanyName,
		AppName:        cfg.AppName,
		SupportURL:     cfg.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewVerificationCodeData(cfg *config.Config, name, email, code string, opts ...Option) map[string]any {
	d := NewBaseEmailData(cfg, VerificationCode, name, email, opts...)
	d.Code = code
	return ToMap(d)
}

func NewPasswordResetData(cfg *config.Config, name, email, resetURL string, opts ...Option) map[string]any {
	opts = append([]Option{WithResetURL(resetURL)}, opts...)
	d := NewBaseEmailData(cfg, PasswordReset, name, email, opts...)
	return ToMap(d)
}
