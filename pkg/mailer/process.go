package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mailtpl "github.com/oksasatya/go-expense-split/pkg/mailer/templates"
)

// ErrPermanent marks jobs that will never succeed and must not be requeued.
var ErrPermanent = errors.New("permanent email failure")

// Process decodes one queued job, renders its template and sends it.
// Errors wrapping ErrPermanent mean the message should be dropped; any other
// error is worth a retry.
func Process(ctx context.Context, s Sender, body []byte) error {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: decode job: %v", ErrPermanent, err)
	}
	if job.To == "" {
		return fmt.Errorf("%w: job has no recipient", ErrPermanent)
	}
	job.EnsureRecipient()

	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		var err error
		subject, text, html, err = mailtpl.Render(job.Template, job.Data)
		if err != nil {
			return fmt.Errorf("%w: render %s: %v", ErrPermanent, job.Template, err)
		}
	}

	c, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := s.Send(c, job.To, subject, text, html); err != nil {
		return fmt.Errorf("send to %s: %w", job.To, err)
	}
	return nil
}
