package mailer

import "fmt"

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template (with Data) or a ready Subject/Text/HTML triple is set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "verification_code", "password_reset"
	Data     map[string]any `json:"data,omitempty"`
}

// EnsureRecipient fills the recipient fields templates expect from To.
func (j *EmailJob) EnsureRecipient() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	for _, k := range []string{"Email", "RecipientEmail"} {
		if v, ok := j.Data[k]; !ok || fmt.Sprintf("%v", v) == "" {
			j.Data[k] = j.To
		}
	}
}
