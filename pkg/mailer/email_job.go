package mailer

// Notification kinds put on the queue by the user service.
const (
	KindAccountCreated  = "account_created"
	KindPasswordChanged = "password_changed"
)

// EmailJob is the JSON payload placed on the RabbitMQ queue for the email
// worker. Subject/Text are filled by the worker from Kind when empty.
type EmailJob struct {
	To      string         `json:"to"`
	Kind    string         `json:"kind"`
	Subject string         `json:"subject,omitempty"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
