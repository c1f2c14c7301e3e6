// Package notify delivers password-reset notifications through RabbitMQ.
// The HTTP flow only publishes; an out-of-process consumer performs the
// actual mail delivery, so a broker or mailer outage never delays or fails
// a reset request.
package notify

// PasswordResetEvent is published to the auth.password_reset queue when a
// user requests a reset. It carries everything the mailer needs without a
// database lookup. The reset URL embeds the raw token, so the queue must be
// treated as sensitive as the mail channel itself.
type PasswordResetEvent struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	ResetURL    string `json:"reset_url"`
	RequestedAt string `json:"requested_at"`
}
