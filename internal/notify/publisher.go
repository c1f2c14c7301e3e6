package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const resetQueueName = "auth.password_reset"

// Publisher sends PasswordResetEvents to RabbitMQ. It satisfies
// service.NotificationSender. Each publish dials a fresh connection; the
// reset flow is rare enough that connection reuse is not worth the
// reconnect bookkeeping.
type Publisher struct {
	URL string
}

func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// SendPasswordReset publishes a persistent reset event. Errors are logged
// and returned; the caller treats delivery as fire-and-forget.
func (p *Publisher) SendPasswordReset(ctx context.Context, email, name, resetURL string) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("notify: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notify: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(resetQueueName, true, false, false, false, nil); err != nil {
		log.Printf("notify: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(PasswordResetEvent{
		Email:       email,
		FullName:    name,
		ResetURL:    resetURL,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", resetQueueName, false, false, pub); err != nil {
		log.Printf("notify: publish failed: %v", err)
		return err
	}
	return nil
}

// NoopSender is used when no broker is configured (local development). It
// logs the reset link so the flow stays testable end to end.
type NoopSender struct{}

func (NoopSender) SendPasswordReset(_ context.Context, email, _ string, resetURL string) error {
	log.Printf("notify: no broker configured; reset link for %s: %s", email, resetURL)
	return nil
}
