// Package mail queues transactional emails for the delivery worker.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dm-service/internal/logging"
)

const RoutingKey = "email.notification"

const (
	TemplateVerification  = "verification"
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "password_reset"
	TemplateResetSuccess  = "reset_success"
)

// Mailer sends the account lifecycle emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	SendResetSuccess(ctx context.Context, to string) error
}

// Publisher is the queue the jobs are written to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// Job is one email for the worker to render and send.
type Job struct {
	ID         string            `json:"id"`
	Template   string            `json:"template"`
	To         string            `json:"to"`
	Subject    string            `json:"subject"`
	Data       map[string]string `json:"data"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// QueueMailer publishes Jobs on RoutingKey.
type QueueMailer struct {
	publisher Publisher
	log       logging.Logger
	now       func() time.Time
}

func NewQueueMailer(publisher Publisher, log logging.Logger) *QueueMailer {
	return &QueueMailer{publisher: publisher, log: log, now: time.Now}
}

func (m *QueueMailer) SendVerification(ctx context.Context, to, code string) error {
	return m.enqueue(ctx, TemplateVerification, to, "Verify your email", map[string]string{"verificationCode": code})
}

func (m *QueueMailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.enqueue(ctx, TemplateWelcome, to, "Welcome", map[string]string{"name": name})
}

func (m *QueueMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	return m.enqueue(ctx, TemplatePasswordReset, to, "Reset your password", map[string]string{"resetURL": resetURL})
}

func (m *QueueMailer) SendResetSuccess(ctx context.Context, to string) error {
	return m.enqueue(ctx, TemplateResetSuccess, to, "Password Reset Successful", nil)
}

func (m *QueueMailer) enqueue(ctx context.Context, template, to, subject string, data map[string]string) error {
	job := Job{
		ID:         uuid.NewString(),
		Template:   template,
		To:         to,
		Subject:    subject,
		Data:       data,
		EnqueuedAt: m.now().UTC(),
	}
	if err := m.publisher.Publish(ctx, RoutingKey, job, map[string]string{"template": template}); err != nil {
		return fmt.Errorf("enqueue %s email: %w", template, err)
	}
	m.log.Debug(ctx, "email queued", "template", template, "job_id", job.ID)
	return nil
}
