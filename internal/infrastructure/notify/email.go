package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// SMTPConfig holds the outgoing mail server settings
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	SkipTLSVerify bool
}

// Dialer sends prepared messages. *mail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailNotifier sends notices over SMTP, one message per recipient
type EmailNotifier struct {
	from     string
	dialer   Dialer
	renderer *Renderer
	logger   *zap.Logger
}

// NewSMTPDialer builds a go-mail dialer that requires STARTTLS
func NewSMTPDialer(cfg SMTPConfig) *mail.Dialer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return d
}

// NewEmailNotifier creates an email channel
func NewEmailNotifier(from string, dialer Dialer, renderer *Renderer, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		from:     from,
		dialer:   dialer,
		renderer: renderer,
		logger:   logger,
	}
}

// Name identifies the channel in logs
func (n *EmailNotifier) Name() string {
	return "email"
}

// Send renders the notice and mails it to every recipient
func (n *EmailNotifier) Send(ctx context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error {
	if len(recipients) == 0 {
		return nil
	}

	msg, err := n.renderer.Render(kind, payload)
	if err != nil {
		return err
	}

	messages := make([]*mail.Message, 0, len(recipients))
	for _, r := range recipients {
		if r.Email == "" {
			continue
		}
		m := mail.NewMessage()
		m.SetHeader("From", n.from)
		m.SetAddressHeader("To", r.Email, r.Name)
		m.SetHeader("Subject", msg.Subject)
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
		messages = append(messages, m)
	}
	if len(messages) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.dialer.DialAndSend(messages...); err != nil {
		n.logger.Error("Failed to send email",
			zap.String("kind", kind.String()),
			zap.Int("recipients", len(messages)),
			zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Debug("Email sent",
		zap.String("kind", kind.String()),
		zap.Int("recipients", len(messages)))
	return nil
}
