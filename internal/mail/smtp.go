package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string // app password for Gmail
	Timeout  time.Duration
}

// SMTPSender sends mail through an SMTP server with STARTTLS and PLAIN auth
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Send delivers msg and returns the generated Message-ID
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	m, err := msg.build(messageID)
	if err != nil {
		return "", err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("SMTP delivery failed: %w", err)
	}

	return messageID, nil
}
