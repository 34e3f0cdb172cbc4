package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Service composes and sends candidate emails
type Service struct {
	composer *Composer
	sender   Sender
}

// NewService creates a mail service
func NewService(composer *Composer, sender Sender) *Service {
	return &Service{composer: composer, sender: sender}
}

// Invitation is the outcome of an invitation send
type Invitation struct {
	MessageID     string
	Message       string
	InterviewLink string
}

// SendDecision emails a reviewed decision. Send failures are MailError.
func (s *Service) SendDecision(ctx context.Context, req *models.DecisionEmailRequest) (string, error) {
	msg, err := s.composer.Decision(req)
	if err != nil {
		return "", err
	}

	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return "", &models.MailError{Err: err}
	}

	slog.Info("decision email sent",
		"to", msg.To,
		"message_id", id,
		"decision", req.Decision,
	)
	return id, nil
}

// SendInvitation emails the interview link. Send failures are MailError.
func (s *Service) SendInvitation(ctx context.Context, req *models.InterviewEmailRequest) (*Invitation, error) {
	msg, link, err := s.composer.Invitation(req)
	if err != nil {
		return nil, err
	}

	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return nil, &models.MailError{Err: err}
	}

	slog.Info("interview email sent", "to", msg.To, "message_id", id)

	return &Invitation{
		MessageID:     id,
		Message:       fmt.Sprintf("Interview email sent to %s", msg.To),
		InterviewLink: link,
	}, nil
}

// LogSender only logs messages. It is selected explicitly for local runs.
type LogSender struct{}

// Send logs msg and returns a synthetic id
func (LogSender) Send(ctx context.Context, msg *Message) (string, error) {
	if _, _, err := msg.Envelope(); err != nil {
		return "", err
	}
	id := fmt.Sprintf("<%s@localhost>", uuid.NewString())
	slog.Info("mail transport disabled, message logged only",
		"to", msg.To,
		"subject", msg.Subject,
		"message_id", id,
	)
	return id, nil
}
