package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// Message is a composed email ready to send
type Message struct {
	From    string // display form, e.g. "Hiring Team" <hr@example.com>
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages and returns the provider's message id
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// Envelope returns the bare sender and recipient addresses
func (m *Message) Envelope() (from, to string, err error) {
	msg, err := m.build("")
	if err != nil {
		return "", "", err
	}
	from, err = msg.GetSender(false)
	if err != nil {
		return "", "", fmt.Errorf("invalid from address %q: %w", m.From, err)
	}
	rcpts, err := msg.GetRecipients()
	if err != nil {
		return "", "", fmt.Errorf("invalid recipient address %q: %w", m.To, err)
	}
	return from, rcpts[0], nil
}

// Bytes renders the message as RFC 5322 with a multipart/alternative body.
// messageID is used as the Message-ID header when non-empty, otherwise one is generated.
func (m *Message) Bytes(messageID string) ([]byte, error) {
	msg, err := m.build(messageID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render message: %w", err)
	}
	return buf.Bytes(), nil
}

// build converts m into a go-mail message
func (m *Message) build(messageID string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", m.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	if messageID != "" {
		msg.SetMessageIDWithValue(strings.Trim(messageID, "<>"))
	}

	hasText := strings.TrimSpace(m.Text) != ""
	hasHTML := strings.TrimSpace(m.HTML) != ""
	switch {
	case hasText && hasHTML:
		msg.SetBodyString(gomail.TypeTextPlain, m.Text)
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	case hasHTML:
		msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	default:
		msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	}
	return msg, nil
}
