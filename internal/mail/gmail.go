package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender sends mail through the Gmail API as the authorized user
type GmailSender struct {
	service *gmail.Service
}

// NewGmailSender creates a sender from an OAuth client credentials file and a
// previously authorized token file. The token must already exist.
func NewGmailSender(ctx context.Context, credentialsFile, tokenFile string) (*GmailSender, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read token file %s: %w", tokenFile, err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailSender{service: srv}, nil
}

// NewGmailSenderWithService wraps an existing Gmail service
func NewGmailSenderWithService(srv *gmail.Service) *GmailSender {
	return &GmailSender{service: srv}
}

// Send uploads the raw message and returns the Gmail message id
func (g *GmailSender) Send(ctx context.Context, msg *Message) (string, error) {
	if _, _, err := msg.Envelope(); err != nil {
		return "", err
	}

	data, err := msg.Bytes("")
	if err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(data),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send failed: %w", err)
	}

	return sent.Id, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
