package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// ComposerConfig holds sender identity and link settings
type ComposerConfig struct {
	FromAddress string
	FromName    string
	BaseURL     string // candidate-facing web app, e.g. https://app.example.com
	CompanyName string
}

// Composer renders decision and invitation emails
type Composer struct {
	cfg ComposerConfig
}

// NewComposer creates a composer
func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.FromName == "" {
		cfg.FromName = "Hiring Team"
	}
	if cfg.CompanyName == "" {
		cfg.CompanyName = "Intelliviews"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Composer{cfg: cfg}
}

type decisionStyle struct {
	Color string
	Title string
}

var decisionStyles = map[models.Decision]decisionStyle{
	models.DecisionHire:   {Color: "#10b981", Title: "Great News About Your Application!"},
	models.DecisionReject: {Color: "#ef4444", Title: "Update on Your Application"},
	models.DecisionReview: {Color: "#f59e0b", Title: "Next Steps in Your Application"},
}

var defaultDecisionStyle = decisionStyle{Color: "#667eea", Title: "Update on Your Application"}

// DecisionTitle returns the email header title for a decision
func DecisionTitle(d models.Decision) string {
	if s, ok := decisionStyles[d]; ok {
		return s.Title
	}
	return defaultDecisionStyle.Title
}

// Decision renders the email announcing a reviewed decision
func (c *Composer) Decision(req *models.DecisionEmailRequest) (*Message, error) {
	to := strings.TrimSpace(req.CandidateEmail)
	switch {
	case to == "":
		return nil, &models.ValidationError{Field: "candidateEmail", Message: "candidateEmail, subject, and body are required"}
	case strings.TrimSpace(req.Subject) == "":
		return nil, &models.ValidationError{Field: "subject", Message: "candidateEmail, subject, and body are required"}
	case strings.TrimSpace(req.Body) == "":
		return nil, &models.ValidationError{Field: "body", Message: "candidateEmail, subject, and body are required"}
	}

	style, ok := decisionStyles[models.Decision(strings.ToLower(string(req.Decision)))]
	if !ok {
		style = defaultDecisionStyle
	}

	name := strings.TrimSpace(req.CandidateName)

	var html bytes.Buffer
	err := decisionTemplate.Execute(&html, map[string]any{
		"Color":      style.Color,
		"Title":      style.Title,
		"Name":       name,
		"Paragraphs": Paragraphs(req.Body),
		"Company":    c.cfg.CompanyName,
		"Year":       time.Now().Year(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render decision email: %w", err)
	}

	text := req.Body
	if name != "" {
		text = fmt.Sprintf("Dear %s,\n\n%s", name, req.Body)
	}

	return &Message{
		From:    c.from(),
		To:      to,
		Subject: req.Subject,
		HTML:    html.String(),
		Text:    text,
	}, nil
}

// Invitation renders the interview invitation and returns it with the candidate's link
func (c *Composer) Invitation(req *models.InterviewEmailRequest) (*Message, string, error) {
	name := strings.TrimSpace(req.CandidateName)
	to := strings.TrimSpace(req.CandidateEmail)
	position := strings.TrimSpace(req.CandidatePosition)

	switch {
	case name == "":
		return nil, "", &models.ValidationError{Field: "candidateName", Message: "Missing required fields"}
	case to == "":
		return nil, "", &models.ValidationError{Field: "candidateEmail", Message: "Missing required fields"}
	case position == "":
		return nil, "", &models.ValidationError{Field: "candidatePosition", Message: "Missing required fields"}
	}

	link := c.InterviewLink(to)

	var html bytes.Buffer
	err := invitationTemplate.Execute(&html, map[string]any{
		"Name":     name,
		"Position": position,
		"Link":     link,
		"Company":  c.cfg.CompanyName,
		"Year":     time.Now().Year(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to render invitation email: %w", err)
	}

	text := fmt.Sprintf("Hello %s,\n\nWe're excited to invite you to complete your interview for the %s position.\n\nStart your interview here: %s\n\nBest of luck!\nThe %s Team\n",
		name, position, link, c.cfg.CompanyName)

	return &Message{
		From:    c.from(),
		To:      to,
		Subject: "Interview Invitation - " + position,
		HTML:    html.String(),
		Text:    text,
	}, link, nil
}

// InterviewLink returns the candidate's entry link into the interview environment
func (c *Composer) InterviewLink(email string) string {
	return c.cfg.BaseURL + "/interview_environment?email=" + url.QueryEscape(email)
}

func (c *Composer) from() string {
	return fmt.Sprintf("%q <%s>", c.cfg.FromName, c.cfg.FromAddress)
}

// Paragraphs splits a plain-text body on blank lines
func Paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var decisionTemplate = template.Must(template.New("decision").Parse(`<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; border-radius: 8px; }
      .header { background-color: {{.Color}}; color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center; }
      .content { padding: 30px; background: white; }
      .content p { margin-bottom: 15px; line-height: 1.8; }
      .footer { font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px; margin-top: 30px; text-align: center; }
      .greeting { font-size: 18px; font-weight: 600; margin-bottom: 20px; }
      .signature { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header"><h1>{{.Title}}</h1></div>
      <div class="content">
        {{if .Name}}<p class="greeting">Dear {{.Name}},</p>{{end}}
        {{range .Paragraphs}}<p>{{.}}</p>{{end}}
        <div class="signature"><p>Best regards,<br/>The Hiring Team</p></div>
      </div>
      <div class="footer">
        <p>&copy; {{.Year}} {{.Company}}. All rights reserved.</p>
        <p>This email was sent from an automated hiring system.</p>
      </div>
    </div>
  </body>
</html>
`))

var invitationTemplate = template.Must(template.New("invitation").Parse(`<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; border-radius: 8px; }
      .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center; }
      .content { padding: 20px; background: white; }
      .button { display: inline-block; background-color: #667eea; color: white; padding: 12px 20px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
      .footer { font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px; margin-top: 20px; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">
        <h1>Welcome to {{.Company}}</h1>
        <p>Your AI-Powered Interview Experience</p>
      </div>
      <div class="content">
        <h2>Hello {{.Name}},</h2>
        <p>We're excited to invite you to complete your interview for the <strong>{{.Position}}</strong> position.</p>
        <h3>What to expect:</h3>
        <ul>
          <li><strong>Technical Assessment 1:</strong> Solve real-world coding challenges</li>
          <li><strong>Technical Assessment 2:</strong> Reason through realistic engineering scenarios</li>
          <li><strong>Behavioural Assessment:</strong> Talk through workplace situations with an AI interviewer</li>
        </ul>
        <p><strong>Click the button below to begin your interview:</strong></p>
        <a href="{{.Link}}" class="button">Start Interview</a>
        <p>Or copy and paste this link into your browser: <br/><code>{{.Link}}</code></p>
        <p>Best of luck! We look forward to seeing what you can do.</p>
        <p>Warm regards,<br/>The {{.Company}} Team</p>
      </div>
      <div class="footer">
        <p>&copy; {{.Year}} {{.Company}}. All rights reserved.</p>
        <p>This is an automated email. Please do not reply directly.</p>
      </div>
    </div>
  </body>
</html>
`))
