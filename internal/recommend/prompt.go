package recommend

import (
	"fmt"
	"strings"

	"github.com/terra-clan/interview-engine/internal/models"
)

const contextHeader = "You are an expert hiring manager analyzing a candidate's complete interview performance. Please provide a comprehensive hiring recommendation."

const instructions = `Based on this complete interview performance, provide a structured recommendation in the following JSON format:
{
  "decision": "hire" | "reject" | "review",
  "reasoning": "2-3 sentences explaining your recommendation",
  "strengths": ["strength 1", "strength 2", "strength 3"],
  "concerns": ["concern 1", "concern 2"],
  "overallScore": 1-10,
  "technicalScore": 1-10,
  "behavioralScore": 1-10,
  "culturalFit": 1-10,
  "emailSubject": "appropriate email subject line",
  "emailBody": "professional email body (3-4 paragraphs)"
}

Decision guidelines:
- "hire": Strong candidate, scores 8+ overall, minimal concerns
- "reject": Weak candidate, scores below 6, significant concerns
- "review": Borderline candidate, scores 6-7, needs discussion

For "hire" decision, draft a positive next-steps email.
For "reject" decision, draft a polite rejection email.
For "review" decision, draft an email requesting additional information or next round.

Respond with the JSON object only.`

// Groups holds a candidate's records partitioned by stage, each in chronological order
type Groups struct {
	Technical1  []*models.ResponseRecord
	Technical2  []*models.ResponseRecord
	Behavioural []*models.ResponseRecord
}

// Partition splits records by interview type keeping their order
func Partition(records []*models.ResponseRecord) Groups {
	var g Groups
	for _, rec := range records {
		switch rec.InterviewType {
		case models.InterviewTechnical1:
			g.Technical1 = append(g.Technical1, rec)
		case models.InterviewTechnical2:
			g.Technical2 = append(g.Technical2, rec)
		case models.InterviewBehavioural:
			g.Behavioural = append(g.Behavioural, rec)
		}
	}
	return g
}

// Len returns the number of records in all groups
func (g Groups) Len() int {
	return len(g.Technical1) + len(g.Technical2) + len(g.Behavioural)
}

// BuildContext renders the evaluation document for one candidate
func BuildContext(email string, requirements []models.JobRequirement, values []models.CultureValue, g Groups) string {
	var b strings.Builder

	b.WriteString(contextHeader)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "CANDIDATE EMAIL: %s\n\n", email)

	b.WriteString("JOB REQUIREMENTS:\n")
	if len(requirements) == 0 {
		b.WriteString("Not specified\n")
	}
	for _, r := range requirements {
		fmt.Fprintf(&b, "- %s (%s)\n", r.Quality, r.Importance)
	}

	b.WriteString("\nCOMPANY CULTURE VALUES:\n")
	if len(values) == 0 {
		b.WriteString("Not specified\n")
	}
	for _, v := range values {
		fmt.Fprintf(&b, "- %s: %s\n", v.Value, v.Description)
	}

	b.WriteString("\nINTERVIEW PERFORMANCE:\n")

	if len(g.Technical1) > 0 {
		b.WriteString("\n=== TECHNICAL ASSESSMENT 1 - CODING ===\n")
		for _, rec := range g.Technical1 {
			writeTask(&b, rec, "Solution")
		}
	}

	if len(g.Technical2) > 0 {
		b.WriteString("\n=== TECHNICAL ASSESSMENT 2 - SCENARIOS ===\n")
		for _, rec := range g.Technical2 {
			writeTask(&b, rec, "Analysis")
		}
	}

	if len(g.Behavioural) > 0 {
		b.WriteString("\n=== BEHAVIORAL ASSESSMENT ===\n")
		for _, rec := range g.Behavioural {
			writeScenario(&b, rec)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(instructions)

	return b.String()
}

func writeTask(b *strings.Builder, rec *models.ResponseRecord, label string) {
	difficulty := rec.MetaString("difficulty")
	if difficulty == "" {
		difficulty = "N/A"
	}

	fmt.Fprintf(b, "\nTask: %s\n", rec.TaskTitle)
	fmt.Fprintf(b, "Difficulty: %s\n", difficulty)
	fmt.Fprintf(b, "Time Spent: %s\n", FormatDuration(rec.TimeSpentSeconds))
	fmt.Fprintf(b, "Completed: %s\n", yesNo(rec.MetaBool("completed", true)))
	if strings.TrimSpace(rec.Response) != "" {
		fmt.Fprintf(b, "%s:\n%s\n", label, rec.Response)
	}
}

func writeScenario(b *strings.Builder, rec *models.ResponseRecord) {
	fmt.Fprintf(b, "\nScenario: %s\n", rec.TaskTitle)
	if q := rec.MetaString("question"); q != "" {
		fmt.Fprintf(b, "Question: %s\n", q)
	}
	fmt.Fprintf(b, "Time Spent: %s\n", FormatDuration(rec.TimeSpentSeconds))

	if len(rec.ChatHistory) == 0 {
		if strings.TrimSpace(rec.Response) != "" {
			fmt.Fprintf(b, "Response: %s\n", rec.Response)
		}
		return
	}

	b.WriteString("Conversation:\n")
	for _, turn := range rec.ChatHistory {
		speaker := "AI"
		if turn.Role == models.RoleCandidate {
			speaker = "Candidate"
		}
		fmt.Fprintf(b, "%s: %s\n", speaker, turn.Text)
	}
}

// FormatDuration renders seconds as "Xm Ys"
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
