package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/progress"
)

// ErrUnknownScenario is returned for a behavioural task missing from the catalog
var ErrUnknownScenario = errors.New("unknown scenario")

// FallbackReply replaces an interviewer turn the evaluator failed to produce
const FallbackReply = "Thank you for sharing that. Could you walk me through your reasoning in a bit more detail?"

// ScenarioSource resolves behavioural scenarios
type ScenarioSource interface {
	Scenario(id models.TaskID) (models.Scenario, bool)
}

// Conversation drives a behavioural task through the progress tracker
type Conversation struct {
	tracker     *progress.Tracker
	interviewer *Interviewer
	scenarios   ScenarioSource
	role        string
}

// NewConversation creates a conversation driver; role names the position being hired for
func NewConversation(tracker *progress.Tracker, interviewer *Interviewer, scenarios ScenarioSource, role string) *Conversation {
	if role == "" {
		role = DefaultRole
	}
	return &Conversation{
		tracker:     tracker,
		interviewer: interviewer,
		scenarios:   scenarios,
		role:        role,
	}
}

// FallbackOpening is the first interviewer turn when the evaluator is unavailable
func FallbackOpening(s models.Scenario) string {
	return fmt.Sprintf("Let's move on to a new scenario: %q. Read the situation carefully and share your initial response.", s.Title)
}

// Open starts the task with the interviewer's opening question. Opening an
// already started task returns it unchanged, except that a candidate turn
// left without a reply gets one.
func (c *Conversation) Open(ctx context.Context, key models.ProgressKey) (*models.StageProgress, error) {
	scenario, err := c.scenario(key)
	if err != nil {
		return nil, err
	}

	p, err := c.tracker.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return nil, progress.ErrStageCompleted
	}

	if last := p.LastTurn(); last != nil {
		if last.Role == models.RoleCandidate {
			return c.reply(ctx, p.Key(), scenario, p.Transcript)
		}
		return p, nil
	}

	opening := FallbackOpening(scenario)
	result, err := c.interviewer.Reply(ctx, TurnRequest{Scenario: scenario, Role: c.role})
	if err != nil {
		slog.Warn("evaluator failed on opening, using fallback",
			"key", p.Key().String(),
			"error", err,
		)
	} else {
		opening = result.Text
	}

	return c.tracker.Start(context.WithoutCancel(ctx), p.Key(), opening)
}

// Say appends a candidate turn and exactly one interviewer turn after it
func (c *Conversation) Say(ctx context.Context, key models.ProgressKey, text string) (*models.StageProgress, error) {
	scenario, err := c.scenario(key)
	if err != nil {
		return nil, err
	}

	p, err := c.tracker.AppendCandidateTurn(ctx, key, text)
	if err != nil {
		return nil, err
	}

	return c.reply(ctx, p.Key(), scenario, p.Transcript)
}

// reply answers the candidate turn that ends transcript. Evaluator failures
// degrade to FallbackReply so the candidate turn is never left unanswered.
func (c *Conversation) reply(ctx context.Context, key models.ProgressKey, scenario models.Scenario, transcript []models.ChatTurn) (*models.StageProgress, error) {
	replyTo := len(transcript) - 1

	text := FallbackReply
	result, err := c.interviewer.Reply(ctx, TurnRequest{Scenario: scenario, Role: c.role, History: transcript})
	if err != nil {
		slog.Warn("evaluator failed, appending fallback turn",
			"key", key.String(),
			"turn", replyTo,
			"error", err,
		)
	} else {
		text = result.Text
	}

	return c.tracker.AppendInterviewerTurn(context.WithoutCancel(ctx), key, replyTo, text)
}

func (c *Conversation) scenario(key models.ProgressKey) (models.Scenario, error) {
	if !key.InterviewType.Conversational() {
		return models.Scenario{}, progress.ErrWrongKind
	}
	s, ok := c.scenarios.Scenario(key.TaskID)
	if !ok {
		return models.Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, key.TaskID)
	}
	return s, nil
}
