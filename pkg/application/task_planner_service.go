package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

// ErrEmptyGoal is returned when a plan is requested for a blank goal.
var ErrEmptyGoal = errors.New("please enter a goal")

// TaskPlannerInstructions is sent as the system prompt of every plan request.
const TaskPlannerInstructions = `You help users break down their specific LLM powered AI Agent goal into small, achievable tasks.
For any goal, analyze it and create a structured plan with specific actionable steps.
Each task should be concrete, time-bound when possible, and manageable.
Organize tasks in a logical sequence with dependencies clearly marked.
Never answer anything unrelated to AI Agents.`

// TaskPlan is the model's free-text answer for a goal.
type TaskPlan struct {
	Goal  string        `json:"goal"`
	Text  string        `json:"text"`
	Model string        `json:"model,omitempty"`
	Usage ai.TokenUsage `json:"usage"`
}

// TaskPlannerService breaks a goal into an ordered list of tasks with a
// single completion call.
type TaskPlannerService struct {
	provider    ai.Provider
	logger      *slog.Logger
	temperature float64
}

func NewTaskPlannerService(provider ai.Provider, logger *slog.Logger) *TaskPlannerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskPlannerService{provider: provider, logger: logger}
}

// WithTemperature sets the sampling temperature for plan requests.
func (s *TaskPlannerService) WithTemperature(t float64) *TaskPlannerService {
	s.temperature = t
	return s
}

func (s *TaskPlannerService) Plan(ctx context.Context, goal string) (*TaskPlan, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyGoal
	}

	resp, err := s.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      goal,
		System:      TaskPlannerInstructions,
		Temperature: s.temperature,
	})
	if err != nil {
		s.logger.Error("task planning failed", "provider", s.provider.ID(), "error", err)
		return nil, ai.NewProviderError(s.provider.ID(), err)
	}

	s.logger.Debug("task plan generated", "provider", s.provider.ID(), "tokens", resp.Usage.Total())
	return &TaskPlan{
		Goal:  goal,
		Text:  strings.TrimSpace(resp.Text),
		Model: resp.Model,
		Usage: resp.Usage,
	}, nil
}
