package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

const maxMockRecords = 100

var exactCount = regexp.MustCompile(`(?i)exactly\s+(\d+)`)

// MockProvider answers offline. When the prompt asks for "exactly N" items it
// returns a JSON array of N question records; otherwise a short task list.
// The last "exactly N" wins, since templates place the count after the
// situation text.
type MockProvider struct {
	Model string
}

func (p *MockProvider) ID() string {
	return "mock:" + p.Model
}

func (p *MockProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, ai.NewProviderError(p.ID(), err)
	}

	text := mockPlan(req.Prompt)
	if all := exactCount.FindAllStringSubmatch(req.Prompt, -1); len(all) > 0 {
		n, _ := strconv.Atoi(all[len(all)-1][1])
		if n > maxMockRecords {
			n = maxMockRecords
		}
		text = mockQuestions(n)
	}

	return &ai.CompletionResponse{
		Text:  text,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  len(req.Prompt)/4 + 1,
			OutputTokens: len(text)/4 + 1,
		},
	}, nil
}

func mockQuestions(n int) string {
	type record struct {
		Question    string `json:"question"`
		Explanation string `json:"explanation"`
	}
	records := make([]record, n)
	for i := range records {
		records[i] = record{
			Question:    fmt.Sprintf("Sample question %d?", i+1),
			Explanation: fmt.Sprintf("Sample explanation %d.", i+1),
		}
	}
	data, _ := json.Marshal(records)
	return string(data)
}

func mockPlan(goal string) string {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "the goal"
	}
	return fmt.Sprintf("1. Define the scope of %s\n2. Build a first prototype\n3. Review and iterate", goal)
}
