package ai

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

const defaultOllamaURL = "http://localhost:11434/api/generate"

// OllamaProvider talks to a local Ollama server. It needs no credential.
type OllamaProvider struct {
	Model      string
	baseURL    string
	httpClient *http.Client
}

func NewOllamaProvider(model string) *OllamaProvider {
	return NewOllamaProviderWithClient(model, "", nil)
}

// NewOllamaProviderWithClient creates a provider with a custom HTTP client and base URL.
func NewOllamaProviderWithClient(model, baseURL string, client *http.Client) *OllamaProvider {
	if model == "" {
		model = "llama3"
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{Model: model, baseURL: baseURL, httpClient: client}
}

func (p *OllamaProvider) ID() string {
	return "ollama:" + p.Model
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

var safeModelName = regexp.MustCompile(`^[a-zA-Z0-9:._-]+$`)

func (p *OllamaProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if !safeModelName.MatchString(p.Model) {
		return nil, ai.NewProviderError(p.ID(), fmt.Errorf("invalid model name: %s", p.Model))
	}
	if req.Temperature < 0 {
		return nil, ai.NewProviderError(p.ID(), fmt.Errorf("invalid temperature"))
	}

	var oResp ollamaResponse
	err := postJSON(ctx, p.httpClient, p.baseURL, nil, ollamaRequest{
		Model:   p.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  false,
		Options: ollamaOptions{Temperature: req.Temperature},
	}, &oResp)
	if err != nil {
		return nil, ai.NewProviderError(p.ID(), fmt.Errorf("ollama %w", err))
	}

	text := strings.TrimSpace(oResp.Response)
	if text == "" {
		return nil, ai.NewProviderError(p.ID(), ai.ErrNoCandidates)
	}

	return &ai.CompletionResponse{
		Text:  text,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  oResp.PromptEvalCount,
			OutputTokens: oResp.EvalCount,
		},
	}, nil
}
