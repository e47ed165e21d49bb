package ai_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	infraAI "github.com/felixgeelhaar/qualify/pkg/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
)

func TestNewProvider(t *testing.T) {
	cases := []struct {
		name   string
		opts   infraAI.ProviderOptions
		wantID string
	}{
		{"default is openai", infraAI.ProviderOptions{APIKey: "k"}, "openai:gpt-3.5-turbo"},
		{"openai", infraAI.ProviderOptions{Name: "openai", Model: "gpt-4o"}, "openai:gpt-4o"},
		{"anthropic upper case", infraAI.ProviderOptions{Name: "Anthropic", Model: "claude-3-haiku"}, "anthropic:claude-3-haiku"},
		{"gemini", infraAI.ProviderOptions{Name: "gemini"}, "gemini:gemini-1.5-pro"},
		{"ollama", infraAI.ProviderOptions{Name: "ollama", Model: "mistral"}, "ollama:mistral"},
		{"mock", infraAI.ProviderOptions{Name: "mock"}, "mock:offline"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := infraAI.NewProvider(tc.opts)
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			if p.ID() != tc.wantID {
				t.Errorf("ID = %s, want %s", p.ID(), tc.wantID)
			}
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := infraAI.NewProvider(infraAI.ProviderOptions{Name: "skynet"})
	if err == nil || !strings.Contains(err.Error(), "skynet") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}

func TestCredentialEnv(t *testing.T) {
	cases := map[string]string{
		"":          "OPENAI_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
		"ollama":    "",
		"mock":      "",
	}
	for name, want := range cases {
		if got := infraAI.CredentialEnv(name); got != want {
			t.Errorf("CredentialEnv(%q) = %q, want %q", name, got, want)
		}
		if got := infraAI.RequiresCredential(name); got != (want != "") {
			t.Errorf("RequiresCredential(%q) = %v", name, got)
		}
	}
}

func TestMockProvider_ExactCount(t *testing.T) {
	p := &infraAI.MockProvider{Model: "test"}
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "Please write exactly 4 questions."})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var records []map[string]string
	if err := json.Unmarshal([]byte(resp.Text), &records); err != nil {
		t.Fatalf("mock reply is not a JSON array: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0]["question"] == "" || records[0]["explanation"] == "" {
		t.Errorf("record missing fields: %v", records[0])
	}
}

func TestMockProvider_CountFromTemplateWins(t *testing.T) {
	tmpl, err := prompt.NewRegistry().Get("")
	if err != nil {
		t.Fatal(err)
	}
	rendered, err := prompt.RenderQuestions(tmpl, "We run exactly 2 clinics", 6)
	if err != nil {
		t.Fatal(err)
	}

	p := &infraAI.MockProvider{Model: "test"}
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: rendered})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	var records []map[string]string
	if err := json.Unmarshal([]byte(resp.Text), &records); err != nil {
		t.Fatalf("mock reply is not a JSON array: %v", err)
	}
	if len(records) != 6 {
		t.Errorf("expected 6 records, got %d", len(records))
	}
}

func TestMockProvider_Plan(t *testing.T) {
	p := &infraAI.MockProvider{Model: "test"}
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "launch a newsletter"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(resp.Text, "launch a newsletter") {
		t.Errorf("plan should mention the goal: %q", resp.Text)
	}
}

func TestMockProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &infraAI.MockProvider{Model: "test"}
	if _, err := p.Complete(ctx, ai.CompletionRequest{Prompt: "x"}); !ai.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
