package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	infraAI "github.com/felixgeelhaar/qualify/pkg/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

func TestAnthropicProvider_DefaultModel(t *testing.T) {
	p := infraAI.NewAnthropicProvider("", "test-key")
	if p.ID() != "anthropic:claude-3-5-sonnet-20240620" {
		t.Errorf("expected default model, got %q", p.ID())
	}
}

func TestAnthropicProvider_Complete_NoAPIKey(t *testing.T) {
	p := infraAI.NewAnthropicProvider("claude-3-haiku", "")
	_, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "Hello"})
	if !ai.IsProviderError(err) {
		t.Fatalf("expected provider error for missing API key, got %v", err)
	}
}

func TestAnthropicProvider_Complete_Success(t *testing.T) {
	var receivedBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key 'test-key', got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version '2023-06-01', got %q", r.Header.Get("anthropic-version"))
		}
		json.NewDecoder(r.Body).Decode(&receivedBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "Hello from Claude"}},
			"usage":   map[string]int{"input_tokens": 12, "output_tokens": 4},
		})
	}))
	defer server.Close()

	p := infraAI.NewAnthropicProviderWithClient("claude-3-haiku", "test-key", server.URL, server.Client())
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "Hello", Temperature: 0.3})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "Hello from Claude" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 {
		t.Errorf("InputTokens = %d", resp.Usage.InputTokens)
	}
	if receivedBody["max_tokens"].(float64) != 4096 {
		t.Errorf("expected default max_tokens 4096, got %v", receivedBody["max_tokens"])
	}
	if receivedBody["temperature"].(float64) != 0.3 {
		t.Errorf("temperature = %v", receivedBody["temperature"])
	}
	if _, ok := receivedBody["system"]; ok {
		t.Error("system should be omitted when empty")
	}
}

func TestAnthropicProvider_Complete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	p := infraAI.NewAnthropicProviderWithClient("claude-3-haiku", "test-key", server.URL, server.Client())
	_, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "Hello"})
	if !ai.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
