package ai

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

// ProviderNames lists the supported backends.
var ProviderNames = []string{"openai", "anthropic", "gemini", "ollama", "mock"}

// ProviderOptions selects and configures a backend. The credential is passed
// in explicitly; nothing here reads the environment.
type ProviderOptions struct {
	Name       string
	Model      string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewProvider builds the backend named in opts.
func NewProvider(opts ProviderOptions) (ai.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Name)) {
	case "openai", "":
		return NewOpenAIProviderWithClient(opts.Model, opts.APIKey, opts.BaseURL, opts.HTTPClient), nil
	case "anthropic":
		return NewAnthropicProviderWithClient(opts.Model, opts.APIKey, opts.BaseURL, opts.HTTPClient), nil
	case "gemini":
		return NewGeminiProviderWithClient(opts.Model, opts.APIKey, opts.BaseURL, opts.HTTPClient), nil
	case "ollama":
		return NewOllamaProviderWithClient(opts.Model, opts.BaseURL, opts.HTTPClient), nil
	case "mock":
		model := opts.Model
		if model == "" {
			model = "offline"
		}
		return &MockProvider{Model: model}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", opts.Name)
	}
}

// RequiresCredential reports whether the named backend needs an API key.
func RequiresCredential(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ollama", "mock":
		return false
	}
	return true
}

// CredentialEnv is the environment variable holding the named backend's key.
func CredentialEnv(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "ollama", "mock":
		return ""
	default:
		return "OPENAI_API_KEY"
	}
}
