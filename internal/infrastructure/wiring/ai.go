package wiring

import (
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/config"
	infraai "github.com/felixgeelhaar/qualify/pkg/ai"
	domainai "github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

// ProviderResolver turns the effective config into a provider.
type ProviderResolver func(cfg *config.Config) (domainai.Provider, error)

// LoadAIProvider builds the configured provider with its credential read
// from the environment and a per-call deadline. A provider that needs a key
// and has none is an error here, before any request is made.
func LoadAIProvider(cfg *config.Config) (domainai.Provider, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	var apiKey string
	if infraai.RequiresCredential(cfg.Provider) {
		env := infraai.CredentialEnv(cfg.Provider)
		apiKey = strings.TrimSpace(os.Getenv(env))
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s is not set", domainai.ErrMissingCredential, env)
		}
	}

	base, err := infraai.NewProvider(infraai.ProviderOptions{
		Name:    cfg.Provider,
		Model:   cfg.Model,
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	return infraai.NewDeadlineProvider(base, cfg.Timeout()), nil
}
