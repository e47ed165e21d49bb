package wiring

import (
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/metrics"
	"github.com/felixgeelhaar/qualify/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/qualify/pkg/application"
	domainai "github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/storage"
)

// AppServices exposes the application layer services wired together with a workspace.
type AppServices struct {
	Workspace  *Workspace
	Provider   domainai.Provider
	Generation *application.GenerationService
	Planner    *application.TaskPlannerService
	Notifier   *webhook.Notifier
	Logger     *slog.Logger
}

// Wait blocks until pending webhook deliveries are done. One-shot commands
// call it before exiting.
func (s *AppServices) Wait() {
	if s.Notifier != nil {
		s.Notifier.Wait()
	}
}

// BuildAppServices constructs the services for a repo root using the
// configured provider.
func BuildAppServices(root string, logger *slog.Logger) (*AppServices, error) {
	return BuildAppServicesWithProvider(root, logger, LoadAIProvider)
}

// BuildAppServicesWithProvider allows callers to supply a custom AI provider resolver.
func BuildAppServicesWithProvider(root string, logger *slog.Logger, resolver ProviderResolver) (*AppServices, error) {
	if logger == nil {
		logger = slog.Default()
	}

	workspace, err := NewWorkspace(root)
	if err != nil {
		return nil, err
	}

	provider, err := resolver(workspace.Config)
	if err != nil {
		return nil, err
	}

	gen := application.NewGenerationService(provider, workspace.Templates, logger).
		WithObserver(metrics.Observer{})
	if workspace.History != nil {
		gen.WithHistory(workspace.History)
	}

	var notifier *webhook.Notifier
	if len(workspace.Config.Webhooks) > 0 {
		deadLetters := webhook.NewDeadLetterStore(filepath.Join(workspace.Repo.Dir(), storage.DeadLetterFile))
		notifier = webhook.NewNotifier(workspace.Config.Webhooks, deadLetters, logger)
		gen.WithObserver(notifier)
	}

	planner := application.NewTaskPlannerService(provider, logger).
		WithTemperature(workspace.Config.Temperature)

	return &AppServices{
		Workspace:  workspace,
		Provider:   provider,
		Generation: gen,
		Planner:    planner,
		Notifier:   notifier,
		Logger:     logger,
	}, nil
}
