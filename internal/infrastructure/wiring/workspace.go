package wiring

import (
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/config"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/felixgeelhaar/qualify/pkg/storage"
)

// Workspace bundles the settings and stores of a workspace root.
type Workspace struct {
	Root      string
	Repo      *storage.FilesystemRepository
	Config    *config.Config
	Templates *prompt.Registry
	History   *storage.FileHistoryStore
}

// NewWorkspace loads .env, the config file and the template directory.
// History is attached only when enabled in the config.
func NewWorkspace(root string) (*Workspace, error) {
	if err := config.LoadEnv(root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		Root:      root,
		Repo:      storage.NewFilesystemRepository(root),
		Config:    cfg,
		Templates: prompt.NewRegistry(),
	}
	if err := ws.ReloadTemplates(); err != nil {
		return nil, err
	}
	if cfg.History {
		ws.History = storage.NewFileHistoryStore(ws.Repo.Dir())
	}
	return ws, nil
}

// TemplatesDir is the directory file templates are read from.
func (w *Workspace) TemplatesDir() string {
	return w.Repo.TemplatesPath(w.Config.TemplatesDir)
}

// ReloadTemplates rereads the template directory into the registry. On
// failure the registry keeps its previous contents.
func (w *Workspace) ReloadTemplates() error {
	templates, err := w.Repo.LoadTemplates(w.Config.TemplatesDir)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	if err := w.Templates.Replace(templates); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	slog.Debug("templates loaded", "dir", w.TemplatesDir(), "files", len(templates))
	return nil
}
