package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

const QualifyDir = ".qualify"
const ConfigFile = "config.yaml"
const HistoryFile = "history.jsonl"
const DeadLetterFile = "dead_letters.jsonl"
const TemplatesDir = "templates"

// FilesystemRepository resolves the files of a qualify workspace, all of
// which live under <root>/.qualify.
type FilesystemRepository struct {
	root        string
	retryConfig retry.Config
}

func NewFilesystemRepository(root string) *FilesystemRepository {
	return &FilesystemRepository{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the workspace root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// Dir returns the .qualify directory.
func (r *FilesystemRepository) Dir() string {
	return filepath.Join(r.root, QualifyDir)
}

// ResolvePath ensures the path is a direct child of the .qualify directory and prevents traversal.
func (r *FilesystemRepository) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := r.Dir()
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))

	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}

	return cleanPath, nil
}

// TemplatesPath returns dir when set, resolved against the root when
// relative, and .qualify/templates otherwise.
func (r *FilesystemRepository) TemplatesPath(dir string) string {
	switch {
	case dir == "":
		return filepath.Join(r.Dir(), TemplatesDir)
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(r.root, dir)
	}
}

func (r *FilesystemRepository) Initialize() error {
	// G301: Use 0700 for directories
	if err := os.MkdirAll(filepath.Join(r.Dir(), TemplatesDir), 0700); err != nil {
		return fmt.Errorf("failed to create .qualify directory: %w", err)
	}
	return nil
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(r.Dir())
	return err == nil
}
