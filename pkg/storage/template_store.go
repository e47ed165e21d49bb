package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/fortify/retry"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
)

// TemplateFile is the on-disk form of a prompt template.
type TemplateFile struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	Body        string `yaml:"body"`
}

// IsTemplateFile reports whether path has a template file extension.
func IsTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadTemplates reads every *.yaml / *.yml file in dir as one template.
// A missing directory yields no templates. When a file omits its name the
// file name without extension is used.
func (r *FilesystemRepository) LoadTemplates(dir string) ([]*prompt.Template, error) {
	dir = r.TemplatesPath(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsTemplateFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	templates := make([]*prompt.Template, 0, len(names))
	for _, name := range names {
		t, err := r.LoadTemplateFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// LoadTemplateFile parses a single template file. Reads are retried since
// editors often replace files non-atomically while a watcher is reloading.
func (r *FilesystemRepository) LoadTemplateFile(path string) (*prompt.Template, error) {
	retryer := retry.New[[]byte](r.retryConfig)

	data, err := retryer.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		// #nosec G304 -- Path comes from a directory listing of the templates dir
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var tf TemplateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", filepath.Base(path), err)
	}
	if tf.Name == "" {
		tf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	t, err := prompt.New(tf.Name, tf.Body)
	if err != nil {
		return nil, fmt.Errorf("template file %s: %w", filepath.Base(path), err)
	}
	return t.WithInfo(tf.Title, tf.Description), nil
}

// SaveTemplate writes t into dir as <name>.yaml.
func (r *FilesystemRepository) SaveTemplate(dir string, t *prompt.Template) error {
	if t == nil {
		return fmt.Errorf("template is nil")
	}
	dir = r.TemplatesPath(dir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}

	data, err := yaml.Marshal(TemplateFile{
		Name:        t.Name,
		Title:       t.Title,
		Description: t.Description,
		Body:        t.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, t.Name+".yaml"), data, 0600)
}
