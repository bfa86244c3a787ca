// Package garden discovers content collections (top-level directories under
// the content root) and manages their per-garden config.yaml files.
package garden

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aldergrove/arbor/internal/models"
)

const defaultOrder = 999

// Config is the per-garden config.yaml payload.
type Config struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	CreatedDate string `yaml:"created_date,omitempty"`
	Order       int    `yaml:"order"`
}

// Manager reads and creates garden configuration under a content root.
type Manager struct {
	contentDir string
}

// NewManager creates a Manager for the given content root.
func NewManager(contentDir string) *Manager {
	return &Manager{contentDir: contentDir}
}

// List returns all gardens sorted by order, then title. Hidden directories
// are skipped; a garden without a config.yaml gets defaults derived from
// its directory name.
func (m *Manager) List() ([]models.Garden, error) {
	entries, err := os.ReadDir(m.contentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("garden: read content dir: %w", err)
	}

	var out []models.Garden
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasSuffix(e.Name(), ".page") {
			continue
		}
		cfg := m.Load(e.Name())
		out = append(out, models.Garden{
			Slug:        e.Name(),
			Title:       cfg.Title,
			Description: cfg.Description,
			CreatedDate: cfg.CreatedDate,
			Order:       cfg.Order,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// Load reads config.yaml for a garden, returning defaults when the file is
// missing or unreadable.
func (m *Manager) Load(slug string) Config {
	cfg := defaultConfig(slug)
	data, err := os.ReadFile(m.configPath(slug))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(slug)
	}
	if cfg.Title == "" {
		cfg.Title = titleFromSlug(slug)
	}
	if cfg.Order == 0 {
		cfg.Order = defaultOrder
	}
	return cfg
}

// Exists reports whether the garden directory is present.
func (m *Manager) Exists(slug string) bool {
	if slug == "" || strings.ContainsAny(slug, "/\\") {
		return false
	}
	info, err := os.Stat(filepath.Join(m.contentDir, slug))
	return err == nil && info.IsDir()
}

// Create makes the garden directory and writes a default config.yaml.
func (m *Manager) Create(slug, title, description string) (Config, error) {
	if err := os.MkdirAll(filepath.Join(m.contentDir, slug), 0o755); err != nil {
		return Config{}, fmt.Errorf("garden: create dir: %w", err)
	}
	if title == "" {
		title = titleFromSlug(slug)
	}
	cfg := Config{Title: title, Description: description, Order: defaultOrder}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("garden: marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath(slug), data, 0o644); err != nil {
		return Config{}, fmt.Errorf("garden: write config: %w", err)
	}
	return cfg, nil
}

// EnsureConfigs writes a default config.yaml into every garden directory
// that lacks one, returning the slugs it touched.
func (m *Manager) EnsureConfigs() ([]string, error) {
	gardens, err := m.List()
	if err != nil {
		return nil, err
	}
	var created []string
	for _, g := range gardens {
		if _, err := os.Stat(m.configPath(g.Slug)); err == nil {
			continue
		}
		if _, err := m.Create(g.Slug, g.Title, g.Description); err != nil {
			return created, err
		}
		created = append(created, g.Slug)
	}
	return created, nil
}

func (m *Manager) configPath(slug string) string {
	return filepath.Join(m.contentDir, slug, "config.yaml")
}

func defaultConfig(slug string) Config {
	return Config{Title: titleFromSlug(slug), Order: defaultOrder}
}

func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
