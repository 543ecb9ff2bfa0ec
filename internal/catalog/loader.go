package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/homzhub/ticket-engine/internal/models"
)

// Catalog manages loading and caching of service categories.
// Categories (Plumbing, Electrical, ...) are defined as YAML files; each
// quote-request round references a subset of them by id.
type Catalog struct {
	mu         sync.RWMutex
	categories map[string]*models.QuoteCategory
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		categories: make(map[string]*models.QuoteCategory),
	}
}

// LoadFromDir loads all YAML category definitions from a directory
func (c *Catalog) LoadFromDir(dir string) error {
	slog.Info("loading service categories", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return fmt.Errorf("no category files found in %s", dir)
	}

	loaded := make(map[string]*models.QuoteCategory, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read category file %s: %w", file, err)
		}

		var cat models.QuoteCategory
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return fmt.Errorf("failed to parse category file %s: %w", file, err)
		}

		if cat.ID == "" || cat.Name == "" {
			return fmt.Errorf("category file %s is missing id or name", file)
		}

		if _, dup := loaded[cat.ID]; dup {
			return fmt.Errorf("duplicate category id %q in %s", cat.ID, file)
		}

		loaded[cat.ID] = &cat
		slog.Debug("category loaded", "id", cat.ID, "name", cat.Name)
	}

	c.mu.Lock()
	c.categories = loaded
	c.mu.Unlock()

	slog.Info("service categories loaded", "count", len(loaded))
	return nil
}

// Get retrieves a category by id, or nil when unknown
func (c *Catalog) Get(id string) *models.QuoteCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories[id]
}

// List returns all categories sorted by name
func (c *Catalog) List() []*models.QuoteCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.QuoteCategory, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve maps category ids to full categories, failing on unknown ids
func (c *Catalog) Resolve(ids []string) ([]models.QuoteCategory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.QuoteCategory, 0, len(ids))
	for _, id := range ids {
		cat, ok := c.categories[id]
		if !ok {
			return nil, fmt.Errorf("unknown category: %s", id)
		}
		out = append(out, *cat)
	}
	return out, nil
}
