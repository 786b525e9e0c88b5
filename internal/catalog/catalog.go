package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/claude/freecoach/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Catalog is the immutable set of exercise templates loaded at startup.
type Catalog struct {
	templates []models.ExerciseTemplate
	byID      map[string]int
}

type file struct {
	Templates []models.ExerciseTemplate `yaml:"templates"`
}

// Default returns the embedded catalog. It panics only if the embedded
// file is broken, which the package tests guard against.
func Default() *Catalog {
	c, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded templates invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields the default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}
	return New(f.Templates)
}

// New validates templates and builds a Catalog from them.
func New(templates []models.ExerciseTemplate) (*Catalog, error) {
	c := &Catalog{
		templates: make([]models.ExerciseTemplate, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}
	for i, t := range templates {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("template %d: id is required", i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", t.ID)
		}
		if t.Duration <= 0 {
			return nil, fmt.Errorf("template %q: duration must be positive", t.ID)
		}
		if t.MET <= 0 {
			return nil, fmt.Errorf("template %q: met must be positive", t.ID)
		}
		in, ok := models.ParseIntensity(string(t.Intensity))
		if !ok {
			return nil, fmt.Errorf("template %q: unknown intensity %q", t.ID, t.Intensity)
		}
		t.Intensity = in
		t.Category = strings.ToLower(strings.TrimSpace(t.Category))
		if len(t.Equipment) == 0 {
			t.Equipment = []string{models.EquipmentNone}
		} else {
			eq := make([]string, len(t.Equipment))
			for j, e := range t.Equipment {
				eq[j] = strings.ToLower(strings.TrimSpace(e))
			}
			t.Equipment = eq
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// Templates returns a copy of all templates in catalog order.
func (c *Catalog) Templates() []models.ExerciseTemplate {
	out := make([]models.ExerciseTemplate, len(c.templates))
	for i, t := range c.templates {
		t.Equipment = append([]string(nil), t.Equipment...)
		out[i] = t
	}
	return out
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (models.ExerciseTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.ExerciseTemplate{}, false
	}
	t := c.templates[i]
	t.Equipment = append([]string(nil), t.Equipment...)
	return t, true
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}
