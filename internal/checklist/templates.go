package checklist

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/localnerve/permit-review/data"
	"github.com/localnerve/permit-review/internal/models"
	"gopkg.in/yaml.v3"
)

type templateItem struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type templateDef struct {
	Title string         `yaml:"title"`
	Items []templateItem `yaml:"items"`
}

// Templates is a validated set of category checklists
type Templates struct {
	byCategory map[models.Category]Checklist
}

var defaultTemplates = mustParseTemplates(data.ChecklistTemplates)

func mustParseTemplates(raw []byte) *Templates {
	t, err := ParseTemplates(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTemplates decodes a YAML template document keyed by category.
// Every category of the taxonomy must be present with at least one item,
// and ids and labels must be unique within a category.
func ParseTemplates(raw []byte) (*Templates, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("checklist: template payload is empty")
	}

	var defs map[string]templateDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("checklist: decode templates: %w", err)
	}

	t := &Templates{byCategory: make(map[models.Category]Checklist, len(defs))}
	for key, def := range defs {
		category, err := models.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("checklist: %w", err)
		}
		c, err := def.build(category)
		if err != nil {
			return nil, err
		}
		t.byCategory[category] = c
	}

	for _, category := range models.Categories {
		if _, ok := t.byCategory[category]; !ok {
			return nil, fmt.Errorf("checklist: no template for category %s", category)
		}
	}

	return t, nil
}

func (def templateDef) build(category models.Category) (Checklist, error) {
	title := strings.TrimSpace(def.Title)
	if title == "" {
		return Checklist{}, fmt.Errorf("checklist: %s: title is required", category)
	}
	if len(def.Items) == 0 {
		return Checklist{}, fmt.Errorf("checklist: %s: at least one item is required", category)
	}

	ids := make(map[string]struct{}, len(def.Items))
	labels := make(map[string]struct{}, len(def.Items))
	items := make([]Item, 0, len(def.Items))
	for i, it := range def.Items {
		id := strings.TrimSpace(it.ID)
		label := strings.TrimSpace(it.Label)
		if id == "" || label == "" {
			return Checklist{}, fmt.Errorf("checklist: %s: item %d needs an id and a label", category, i)
		}
		if _, dup := ids[id]; dup {
			return Checklist{}, fmt.Errorf("checklist: %s: duplicate item id %q", category, id)
		}
		if _, dup := labels[labelKey(label)]; dup {
			return Checklist{}, fmt.Errorf("checklist: %s: duplicate item label %q", category, label)
		}
		ids[id] = struct{}{}
		labels[labelKey(label)] = struct{}{}
		items = append(items, Item{ID: id, Label: label})
	}

	return Checklist{Title: title, Items: items}, nil
}

// Render returns a fresh, fully unchecked checklist for the category
func (t *Templates) Render(category models.Category) (Checklist, error) {
	c, ok := t.byCategory[category]
	if !ok {
		return Checklist{}, fmt.Errorf("checklist: unknown category %q", category)
	}
	return c.Clone(), nil
}

// Render returns the embedded template for the category
func Render(category models.Category) (Checklist, error) {
	return defaultTemplates.Render(category)
}
