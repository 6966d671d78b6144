package catalog

import "context"

// Template is an in-memory template definition. Fields may be left nil when
// Body is set, in which case they are derived from the body's placeholders.
type Template struct {
	ID          string
	DisplayName string
	Fields      []string
	Body        string
}

// MemoryCatalog serves a fixed template set, suitable for tests and seeded
// deployments.
type MemoryCatalog struct {
	items []Template
}

func NewMemoryCatalog(items []Template) *MemoryCatalog {
	return &MemoryCatalog{items: append([]Template(nil), items...)}
}

func (c *MemoryCatalog) ListTemplates(_ context.Context) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, Descriptor{ID: item.ID, DisplayName: item.DisplayName})
	}
	return out, nil
}

func (c *MemoryCatalog) GetFields(_ context.Context, templateID string) ([]string, error) {
	for _, item := range c.items {
		if item.ID == templateID {
			if item.Fields == nil && item.Body != "" {
				return ExtractFields(item.Body), nil
			}
			return append([]string(nil), item.Fields...), nil
		}
	}
	return nil, ErrTemplateNotFound
}

// Body returns the raw template text for rendering.
func (c *MemoryCatalog) Body(_ context.Context, templateID string) (string, error) {
	for _, item := range c.items {
		if item.ID == templateID {
			return item.Body, nil
		}
	}
	return "", ErrTemplateNotFound
}
