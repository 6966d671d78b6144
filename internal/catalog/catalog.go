// Package catalog lists document templates and discovers their fillable
// fields.
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrTemplateUnavailable means the template exists but cannot be read
	// right now; selection may be retried.
	ErrTemplateUnavailable = errors.New("template unavailable")
	// ErrTemplateNotFound means no template with the given id exists.
	ErrTemplateNotFound = errors.New("template not found")
)

// Descriptor identifies a selectable template.
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Catalog is the engine-facing contract for template discovery.
type Catalog interface {
	// ListTemplates returns the selectable templates. An empty slice is a
	// valid result, not an error.
	ListTemplates(ctx context.Context) ([]Descriptor, error)
	// GetFields returns the template's field names in collection order.
	GetFields(ctx context.Context, templateID string) ([]string, error)
}
