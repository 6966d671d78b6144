// Package sink renders finished answer sets into documents and persists the
// submissions to a tabular store.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/mberti/formflow/internal/normalize"
)

var ErrStoreNotFound = errors.New("submission not found in store")

// Artifact is a rendered document handle.
type Artifact struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Path       string    `json:"path"`
	Bytes      int       `json:"bytes"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Submission is one completed answer set.
type Submission struct {
	ID           string                     `json:"id"`
	UserID       string                     `json:"user_id"`
	TemplateID   string                     `json:"template_id"`
	Answers      map[string]normalize.Value `json:"answers"`
	ArtifactPath string                     `json:"artifact_path"`
	RenderedAt   time.Time                  `json:"rendered_at"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// Store persists completed submissions.
type Store interface {
	SaveSubmission(ctx context.Context, sub Submission) error
	ListSubmissions(ctx context.Context, userID string, limit int) ([]Submission, error)
	Close() error
}
