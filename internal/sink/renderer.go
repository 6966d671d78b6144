package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/mberti/formflow/internal/normalize"
)

// TemplateSource provides raw template bodies for rendering.
type TemplateSource interface {
	Body(ctx context.Context, templateID string) (string, error)
}

var slotRe = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// Renderer fills template placeholders with normalized answers and writes the
// result into the output directory.
type Renderer struct {
	source TemplateSource
	outDir string
}

func NewRenderer(source TemplateSource, outDir string) *Renderer {
	return &Renderer{source: source, outDir: outDir}
}

// Render substitutes every {{field}} slot with the matching answer and writes
// the filled document to disk. Slots without an answer are left untouched so
// a partially-known template renders visibly incomplete rather than silently
// blank.
func (r *Renderer) Render(ctx context.Context, templateID string, answers map[string]normalize.Value) (Artifact, error) {
	body, err := r.source.Body(ctx, templateID)
	if err != nil {
		return Artifact{}, fmt.Errorf("load template %q: %w", templateID, err)
	}

	filled := slotRe.ReplaceAllStringFunc(body, func(slot string) string {
		name := slotRe.FindStringSubmatch(slot)[1]
		if v, ok := answers[name]; ok {
			return v.String()
		}
		return slot
	})

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("ensure output dir: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	name := fmt.Sprintf("filled_%s_%s_%s.txt", templateID, now.Format("20060102_150405"), id[:8])
	path := filepath.Join(r.outDir, name)
	if err := os.WriteFile(path, []byte(filled), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write document: %w", err)
	}

	return Artifact{
		ID:         id,
		TemplateID: templateID,
		Path:       path,
		Bytes:      len(filled),
		RenderedAt: now,
	}, nil
}
