package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const templateExt = ".tmpl"

// placeholderRe matches {{field_name}} slots in a template body.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// DirCatalog serves templates from a directory of *.tmpl text files. The file
// name (without extension) is the template id and the fillable fields are the
// {{name}} placeholders in the body, in first-occurrence order.
type DirCatalog struct {
	dir string
}

func NewDirCatalog(dir string) (*DirCatalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template dir %q is not a directory", dir)
	}
	return &DirCatalog{dir: dir}, nil
}

func (c *DirCatalog) ListTemplates(_ context.Context) ([]Descriptor, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), templateExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), templateExt)
		out = append(out, Descriptor{ID: id, DisplayName: displayName(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *DirCatalog) GetFields(ctx context.Context, templateID string) ([]string, error) {
	body, err := c.Body(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return ExtractFields(body), nil
}

// Body returns the raw template text. It reports ErrTemplateNotFound for a
// missing file and ErrTemplateUnavailable for any other read failure.
func (c *DirCatalog) Body(_ context.Context, templateID string) (string, error) {
	if templateID != filepath.Base(templateID) || templateID == "" {
		return "", ErrTemplateNotFound
	}
	data, err := os.ReadFile(filepath.Join(c.dir, templateID+templateExt))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrTemplateNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}
	return string(data), nil
}

// ExtractFields returns the placeholder names found in body, deduplicated,
// keeping first-occurrence order so collection order matches the document.
func ExtractFields(body string) []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, match := range placeholderRe.FindAllStringSubmatch(body, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	return fields
}

func displayName(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
