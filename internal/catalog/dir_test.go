package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const invoiceBody = `INVOICE {{invoice_number}}

Bill to: {{client_name}}
Date: {{invoice_date}}
Due: {{due_date}}

Amount due: {{amount}}
Reference: {{invoice_number}}
`

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func TestDirCatalogListAndFields(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "invoice.tmpl", invoiceBody)
	writeTemplate(t, dir, "receipt.tmpl", "Received {{amount}} from {{client_name}}")
	writeTemplate(t, dir, "notes.txt", "not a template")

	c, err := NewDirCatalog(dir)
	if err != nil {
		t.Fatalf("NewDirCatalog() error = %v", err)
	}

	list, err := c.ListTemplates(context.Background())
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListTemplates() returned %d templates, want 2", len(list))
	}
	if list[0].ID != "invoice" || list[1].ID != "receipt" {
		t.Fatalf("unexpected template ids: %+v", list)
	}
	if list[0].DisplayName != "Invoice" {
		t.Fatalf("DisplayName = %q, want %q", list[0].DisplayName, "Invoice")
	}

	fields, err := c.GetFields(context.Background(), "invoice")
	if err != nil {
		t.Fatalf("GetFields() error = %v", err)
	}
	want := []string{"invoice_number", "client_name", "invoice_date", "due_date", "amount"}
	if len(fields) != len(want) {
		t.Fatalf("GetFields() = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestDirCatalogMissingTemplate(t *testing.T) {
	c, err := NewDirCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirCatalog() error = %v", err)
	}
	if _, err := c.GetFields(context.Background(), "nope"); err != ErrTemplateNotFound {
		t.Fatalf("GetFields() error = %v, want ErrTemplateNotFound", err)
	}
	if _, err := c.Body(context.Background(), "../escape"); err != ErrTemplateNotFound {
		t.Fatalf("Body() with path traversal error = %v, want ErrTemplateNotFound", err)
	}
}

func TestMemoryCatalog(t *testing.T) {
	c := NewMemoryCatalog([]Template{
		{ID: "invoice", DisplayName: "Invoice", Fields: []string{"client_name", "amount"}},
	})
	list, err := c.ListTemplates(context.Background())
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != "invoice" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if _, err := c.GetFields(context.Background(), "missing"); err != ErrTemplateNotFound {
		t.Fatalf("GetFields() error = %v, want ErrTemplateNotFound", err)
	}
}

func TestExtractFieldsDedupesInOrder(t *testing.T) {
	fields := ExtractFields("{{a}} {{ b }} {{a}} {{c}}")
	want := []string{"a", "b", "c"}
	if len(fields) != len(want) {
		t.Fatalf("ExtractFields() = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}
