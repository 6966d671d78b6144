package sink

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mberti/formflow/internal/normalize"
)

type staticSource struct{ body string }

func (s staticSource) Body(context.Context, string) (string, error) { return s.body, nil }

func TestRendererFillsPlaceholders(t *testing.T) {
	outDir := t.TempDir()
	r := NewRenderer(staticSource{body: "Bill {{client_name}} for {{amount}} on {{invoice_date}}."}, outDir)

	answers := map[string]normalize.Value{
		"client_name":  {Kind: normalize.KindText, Text: "Acme"},
		"amount":       {Kind: normalize.KindNumber, Number: 199.99},
		"invoice_date": {Kind: normalize.KindDate, Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	artifact, err := r.Render(context.Background(), "invoice", answers)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if artifact.ID == "" || artifact.TemplateID != "invoice" {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	got := string(data)
	want := "Bill Acme for 199.99 on 2024-05-01."
	if got != want {
		t.Fatalf("rendered = %q, want %q", got, want)
	}
	if artifact.Bytes != len(want) {
		t.Fatalf("Bytes = %d, want %d", artifact.Bytes, len(want))
	}
}

func TestRendererLeavesUnknownSlots(t *testing.T) {
	r := NewRenderer(staticSource{body: "Hello {{missing}}"}, t.TempDir())
	artifact, err := r.Render(context.Background(), "greeting", nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	data, _ := os.ReadFile(artifact.Path)
	if !strings.Contains(string(data), "{{missing}}") {
		t.Fatalf("unanswered slot was removed: %q", string(data))
	}
}

func TestMemoryStoreSaveAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.SaveSubmission(ctx, Submission{
			UserID:     "u1",
			TemplateID: "invoice",
			Answers:    map[string]normalize.Value{"client_name": {Kind: normalize.KindText, Text: "Acme"}},
		})
		if err != nil {
			t.Fatalf("SaveSubmission() error = %v", err)
		}
	}

	subs, err := store.ListSubmissions(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("ListSubmissions() returned %d, want 2", len(subs))
	}
	if subs[0].ID == "" || subs[0].CreatedAt.IsZero() {
		t.Fatalf("submission missing generated id or timestamp: %+v", subs[0])
	}

	none, err := store.ListSubmissions(ctx, "nobody", 5)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if none != nil {
		t.Fatalf("ListSubmissions() for unknown user = %v, want nil", none)
	}
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "   ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("NewStore() with empty URL = %T, want *MemoryStore", store)
	}
}
