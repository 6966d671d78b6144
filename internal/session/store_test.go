package session

import (
	"testing"
	"time"

	"github.com/mberti/formflow/internal/normalize"
)

func TestStorePutGetRemove(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	store.Put(&Session{UserID: "u1", State: StateIdle, StartedAt: now, LastActivityAt: now})

	got, err := store.Get("u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateIdle || got.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	store.Remove("u1")
	if _, err := store.Get("u1"); err != ErrNotFound {
		t.Fatalf("Get() after Remove error = %v, want ErrNotFound", err)
	}

	// Removing again must be a no-op, not an error.
	store.Remove("u1")
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	store.Put(&Session{
		UserID:         "u1",
		State:          StateCollecting,
		FieldOrder:     []string{"client_name", "amount"},
		Answers:        map[string]normalize.Value{"client_name": {Kind: normalize.KindText, Text: "Acme"}},
		StartedAt:      now,
		LastActivityAt: now,
	})

	got, _ := store.Get("u1")
	got.Answers["amount"] = normalize.Value{Kind: normalize.KindNumber, Number: 1}
	got.FieldOrder[0] = "mutated"

	again, _ := store.Get("u1")
	if _, ok := again.Answers["amount"]; ok {
		t.Fatalf("mutation of returned session leaked into store")
	}
	if again.FieldOrder[0] != "client_name" {
		t.Fatalf("FieldOrder[0] = %q, want %q", again.FieldOrder[0], "client_name")
	}
}

func TestStoreListExpired(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	store.Put(&Session{UserID: "stale", State: StateCollecting, LastActivityAt: now.Add(-time.Hour)})
	store.Put(&Session{UserID: "fresh", State: StateCollecting, LastActivityAt: now})

	expired := store.ListExpired(now.Add(-time.Minute))
	if len(expired) != 1 || expired[0] != "stale" {
		t.Fatalf("ListExpired() = %v, want [stale]", expired)
	}
}

func TestSessionCurrentField(t *testing.T) {
	s := &Session{FieldOrder: []string{"a", "b"}, Cursor: 1}
	field, ok := s.CurrentField()
	if !ok || field != "b" {
		t.Fatalf("CurrentField() = %q, %v, want b, true", field, ok)
	}
	s.Cursor = 2
	if _, ok := s.CurrentField(); ok {
		t.Fatalf("CurrentField() past end should report false")
	}
	if s.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", s.Remaining())
	}
}
