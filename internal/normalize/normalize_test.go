package normalize

import (
	"errors"
	"testing"
	"time"
)

func TestSuffixResolverKinds(t *testing.T) {
	r := SuffixResolver{}
	cases := []struct {
		field string
		want  Kind
	}{
		{"invoice_date", KindDate},
		{"due_date", KindDate},
		{"signed_at", KindDate},
		{"delivered_on", KindDate},
		{"amount", KindNumber},
		{"invoice_number", KindNumber},
		{"item_count", KindNumber},
		{"unit_price", KindNumber},
		{"client_name", KindText},
		{"description", KindText},
		{"client_email", KindText},
	}
	for _, tc := range cases {
		if got := r.Resolve(tc.field); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.field, got, tc.want)
		}
	}
}

func TestNormalizeTextTrimsAndRejectsEmpty(t *testing.T) {
	n := New(nil)

	v, err := n.Normalize("client_name", "  Acme Corp  ")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if v.Kind != KindText || v.Text != "Acme Corp" {
		t.Fatalf("unexpected value: %+v", v)
	}

	_, err = n.Normalize("client_name", "   ")
	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("Normalize() error = %v, want *Error", err)
	}
	if nerr.Reason != ReasonEmptyValue {
		t.Fatalf("Reason = %q, want %q", nerr.Reason, ReasonEmptyValue)
	}
}

func TestNormalizeDate(t *testing.T) {
	n := New(nil)

	v, err := n.Normalize("invoice_date", "2024-05-01")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !v.Date.Equal(want) {
		t.Fatalf("Date = %v, want %v", v.Date, want)
	}
	if v.String() != "2024-05-01" {
		t.Fatalf("String() = %q, want %q", v.String(), "2024-05-01")
	}

	alt, err := n.Normalize("invoice_date", "01/05/2024")
	if err != nil {
		t.Fatalf("Normalize() alternate layout error = %v", err)
	}
	if !alt.Date.Equal(want) {
		t.Fatalf("alternate layout Date = %v, want %v", alt.Date, want)
	}

	_, err = n.Normalize("invoice_date", "2024-13-40")
	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("Normalize() error = %v, want *Error", err)
	}
	if nerr.Reason != ReasonUnparseableDate {
		t.Fatalf("Reason = %q, want %q", nerr.Reason, ReasonUnparseableDate)
	}
}

func TestNormalizeNumber(t *testing.T) {
	n := New(nil)

	v, err := n.Normalize("amount", "199.99")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if v.Number != 199.99 {
		t.Fatalf("Number = %v, want 199.99", v.Number)
	}

	currency, err := n.Normalize("amount", "$42")
	if err != nil {
		t.Fatalf("Normalize() currency prefix error = %v", err)
	}
	if currency.Number != 42 {
		t.Fatalf("Number = %v, want 42", currency.Number)
	}

	_, err = n.Normalize("amount", "a lot")
	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("Normalize() error = %v, want *Error", err)
	}
	if nerr.Reason != ReasonUnparseableNumber {
		t.Fatalf("Reason = %q, want %q", nerr.Reason, ReasonUnparseableNumber)
	}
}

func TestNormalizeIsRepeatable(t *testing.T) {
	n := New(nil)
	for i := 0; i < 3; i++ {
		v, err := n.Normalize("description", "net 30")
		if err != nil {
			t.Fatalf("Normalize() attempt %d error = %v", i, err)
		}
		if v.Text != "net 30" {
			t.Fatalf("attempt %d Text = %q, want %q", i, v.Text, "net 30")
		}
	}
}

type constResolver struct{ kind Kind }

func (c constResolver) Resolve(string) Kind { return c.kind }

func TestCustomResolver(t *testing.T) {
	n := New(constResolver{kind: KindNumber})
	if _, err := n.Normalize("anything", "not numeric"); err == nil {
		t.Fatalf("Normalize() error = nil, want unparseable number")
	}
	v, err := n.Normalize("anything", "7")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if v.Number != 7 {
		t.Fatalf("Number = %v, want 7", v.Number)
	}
}
