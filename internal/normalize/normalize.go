package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies the value shape a field expects.
type Kind string

const (
	KindText   Kind = "text"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
)

// Reason identifies why a raw value was rejected.
type Reason string

const (
	ReasonEmptyValue        Reason = "empty_value"
	ReasonUnparseableDate   Reason = "unparseable_date"
	ReasonUnparseableNumber Reason = "unparseable_number"
)

// Error reports a rejected answer. It is the only failure mode of Normalize;
// normalization never panics and never mutates anything, so a caller may retry
// the same field any number of times.
type Error struct {
	Field  string
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("field %q: %s (%s)", e.Field, e.Reason, e.Detail)
}

// Value is a normalized answer. Exactly one of Text, Date or Number is
// meaningful, selected by Kind.
type Value struct {
	Kind   Kind      `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Date   time.Time `json:"date,omitempty"`
	Number float64   `json:"number,omitempty"`
}

// String renders the value the way it should appear in a filled document.
func (v Value) String() string {
	switch v.Kind {
	case KindDate:
		return v.Date.Format(dateLayout)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return v.Text
	}
}

// KindResolver infers the expected kind of a field from its name. The default
// suffix-convention resolver can be swapped for a stricter schema without
// touching the conversation engine.
type KindResolver interface {
	Resolve(fieldName string) Kind
}

const dateLayout = "2006-01-02"

// Date layouts accepted from users, tried in order.
var dateLayouts = []string{
	dateLayout,
	"02/01/2006",
	"02.01.2006",
	"January 2, 2006",
}

var (
	dateSuffixes   = []string{"_date", "_at", "_on", "date"}
	numberSuffixes = []string{"_amount", "amount", "_number", "_count", "_qty", "price", "total"}
)

// SuffixResolver infers field kinds from naming conventions: date-like
// suffixes parse as calendar dates, numeric-like suffixes as numbers, and
// everything else is free text.
type SuffixResolver struct{}

func (SuffixResolver) Resolve(fieldName string) Kind {
	name := strings.ToLower(strings.TrimSpace(fieldName))
	for _, suffix := range dateSuffixes {
		if strings.HasSuffix(name, suffix) {
			return KindDate
		}
	}
	for _, suffix := range numberSuffixes {
		if strings.HasSuffix(name, suffix) {
			return KindNumber
		}
	}
	return KindText
}

// Normalizer validates and coerces raw answers. The zero value is not usable;
// construct with New.
type Normalizer struct {
	resolver KindResolver
}

func New(resolver KindResolver) *Normalizer {
	if resolver == nil {
		resolver = SuffixResolver{}
	}
	return &Normalizer{resolver: resolver}
}

// Kind reports the inferred kind for a field name.
func (n *Normalizer) Kind(fieldName string) Kind {
	return n.resolver.Resolve(fieldName)
}

// Normalize validates rawValue against the kind inferred for fieldName. It is
// deterministic and side-effect free.
func (n *Normalizer) Normalize(fieldName, rawValue string) (Value, error) {
	raw := strings.TrimSpace(rawValue)
	if raw == "" {
		return Value{}, &Error{Field: fieldName, Reason: ReasonEmptyValue, Detail: "value is empty"}
	}

	switch n.resolver.Resolve(fieldName) {
	case KindDate:
		return parseDate(fieldName, raw)
	case KindNumber:
		return parseNumber(fieldName, raw)
	default:
		return Value{Kind: KindText, Text: raw}, nil
	}
}

func parseDate(fieldName, raw string) (Value, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Value{Kind: KindDate, Date: t}, nil
		}
	}
	return Value{}, &Error{
		Field:  fieldName,
		Reason: ReasonUnparseableDate,
		Detail: fmt.Sprintf("%q is not a recognizable date, expected e.g. %s", raw, dateLayout),
	}
}

func parseNumber(fieldName, raw string) (Value, error) {
	cleaned := strings.TrimSpace(strings.TrimLeft(raw, "$€£ "))
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Value{}, &Error{
			Field:  fieldName,
			Reason: ReasonUnparseableNumber,
			Detail: fmt.Sprintf("%q is not a number", raw),
		}
	}
	return Value{Kind: KindNumber, Number: f}, nil
}
