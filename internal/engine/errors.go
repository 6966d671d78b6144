package engine

import "errors"

// Conversation error taxonomy. All of these are recoverable and scoped to
// one user's session; none is fatal to the process.
var (
	// ErrInvalidState means the event is not valid for the session's current
	// state (including "no active session").
	ErrInvalidState = errors.New("invalid state for event")
	// ErrNoTemplates means the catalog has nothing to offer.
	ErrNoTemplates = errors.New("no templates available")
	// ErrTemplateNotFound means the chosen id was not among the offered
	// templates.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrNoFields means the chosen template has no fillable fields and is
	// not accepted.
	ErrNoFields = errors.New("no fillable fields detected")
)
