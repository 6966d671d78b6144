// Package engine drives the form-filling conversation: template selection,
// strictly ordered field collection, completion and hand-off to the
// submission sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mberti/formflow/internal/catalog"
	"github.com/mberti/formflow/internal/normalize"
	"github.com/mberti/formflow/internal/session"
	"github.com/mberti/formflow/internal/sink"
)

// ReplyKind classifies what the engine wants said back to the user.
type ReplyKind string

const (
	ReplyStarted        ReplyKind = "started"
	ReplyConfirmRestart ReplyKind = "confirm_restart"
	ReplyPrompt         ReplyKind = "prompt"
	ReplyRetry          ReplyKind = "retry"
	ReplyCompleted      ReplyKind = "completed"
)

// Reply is the conversational response to one inbound event.
type Reply struct {
	Kind      ReplyKind        `json:"kind"`
	Text      string           `json:"text"`
	Field     string           `json:"field,omitempty"`
	FieldKind normalize.Kind   `json:"field_kind,omitempty"`
	Reason    normalize.Reason `json:"reason,omitempty"`
	Position  int              `json:"position,omitempty"`
	Total     int              `json:"total,omitempty"`
}

// Renderer turns a completed answer set into a document artifact.
type Renderer interface {
	Render(ctx context.Context, templateID string, answers map[string]normalize.Value) (sink.Artifact, error)
}

// Engine is the per-user conversation state machine. All public operations
// serialize on a per-user lock held for the whole transition; no cross-user
// locking exists, so one user's collaborator latency never blocks another.
type Engine struct {
	store      *session.Store
	catalog    catalog.Catalog
	renderer   Renderer
	sink       sink.Store
	normalizer *normalize.Normalizer
	locks      *userLocks
	onExpire   func(userID string)
}

func New(store *session.Store, cat catalog.Catalog, renderer Renderer, submissions sink.Store, normalizer *normalize.Normalizer) *Engine {
	if normalizer == nil {
		normalizer = normalize.New(nil)
	}
	return &Engine{
		store:      store,
		catalog:    cat,
		renderer:   renderer,
		sink:       submissions,
		normalizer: normalizer,
		locks:      newUserLocks(),
	}
}

// SetExpireHook registers a callback invoked for each session removed by the
// expiry sweep.
func (e *Engine) SetExpireHook(hook func(userID string)) {
	e.onExpire = hook
}

// ActiveSessions reports how many sessions currently exist.
func (e *Engine) ActiveSessions() int {
	return e.store.Len()
}

// StartSession creates a session in the idle state. When the user already has
// material progress (collecting answers, or done and not yet finalized) the
// session moves to confirming instead and the caller must send ConfirmRestart
// to overwrite; answering while confirming resumes where the user left off.
// Duplicate starts are safe in every state.
func (e *Engine) StartSession(_ context.Context, userID string) (Reply, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	sess, err := e.store.Get(userID)
	state := noSession
	if err == nil {
		state = sess.State
	}
	next, err := transition(state, EventStart)
	if err != nil {
		return Reply{}, err
	}

	if next == session.StateConfirming {
		if sess.State != session.StateConfirming {
			sess.ResumeState = sess.State
			sess.State = session.StateConfirming
		}
		sess.LastActivityAt = time.Now().UTC()
		e.store.Put(sess)
		return Reply{
			Kind: ReplyConfirmRestart,
			Text: "You already have a form in progress. Send 'confirm' to discard it and start over, or keep answering to continue.",
		}, nil
	}

	now := time.Now().UTC()
	e.store.Put(&session.Session{
		UserID:         userID,
		State:          session.StateIdle,
		StartedAt:      now,
		LastActivityAt: now,
	})
	return Reply{
		Kind: ReplyStarted,
		Text: "Hi! I help you fill document templates. Send 'fill' to pick a template.",
	}, nil
}

// ConfirmRestart discards a session awaiting restart confirmation and
// replaces it with a fresh idle one.
func (e *Engine) ConfirmRestart(_ context.Context, userID string) (Reply, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	sess, err := e.store.Get(userID)
	state := noSession
	if err == nil {
		state = sess.State
	}
	if _, err := transition(state, EventConfirmRestart); err != nil {
		return Reply{}, err
	}

	now := time.Now().UTC()
	e.store.Put(&session.Session{
		UserID:         userID,
		State:          session.StateIdle,
		StartedAt:      now,
		LastActivityAt: now,
	})
	return Reply{
		Kind: ReplyStarted,
		Text: "Previous form discarded. Send 'fill' to pick a template.",
	}, nil
}

// BeginTemplateSelection lists the catalog and moves the session to the
// template-selection state.
func (e *Engine) BeginTemplateSelection(ctx context.Context, userID string) ([]catalog.Descriptor, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	sess, err := e.getSession(userID, EventBeginSelection)
	if err != nil {
		return nil, err
	}

	templates, err := e.catalog.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}

	offered := make([]session.TemplateRef, 0, len(templates))
	for _, t := range templates {
		offered = append(offered, session.TemplateRef{ID: t.ID, DisplayName: t.DisplayName})
	}
	sess.State = session.StateAwaitingTemplate
	sess.Offered = offered
	sess.LastActivityAt = time.Now().UTC()
	e.store.Put(sess)
	return templates, nil
}

// SelectTemplate fixes the template and its field order and returns the
// prompt for the first field.
func (e *Engine) SelectTemplate(ctx context.Context, userID, templateID string) (Reply, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	sess, err := e.getSession(userID, EventSelectTemplate)
	if err != nil {
		return Reply{}, err
	}

	var chosen *session.TemplateRef
	for i := range sess.Offered {
		if sess.Offered[i].ID == templateID {
			chosen = &sess.Offered[i]
			break
		}
	}
	if chosen == nil {
		return Reply{}, fmt.Errorf("%w: %q was not among the offered templates", ErrTemplateNotFound, templateID)
	}

	fields, err := e.catalog.GetFields(ctx, templateID)
	if err != nil {
		// Session stays in awaiting_template so selection can be retried.
		return Reply{}, fmt.Errorf("fetch fields for %q: %w", templateID, err)
	}
	if len(fields) == 0 {
		return Reply{}, fmt.Errorf("%w: template %q", ErrNoFields, templateID)
	}

	sess.State = session.StateCollecting
	sess.TemplateID = chosen.ID
	sess.TemplateName = chosen.DisplayName
	sess.FieldOrder = fields
	sess.Cursor = 0
	sess.Answers = make(map[string]normalize.Value, len(fields))
	sess.LastActivityAt = time.Now().UTC()
	e.store.Put(sess)
	return e.promptFor(sess), nil
}

// SubmitAnswer normalizes the raw value against the current field. On a
// normalization failure it returns the retry reply together with the
// *normalize.Error; the cursor and collected answers are untouched. On
// success it stores the value, advances the cursor and returns either the
// next prompt or the completion reply.
func (e *Engine) SubmitAnswer(_ context.Context, userID, rawValue string) (Reply, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	sess, err := e.getSession(userID, EventSubmitAnswer)
	if err != nil {
		return Reply{}, err
	}
	if sess.State == session.StateConfirming {
		// Answering counts as declining the restart.
		if sess.ResumeState != session.StateCollecting {
			return Reply{}, fmt.Errorf("%w: event %q in state %q", ErrInvalidState, EventSubmitAnswer, sess.State)
		}
		sess.State = session.StateCollecting
		sess.ResumeState = ""
	}

	field, ok := sess.CurrentField()
	if !ok {
		return Reply{}, fmt.Errorf("%w: no field awaiting an answer", ErrInvalidState)
	}

	value, err := e.normalizer.Normalize(field, rawValue)
	if err != nil {
		var nerr *normalize.Error
		if !errors.As(err, &nerr) {
			return Reply{}, err
		}
		sess.LastActivityAt = time.Now().UTC()
		e.store.Put(sess)
		return Reply{
			Kind:      ReplyRetry,
			Text:      fmt.Sprintf("That doesn't look right: %s. Please enter '%s' again.", nerr.Detail, field),
			Field:     field,
			FieldKind: e.normalizer.Kind(field),
			Reason:    nerr.Reason,
			Position:  sess.Cursor + 1,
			Total:     len(sess.FieldOrder),
		}, err
	}

	sess.Answers[field] = value
	sess.Cursor++
	sess.LastActivityAt = time.Now().UTC()

	if sess.Cursor == len(sess.FieldOrder) {
		sess.State = session.StateDone
		e.store.Put(sess)
		return Reply{
			Kind:  ReplyCompleted,
			Text:  fmt.Sprintf("All %d fields collected for %s. Send 'finalize' to generate your document.", len(sess.FieldOrder), sess.TemplateName),
			Total: len(sess.FieldOrder),
		}, nil
	}

	e.store.Put(sess)
	return e.promptFor(sess), nil
}

// Finalize renders the document and persists the submission, each attempted
// exactly once per call. On any sink failure the session stays done so
// Finalize can be retried without re-collecting answers; a persist failure
// does not discard a successful render.
func (e *Engine) Finalize(ctx context.Context, userID string) (sink.Artifact, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	sess, err := e.getSession(userID, EventFinalize)
	if err != nil {
		return sink.Artifact{}, err
	}
	if sess.State == session.StateConfirming {
		// Finalizing counts as declining the restart.
		if sess.ResumeState != session.StateDone {
			return sink.Artifact{}, fmt.Errorf("%w: event %q in state %q", ErrInvalidState, EventFinalize, sess.State)
		}
		sess.State = session.StateDone
		sess.ResumeState = ""
		e.store.Put(sess)
	}

	artifact, err := e.renderer.Render(ctx, sess.TemplateID, sess.Answers)
	if err != nil {
		return sink.Artifact{}, fmt.Errorf("render: %w", err)
	}

	now := time.Now().UTC()
	sub := sink.Submission{
		ID:           uuid.NewString(),
		UserID:       sess.UserID,
		TemplateID:   sess.TemplateID,
		Answers:      sess.Answers,
		ArtifactPath: artifact.Path,
		RenderedAt:   artifact.RenderedAt,
		CreatedAt:    now,
	}
	if err := e.sink.SaveSubmission(ctx, sub); err != nil {
		return artifact, fmt.Errorf("persist submission: %w", err)
	}

	e.store.Remove(userID)
	return artifact, nil
}

// Cancel removes the user's session unconditionally. It is idempotent.
func (e *Engine) Cancel(_ context.Context, userID string) {
	unlock := e.locks.acquire(userID)
	defer unlock()
	e.store.Remove(userID)
}

// ExpireBefore removes sessions whose last activity is older than cutoff,
// regardless of state, and returns how many were removed. Each removal takes
// the same per-user lock as live transitions so the sweep never races an
// in-flight event.
func (e *Engine) ExpireBefore(cutoff time.Time) int {
	removed := 0
	for _, userID := range e.store.ListExpired(cutoff) {
		unlock := e.locks.acquire(userID)
		sess, err := e.store.Get(userID)
		if err == nil && sess.LastActivityAt.Before(cutoff) {
			e.store.Remove(userID)
			removed++
			if e.onExpire != nil {
				e.onExpire(userID)
			}
		}
		unlock()
	}
	return removed
}

// StartJanitor sweeps idle sessions on a fixed interval until ctx is done.
func (e *Engine) StartJanitor(ctx context.Context, interval, idleTimeout time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := e.ExpireBefore(time.Now().UTC().Add(-idleTimeout)); n > 0 {
					log.Printf("expired %d idle session(s)", n)
				}
			}
		}
	}()
}

// getSession loads the user's session and checks the event against the
// transition table. Callers apply the data-dependent parts themselves.
func (e *Engine) getSession(userID string, event EventKind) (*session.Session, error) {
	sess, err := e.store.Get(userID)
	state := noSession
	if err == nil {
		state = sess.State
	}
	if _, terr := transition(state, event); terr != nil {
		return nil, terr
	}
	return sess, nil
}

func (e *Engine) promptFor(sess *session.Session) Reply {
	field, _ := sess.CurrentField()
	kind := e.normalizer.Kind(field)
	return Reply{
		Kind:      ReplyPrompt,
		Text:      fmt.Sprintf("Please enter a value for '%s' (%s, %d of %d):", field, kind, sess.Cursor+1, len(sess.FieldOrder)),
		Field:     field,
		FieldKind: kind,
		Position:  sess.Cursor + 1,
		Total:     len(sess.FieldOrder),
	}
}
