package session

import (
	"time"

	"github.com/mberti/formflow/internal/normalize"
)

// State enumerates the conversation phases a session can be in.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingTemplate State = "awaiting_template"
	StateCollecting       State = "collecting"
	StateConfirming       State = "confirming"
	StateDone             State = "done"
)

// TemplateRef is a template the user was offered during selection.
type TemplateRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Session is the per-user conversation state. It is owned exclusively by the
// conversation engine; the store only copies it in and out.
type Session struct {
	UserID       string `json:"user_id"`
	State        State  `json:"state"`
	TemplateID   string `json:"template_id,omitempty"`
	TemplateName string `json:"template_name,omitempty"`
	// ResumeState remembers the state a session was in when a restart
	// confirmation put it into StateConfirming.
	ResumeState State `json:"resume_state,omitempty"`
	// Offered holds the templates listed during selection; SelectTemplate
	// only accepts one of these.
	Offered        []TemplateRef              `json:"offered,omitempty"`
	FieldOrder     []string                   `json:"field_order,omitempty"`
	Cursor         int                        `json:"cursor"`
	Answers        map[string]normalize.Value `json:"answers,omitempty"`
	StartedAt      time.Time                  `json:"started_at"`
	LastActivityAt time.Time                  `json:"last_activity_at"`
}

// CurrentField returns the name of the next unanswered field.
func (s *Session) CurrentField() (string, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.FieldOrder) {
		return "", false
	}
	return s.FieldOrder[s.Cursor], true
}

// Remaining reports how many fields are still unanswered.
func (s *Session) Remaining() int {
	if s.Cursor >= len(s.FieldOrder) {
		return 0
	}
	return len(s.FieldOrder) - s.Cursor
}

func (s *Session) clone() *Session {
	c := *s
	c.Offered = append([]TemplateRef(nil), s.Offered...)
	c.FieldOrder = append([]string(nil), s.FieldOrder...)
	if s.Answers != nil {
		c.Answers = make(map[string]normalize.Value, len(s.Answers))
		for k, v := range s.Answers {
			c.Answers[k] = v
		}
	}
	return &c
}
