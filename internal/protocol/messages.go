// Package protocol defines the chat websocket message vocabulary.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType identifies websocket payload variants.
type EventType string

// Client → server events. These are the inbound event kinds of the
// conversation; delivery is at-least-once, so start and cancel must be safe
// to receive duplicated.
const (
	TypeStart           EventType = "start"
	TypeFill            EventType = "fill"
	TypeChooseTemplate  EventType = "choose_template"
	TypeAnswer          EventType = "answer"
	TypeConfirmRestart  EventType = "confirm_restart"
	TypeFinalize        EventType = "finalize"
	TypeCancel          EventType = "cancel"
	TypeHelp            EventType = "help"
)

// Server → client events.
const (
	TypePrompt       EventType = "prompt"
	TypeTemplateList EventType = "template_list"
	TypeCompleted    EventType = "completed"
	TypeArtifact     EventType = "artifact"
	TypeErrorEvent   EventType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported event type")

// ClientEvent is one inbound user event: who sent it, what kind it is, and
// the kind-specific payload (template id for choose_template, raw value for
// answer).
type ClientEvent struct {
	Type    EventType `json:"type"`
	UserID  string    `json:"user_id"`
	Payload string    `json:"payload,omitempty"`
}

// ParseClientEvent decodes and validates a raw websocket text frame.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ClientEvent{}, fmt.Errorf("decode client event: %w", err)
	}
	ev.UserID = strings.TrimSpace(ev.UserID)
	if ev.UserID == "" {
		return ClientEvent{}, errors.New("client event missing user_id")
	}
	switch ev.Type {
	case TypeStart, TypeFill, TypeChooseTemplate, TypeAnswer, TypeConfirmRestart, TypeFinalize, TypeCancel, TypeHelp:
		return ev, nil
	default:
		return ClientEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ev.Type)
	}
}

// PromptEvent carries the next thing to say to the user: a field prompt, a
// retry prompt, or a free-form message.
type PromptEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Field     string    `json:"field,omitempty"`
	FieldKind string    `json:"field_kind,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Position  int       `json:"position,omitempty"`
	Total     int       `json:"total,omitempty"`
}

// TemplateListEvent offers the selectable templates.
type TemplateListEvent struct {
	Type      EventType          `json:"type"`
	UserID    string             `json:"user_id"`
	Templates []TemplateListItem `json:"templates"`
}

type TemplateListItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// CompletedEvent signals that all fields are collected.
type CompletedEvent struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	Text   string    `json:"text"`
	Total  int       `json:"total"`
}

// ArtifactEvent hands back the finished document.
type ArtifactEvent struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	ArtifactID string    `json:"artifact_id"`
	Path       string    `json:"path"`
	Bytes      int       `json:"bytes"`
	RenderedAt string    `json:"rendered_at"`
}

// ErrorEvent surfaces a recoverable failure to the client.
type ErrorEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Retryable bool      `json:"retryable"`
	Detail    string    `json:"detail"`
}
