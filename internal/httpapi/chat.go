package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mberti/formflow/internal/catalog"
	"github.com/mberti/formflow/internal/engine"
	"github.com/mberti/formflow/internal/normalize"
	"github.com/mberti/formflow/internal/protocol"
)

const helpText = "Commands: 'start' to begin, 'fill' to pick a template, 'choose_template' to select one, " +
	"'answer' to fill the current field, 'finalize' to generate the document, 'cancel' to abort."

// handleChatWS is the inbound event source: it reads client events off one
// websocket connection and feeds them to the conversation engine. Events for
// the same user are serialized by the engine's per-user lock even when the
// user has several connections open.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.observeSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	send := func(msg any, msgType protocol.EventType) {
		select {
		case outbound <- msg:
			s.metrics.WSMessages.WithLabelValues("outbound", string(msgType)).Inc()
		default:
			// Keep websocket writes single-threaded; drop if the outbound
			// queue is saturated.
			s.metrics.WSMessages.WithLabelValues("outbound", "drop_full").Inc()
		}
	}

	conn.SetReadLimit(64 << 10)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ev, err := protocol.ParseClientEvent(data)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_event",
				Detail: err.Error(),
			}, protocol.TypeErrorEvent)
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", string(ev.Type)).Inc()

		for _, msg := range s.dispatchChatEvent(ctx, ev) {
			send(msg, eventTypeOf(msg))
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-writerDone
	s.observeSessionEvent("ws_disconnected")
}

// dispatchChatEvent runs one client event through the engine and translates
// the outcome into server events.
func (s *Server) dispatchChatEvent(ctx context.Context, ev protocol.ClientEvent) []any {
	switch ev.Type {
	case protocol.TypeStart:
		reply, err := s.engine.StartSession(ctx, ev.UserID)
		if err != nil {
			return []any{chatError(ev.UserID, err)}
		}
		s.observeSessionEvent("started")
		return []any{promptEvent(ev.UserID, reply)}

	case protocol.TypeFill:
		templates, err := s.engine.BeginTemplateSelection(ctx, ev.UserID)
		if err != nil {
			return []any{chatError(ev.UserID, err)}
		}
		s.observeSessionEvent("selection_started")
		items := make([]protocol.TemplateListItem, 0, len(templates))
		for _, t := range templates {
			items = append(items, protocol.TemplateListItem{ID: t.ID, DisplayName: t.DisplayName})
		}
		return []any{protocol.TemplateListEvent{
			Type:      protocol.TypeTemplateList,
			UserID:    ev.UserID,
			Templates: items,
		}}

	case protocol.TypeChooseTemplate:
		reply, err := s.engine.SelectTemplate(ctx, ev.UserID, ev.Payload)
		if err != nil {
			return []any{chatError(ev.UserID, err)}
		}
		s.observeSessionEvent("template_selected")
		return []any{promptEvent(ev.UserID, reply)}

	case protocol.TypeAnswer:
		reply, err := s.engine.SubmitAnswer(ctx, ev.UserID, ev.Payload)
		if err != nil {
			var nerr *normalize.Error
			if errors.As(err, &nerr) {
				s.metrics.NormalizationFailures.WithLabelValues(string(nerr.Reason)).Inc()
				return []any{promptEvent(ev.UserID, reply)}
			}
			return []any{chatError(ev.UserID, err)}
		}
		s.observeSessionEvent("answer_accepted")
		if reply.Kind == engine.ReplyCompleted {
			return []any{protocol.CompletedEvent{
				Type:   protocol.TypeCompleted,
				UserID: ev.UserID,
				Text:   reply.Text,
				Total:  reply.Total,
			}}
		}
		return []any{promptEvent(ev.UserID, reply)}

	case protocol.TypeConfirmRestart:
		reply, err := s.engine.ConfirmRestart(ctx, ev.UserID)
		if err != nil {
			return []any{chatError(ev.UserID, err)}
		}
		s.observeSessionEvent("restarted")
		return []any{promptEvent(ev.UserID, reply)}

	case protocol.TypeFinalize:
		start := time.Now()
		artifact, err := s.engine.Finalize(ctx, ev.UserID)
		if err != nil {
			if !errors.Is(err, engine.ErrInvalidState) {
				s.metrics.Submissions.WithLabelValues("failed").Inc()
			}
			return []any{chatError(ev.UserID, err)}
		}
		s.metrics.Submissions.WithLabelValues("ok").Inc()
		s.metrics.ObserveFinalizeLatency(time.Since(start))
		s.observeSessionEvent("finalized")
		return []any{protocol.ArtifactEvent{
			Type:       protocol.TypeArtifact,
			UserID:     ev.UserID,
			ArtifactID: artifact.ID,
			Path:       artifact.Path,
			Bytes:      artifact.Bytes,
			RenderedAt: artifact.RenderedAt.Format(time.RFC3339),
		}}

	case protocol.TypeCancel:
		s.engine.Cancel(ctx, ev.UserID)
		s.observeSessionEvent("cancelled")
		return []any{protocol.PromptEvent{
			Type:   protocol.TypePrompt,
			UserID: ev.UserID,
			Kind:   "cancelled",
			Text:   "Operation cancelled.",
		}}

	case protocol.TypeHelp:
		return []any{protocol.PromptEvent{
			Type:   protocol.TypePrompt,
			UserID: ev.UserID,
			Kind:   "help",
			Text:   helpText,
		}}
	}
	return nil
}

func promptEvent(userID string, reply engine.Reply) protocol.PromptEvent {
	return protocol.PromptEvent{
		Type:      protocol.TypePrompt,
		UserID:    userID,
		Kind:      string(reply.Kind),
		Text:      reply.Text,
		Field:     reply.Field,
		FieldKind: string(reply.FieldKind),
		Reason:    string(reply.Reason),
		Position:  reply.Position,
		Total:     reply.Total,
	}
}

func chatError(userID string, err error) protocol.ErrorEvent {
	code := "collaborator_error"
	retryable := true
	switch {
	case errors.Is(err, engine.ErrInvalidState):
		code, retryable = "invalid_state", false
	case errors.Is(err, engine.ErrTemplateNotFound):
		code = "template_not_found"
	case errors.Is(err, engine.ErrNoTemplates):
		code = "no_templates_available"
	case errors.Is(err, engine.ErrNoFields):
		code = "no_fields_detected"
	case errors.Is(err, catalog.ErrTemplateUnavailable):
		code = "template_unavailable"
	}
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		UserID:    userID,
		Code:      code,
		Retryable: retryable,
		Detail:    err.Error(),
	}
}

func eventTypeOf(v any) protocol.EventType {
	switch m := v.(type) {
	case protocol.PromptEvent:
		return m.Type
	case protocol.TemplateListEvent:
		return m.Type
	case protocol.CompletedEvent:
		return m.Type
	case protocol.ArtifactEvent:
		return m.Type
	case protocol.ErrorEvent:
		return m.Type
	default:
		return ""
	}
}
