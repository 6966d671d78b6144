package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mberti/formflow/internal/catalog"
	"github.com/mberti/formflow/internal/config"
	"github.com/mberti/formflow/internal/engine"
	"github.com/mberti/formflow/internal/normalize"
	"github.com/mberti/formflow/internal/observability"
	"github.com/mberti/formflow/internal/sink"
)

type Server struct {
	cfg         config.Config
	engine      *engine.Engine
	catalog     catalog.Catalog
	submissions sink.Store
	metrics     *observability.Metrics
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, eng *engine.Engine, cat catalog.Catalog, submissions sink.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:         cfg,
		engine:      eng,
		catalog:     cat,
		submissions: submissions,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up; non-browser clients
				// omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleStartSession)
	r.Post("/v1/sessions/{userID}/fill", s.handleBeginFill)
	r.Post("/v1/sessions/{userID}/template", s.handleSelectTemplate)
	r.Post("/v1/sessions/{userID}/answers", s.handleSubmitAnswer)
	r.Post("/v1/sessions/{userID}/confirm", s.handleConfirmRestart)
	r.Post("/v1/sessions/{userID}/finalize", s.handleFinalize)
	r.Delete("/v1/sessions/{userID}", s.handleCancel)

	r.Get("/v1/templates", s.handleListTemplates)
	r.Get("/v1/submissions", s.handleListSubmissions)

	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode(),
	})
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	reply, err := s.engine.StartSession(r.Context(), req.UserID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.observeSessionEvent("started")
	respondJSON(w, http.StatusCreated, reply)
}

func (s *Server) handleBeginFill(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	templates, err := s.engine.BeginTemplateSelection(r.Context(), userID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.observeSessionEvent("selection_started")
	respondJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

type selectTemplateRequest struct {
	TemplateID string `json:"template_id"`
}

func (s *Server) handleSelectTemplate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req selectTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "template_id is required")
		return
	}

	reply, err := s.engine.SelectTemplate(r.Context(), userID, req.TemplateID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.observeSessionEvent("template_selected")
	respondJSON(w, http.StatusOK, reply)
}

type submitAnswerRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req submitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, err := s.engine.SubmitAnswer(r.Context(), userID, req.Value)
	if err != nil {
		var nerr *normalize.Error
		if errors.As(err, &nerr) {
			// Bad input is a conversational reply, not a transport error:
			// the session is unchanged and the same field is re-prompted.
			s.metrics.NormalizationFailures.WithLabelValues(string(nerr.Reason)).Inc()
			respondJSON(w, http.StatusOK, reply)
			return
		}
		s.respondEngineError(w, err)
		return
	}
	s.observeSessionEvent("answer_accepted")
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleConfirmRestart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	reply, err := s.engine.ConfirmRestart(r.Context(), userID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.observeSessionEvent("restarted")
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	start := time.Now()
	artifact, err := s.engine.Finalize(r.Context(), userID)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			s.respondEngineError(w, err)
			return
		}
		s.metrics.Submissions.WithLabelValues("failed").Inc()
		respondError(w, http.StatusBadGateway, "finalize_failed", err.Error())
		return
	}
	s.metrics.Submissions.WithLabelValues("ok").Inc()
	s.metrics.ObserveFinalizeLatency(time.Since(start))
	s.observeSessionEvent("finalized")
	respondJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.engine.Cancel(r.Context(), userID)
	s.observeSessionEvent("cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.catalog.ListTemplates(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter user_id is required")
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	subs, err := s.submissions.ListSubmissions(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusBadGateway, "store_unavailable", err.Error())
		return
	}
	if subs == nil {
		subs = []sink.Submission{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidState):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, engine.ErrTemplateNotFound):
		respondError(w, http.StatusNotFound, "template_not_found", err.Error())
	case errors.Is(err, engine.ErrNoTemplates):
		respondError(w, http.StatusNotFound, "no_templates_available", err.Error())
	case errors.Is(err, engine.ErrNoFields):
		respondError(w, http.StatusUnprocessableEntity, "no_fields_detected", err.Error())
	case errors.Is(err, catalog.ErrTemplateUnavailable):
		respondError(w, http.StatusBadGateway, "template_unavailable", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "collaborator_error", err.Error())
	}
}

func (s *Server) observeSessionEvent(event string) {
	s.metrics.SessionEvents.WithLabelValues(event).Inc()
	s.metrics.ActiveSessions.Set(float64(s.engine.ActiveSessions()))
}

func (s *Server) storeMode() string {
	if _, ok := s.submissions.(*sink.PostgresStore); ok {
		return "postgres"
	}
	return "in-memory"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
