// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/common/observability"
	"pos-assistant/internal/history"
	"pos-assistant/internal/models"
	"pos-assistant/internal/pipeline"
)

// MessageHandler is the pipeline surface the server consumes.
type MessageHandler interface {
	HandleMessage(ctx context.Context, tenantID, utterance string, history []models.Turn) (*pipeline.Response, error)
}

// ChatRequest is one inbound user message for a tenant.
type ChatRequest struct {
	TenantID string `json:"tenantId"`
	Message  string `json:"message"`
}

// ChatResponse mirrors the pipeline response over the wire.
type ChatResponse struct {
	Answer   string                 `json:"answer"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the thin HTTP glue in front of the pipeline. It owns no
// business logic: it loads history, runs the orchestrator, persists the
// exchange, and serializes the answer.
type Server struct {
	orchestrators map[string]MessageHandler
	history       *history.Store
	obs           *observability.Observability
	log           logger.Logger
}

func New(orchestrators map[string]MessageHandler, hist *history.Store, obs *observability.Observability, log logger.Logger) *Server {
	return &Server{
		orchestrators: orchestrators,
		history:       hist,
		obs:           obs,
		log:           log.With(map[string]interface{}{"component": "server"}),
	}
}

// Routes builds the HTTP handler. Metrics are served separately so the
// chat listener can be exposed without them.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Message = strings.TrimSpace(req.Message)
	if req.TenantID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenantId and message are required"})
		return
	}

	orch, ok := s.orchestrators[req.TenantID]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown tenant"})
		return
	}

	ctx := r.Context()
	turns, err := s.history.Recent(ctx, req.TenantID)
	if err != nil {
		// History is an aid, not a dependency; classification still
		// works without it.
		s.log.Warn("History read failed", map[string]interface{}{
			"tenant_id": req.TenantID,
			"error":     err.Error(),
		})
		turns = nil
	}

	start := time.Now()
	resp, err := orch.HandleMessage(ctx, req.TenantID, req.Message, turns)
	if resp == nil {
		resp = &pipeline.Response{Metadata: map[string]interface{}{}}
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	intent := ""
	if v, ok := resp.Metadata["intent"].(string); ok {
		intent = v
	}
	s.obs.RecordMessageProcessed(ctx, intent, status)
	s.obs.RecordMessageDuration(ctx, time.Since(start), status)

	if err != nil {
		s.log.Error("Pipeline failed", map[string]interface{}{
			"tenant_id": req.TenantID,
			"error":     err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, ChatResponse{Answer: resp.Answer, Metadata: resp.Metadata})
		return
	}

	s.appendExchange(r, req, resp.Answer)
	writeJSON(w, http.StatusOK, ChatResponse{Answer: resp.Answer, Metadata: resp.Metadata})
}

func (s *Server) appendExchange(r *http.Request, req ChatRequest, answer string) {
	ctx := r.Context()
	for _, turn := range []models.Turn{
		{Role: models.RoleUser, Content: req.Message},
		{Role: models.RoleAssistant, Content: answer},
	} {
		if err := s.history.Append(ctx, req.TenantID, turn); err != nil {
			s.log.Warn("History append failed", map[string]interface{}{
				"tenant_id": req.TenantID,
				"error":     err.Error(),
			})
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
