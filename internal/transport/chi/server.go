package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/usecase/health"
	"github.com/colloquy-ai/colloquy/internal/usecase/pipeline"
)

const maxUtteranceLen = 4000

// Error codes returned to clients.
const (
	codeBadRequest    = "bad_request"
	codeNotFound      = "not_found"
	codeInternalError = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type queryRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
}

// Server exposes the query pipeline and conversation management over HTTP.
type Server struct {
	pipeline      QueryResolver
	conversations ConversationReader
	health        HealthChecker
	cache         CacheInspector
	logger        *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline QueryResolver,
	conversations ConversationReader,
	healthSvc HealthChecker,
	cacheSvc CacheInspector,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:      pipeline,
		conversations: conversations,
		health:        healthSvc,
		cache:         cacheSvc,
		logger:        logger,
	}
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/query", s.handleQuery)
	r.Get("/v1/conversations", s.handleListConversations)
	r.Get("/v1/conversations/{id}", s.handleGetConversation)
	r.Delete("/v1/conversations/{id}", s.handleDeleteConversation)
	r.Get("/v1/cache/stats", s.handleCacheStats)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleQuery handles POST /v1/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "user_id is required")
		return
	}
	if len(req.Message) > maxUtteranceLen {
		writeError(w, http.StatusBadRequest, codeBadRequest, "message too long")
		return
	}

	resp, err := s.pipeline.Resolve(r.Context(), pipeline.Request{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Utterance:      req.Message,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListConversations handles GET /v1/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "user_id query parameter is required")
		return
	}

	items := s.conversations.List(userID)
	if items == nil {
		items = []domain.ConversationSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// handleGetConversation handles GET /v1/conversations/{id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// The buffered result rows are internal pagination state, not part of
	// the conversation's public view.
	view := *conv
	view.PreviousBuffer = nil

	writeJSON(w, http.StatusOK, view)
}

// handleDeleteConversation handles DELETE /v1/conversations/{id}.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	s.conversations.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// handleCacheStats handles GET /v1/cache/stats.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != health.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, domain.ErrConversationNotFound.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
