package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PabloGalante/brandbot/internal/app/conversation"
	"github.com/PabloGalante/brandbot/internal/app/workspace"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const maxBodyBytes = 32 << 20

type Server struct {
	workspace   *workspace.Service
	conv        *conversation.Service
	tokens      domain.TokenValidator
	defaultLang domain.Language
}

type Option func(*Server)

func WithDefaultLanguage(l domain.Language) Option {
	return func(s *Server) { s.defaultLang = l }
}

func NewServer(ws *workspace.Service, conv *conversation.Service, tokens domain.TokenValidator, opts ...Option) http.Handler {
	s := &Server{workspace: ws, conv: conv, tokens: tokens, defaultLang: domain.LangES}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Operator console
	mux.HandleFunc("GET /workspace", s.authenticated(s.handleGetWorkspace))
	mux.HandleFunc("DELETE /workspace", s.authenticated(s.handleResetWorkspace))
	mux.HandleFunc("PUT /workspace/items", s.authenticated(s.handleReplaceItems))
	mux.HandleFunc("POST /workspace/items", s.authenticated(s.handleAddItem))
	mux.HandleFunc("DELETE /workspace/items/{id}", s.authenticated(s.handleDeleteItem))
	mux.HandleFunc("PUT /workspace/contacts", s.authenticated(s.handleSetContacts))
	mux.HandleFunc("POST /workspace/rules", s.authenticated(s.handleAddRule))
	mux.HandleFunc("POST /workspace/train", s.authenticated(s.handleTrain))
	mux.HandleFunc("GET /workspace/train", s.authenticated(s.handleTrainStatus))
	mux.HandleFunc("PATCH /workspace/profile", s.authenticated(s.handlePatchProfile))
	mux.HandleFunc("GET /workspace/embed", s.authenticated(s.handleEmbed))

	// Chat simulator
	mux.HandleFunc("POST /sessions", s.authenticated(s.handleCreateSession))
	mux.HandleFunc("GET /sessions/{id}", s.authenticated(s.handleGetSession))
	mux.HandleFunc("DELETE /sessions/{id}", s.authenticated(s.handleCloseSession))
	mux.HandleFunc("POST /sessions/{id}/messages", s.authenticated(s.handleSendMessage))

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

// writeError maps domain errors onto status codes. Unknown errors are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var synthErr *domain.SynthesisError
	status, msg := http.StatusInternalServerError, "internal server error"

	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyContext):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrInactiveAccount):
		status, msg = http.StatusForbidden, "account is not active"
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrTurnInFlight), errors.Is(err, domain.ErrTrainingRunning):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrSessionClosed):
		status, msg = http.StatusGone, "session closed"
	case errors.As(err, &synthErr):
		status, msg = http.StatusBadGateway, "profile generation failed, please retry"
	}

	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
