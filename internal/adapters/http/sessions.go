package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/PabloGalante/brandbot/internal/app/conversation"
	"github.com/PabloGalante/brandbot/internal/domain"
)

const defaultTimelineLimit = 50

// ─────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────

type createSessionRequest struct {
	Language string `json:"language"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	Language   string    `json:"language"`
	AgentName  string    `json:"agentName"`
	BrandColor string    `json:"brandColor,omitempty"`
	Closed     bool      `json:"closed"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type turnResponse struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"sessionId"`
	Role         string           `json:"role"`
	Text         string           `json:"text"`
	ProductCards []domain.Product `json:"productCards,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

type createSessionResponse struct {
	Session  sessionResponse `json:"session"`
	Greeting turnResponse    `json:"greeting"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserTurn  turnResponse `json:"userTurn"`
	AgentTurn turnResponse `json:"agentTurn"`
}

type sessionTimelineResponse struct {
	Session sessionResponse `json:"session"`
	Turns   []turnResponse  `json:"turns"`
}

func toSessionResponse(sess *domain.Session) sessionResponse {
	out := sessionResponse{
		ID:        string(sess.ID),
		Language:  string(sess.Language),
		Closed:    sess.Closed,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
	if sess.Profile != nil {
		out.AgentName = sess.Profile.AgentName
		out.BrandColor = sess.Profile.BrandColor
	}
	return out
}

func toTurnResponse(t *domain.Turn) turnResponse {
	return turnResponse{
		ID:           string(t.ID),
		SessionID:    string(t.SessionID),
		Role:         string(t.Role),
		Text:         t.Text,
		ProductCards: t.ProductCards,
		CreatedAt:    t.CreatedAt,
	}
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var req createSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	lang := s.defaultLang
	if req.Language != "" {
		lang = domain.ParseLanguage(req.Language)
	}

	out, err := s.conv.StartSession(r.Context(), conversation.StartSessionInput{
		Token:    acc.Token,
		Language: lang,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session:  toSessionResponse(out.Session),
		Greeting: toTurnResponse(out.Greeting),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	limit := defaultTimelineLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sess, turns, err := s.conv.GetSessionTimeline(r.Context(), domain.SessionID(r.PathValue("id")), acc.Token, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := sessionTimelineResponse{
		Session: toSessionResponse(sess),
		Turns:   make([]turnResponse, 0, len(turns)),
	}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, toTurnResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	if err := s.conv.CloseSession(r.Context(), domain.SessionID(r.PathValue("id")), acc.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := s.conv.SendMessage(r.Context(), conversation.SendMessageInput{
		SessionID: domain.SessionID(r.PathValue("id")),
		Token:     acc.Token,
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		UserTurn:  toTurnResponse(out.UserTurn),
		AgentTurn: toTurnResponse(out.AgentTurn),
	})
}
