package httpadapter

import (
	"net/http"
	"time"

	"github.com/PabloGalante/brandbot/internal/app/workspace"
	"github.com/PabloGalante/brandbot/internal/domain"
)

// ─────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────

type itemResponse struct {
	ID       string             `json:"id"`
	Type     domain.ContextKind `json:"type"`
	Content  string             `json:"content"`
	FileName string             `json:"fileName,omitempty"`
	MimeType string             `json:"mimeType,omitempty"`
	HasFile  bool               `json:"hasFile,omitempty"`
}

type workspaceResponse struct {
	Profile   *domain.AgentProfile `json:"profile"`
	Items     []itemResponse       `json:"items"`
	Status    workspace.Status     `json:"status"`
	UpdatedAt *time.Time           `json:"updatedAt,omitempty"`
}

type replaceItemsRequest struct {
	Items []domain.ContextItem `json:"items"`
}

type addRuleRequest struct {
	Text string `json:"text"`
}

type trainRequest struct {
	Language string `json:"language"`
}

type trainResponse struct {
	Profile  *domain.AgentProfile `json:"profile"`
	Warnings []string             `json:"warnings,omitempty"`
}

type embedResponse struct {
	Snippet string `json:"snippet"`
}

func toItemResponse(it domain.ContextItem) itemResponse {
	return itemResponse{
		ID:       it.ID,
		Type:     it.Kind,
		Content:  it.Content,
		FileName: it.FileName,
		MimeType: it.MimeType,
		HasFile:  len(it.FileData) > 0 || it.BlobRef != "",
	}
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	ws, status, err := s.workspace.Snapshot(r.Context(), acc.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := workspaceResponse{
		Profile: ws.Profile,
		Items:   make([]itemResponse, 0, len(ws.Items)),
		Status:  status,
	}
	for _, it := range ws.Items {
		resp.Items = append(resp.Items, toItemResponse(it))
	}
	if !ws.UpdatedAt.IsZero() {
		resp.UpdatedAt = &ws.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResetWorkspace(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	if err := s.workspace.Reset(r.Context(), acc.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceItems(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var req replaceItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.workspace.SetItems(r.Context(), acc.Token, req.Items); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var item domain.ContextItem
	if !decodeJSON(w, r, &item) {
		return
	}
	added, err := s.workspace.AddItem(r.Context(), acc.Token, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(added))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	if err := s.workspace.RemoveItem(r.Context(), acc.Token, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetContacts(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var req domain.ContactInfo
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.workspace.SetContacts(r.Context(), acc.Token, req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var req addRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.workspace.AddRule(r.Context(), acc.Token, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var req trainRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	lang := s.defaultLang
	if req.Language != "" {
		lang = domain.ParseLanguage(req.Language)
	}

	profile, warnings, err := s.workspace.Train(r.Context(), acc.Token, lang)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := trainResponse{Profile: profile}
	for _, wn := range warnings {
		resp.Warnings = append(resp.Warnings, wn.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrainStatus(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	status, err := s.workspace.Status(r.Context(), acc.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	var patch workspace.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	profile, err := s.workspace.PatchProfile(r.Context(), acc.Token, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request, acc *domain.Account) {
	snippet, err := s.workspace.EmbedSnippet(r.Context(), acc.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, embedResponse{Snippet: snippet})
}
