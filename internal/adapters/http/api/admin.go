package api

import (
	"context"
	"net/http"

	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
)

const adminSecretHeader = "X-Admin-Secret"

// AdminDependencies defines the interface for moderation operations.
type AdminDependencies interface {
	CreateCelebrity(ctx context.Context, secret, name, wikiKey string) (model.Celebrity, error)
	SetConfirmedFlag(ctx context.Context, id string, value *bool, secret string) (model.Celebrity, error)
	ResetVotes(ctx context.Context, id, secret string) (model.Celebrity, error)
}

// AdminHandler handles admin requests. Authorization is checked by the
// service against the X-Admin-Secret header.
type AdminHandler struct {
	deps AdminDependencies
	log  logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, log logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, log: log}
}

type createCelebrityRequest struct {
	Name    string `json:"name"`
	WikiKey string `json:"wiki_key"`
}

// confirmedRequest carries the moderation flag; null clears it.
type confirmedRequest struct {
	Confirmed *bool `json:"confirmed"`
}

// HandleCreate handles POST /admin/celebrities requests.
func (h *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_create"
	var req createCelebrityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	c, err := h.deps.CreateCelebrity(r.Context(), r.Header.Get(adminSecretHeader), req.Name, req.WikiKey)
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleSetConfirmed handles PUT /admin/celebrities/{id}/confirmed requests.
func (h *AdminHandler) HandleSetConfirmed(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_confirmed"
	var req confirmedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	c, err := h.deps.SetConfirmedFlag(r.Context(), r.PathValue("id"), req.Confirmed, r.Header.Get(adminSecretHeader))
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleResetVotes handles POST /admin/celebrities/{id}/reset-votes requests.
func (h *AdminHandler) HandleResetVotes(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.ResetVotes(r.Context(), r.PathValue("id"), r.Header.Get(adminSecretHeader))
	if err != nil {
		respondError(w, r, h.log, "api.admin_reset_votes", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
