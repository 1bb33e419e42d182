package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
)

// CelebrityDependencies defines the interface for celebrity reads and
// community votes.
type CelebrityDependencies interface {
	Rankings(ctx context.Context, enrich bool) ([]service.RankedCelebrity, error)
	GetCelebrity(ctx context.Context, id string) (service.Profile, error)
	CastConfirmVote(ctx context.Context, id string, yes bool, clientKey string) (service.ConfirmResult, error)
}

// CelebritiesHandler handles celebrity requests.
type CelebritiesHandler struct {
	deps    CelebrityDependencies
	log     logger.Logger
	clients clientResolver
}

// NewCelebritiesHandler creates a new celebrities handler.
func NewCelebritiesHandler(deps CelebrityDependencies, log logger.Logger) *CelebritiesHandler {
	return &CelebritiesHandler{deps: deps, log: log}
}

type confirmVoteRequest struct {
	Vote string `json:"vote"`
}

func (c confirmVoteRequest) yes() (bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Vote)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, model.NewValidationError("vote", "must be yes or no")
}

// HandleList handles GET /celebrities?enrich=bool requests.
func (h *CelebritiesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_celebrities"
	enrich := false
	if raw := r.URL.Query().Get("enrich"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, r, h.log, op, WrapKind(op, ErrBadRequest, err))
			return
		}
		enrich = v
	}
	ranked, err := h.deps.Rankings(r.Context(), enrich)
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// HandleGet handles GET /celebrities/{id} requests.
func (h *CelebritiesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.deps.GetCelebrity(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, h.log, "api.get_celebrity", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleConfirmVote handles POST /celebrities/{id}/confirm-votes requests.
func (h *CelebritiesHandler) HandleConfirmVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.confirm_vote"
	var req confirmVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	yes, err := req.yes()
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	res, err := h.deps.CastConfirmVote(r.Context(), r.PathValue("id"), yes, h.clients.key(r))
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
