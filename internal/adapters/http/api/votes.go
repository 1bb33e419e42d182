package api

import (
	"context"
	"net/http"

	service "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
)

// VoteDependencies defines the interface for vote and skip processing.
type VoteDependencies interface {
	RecordVote(ctx context.Context, req service.VoteRequest) (service.VoteResult, error)
	RecordSkip(ctx context.Context, a, b string) (model.SkipEvent, error)
}

// VotesHandler handles vote and skip requests.
type VotesHandler struct {
	deps    VoteDependencies
	log     logger.Logger
	clients clientResolver
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies, log logger.Logger) *VotesHandler {
	return &VotesHandler{deps: deps, log: log}
}

const idempotencyKeyHeader = "Idempotency-Key"

// voteRequest mirrors the OpenAPI schema for POST /votes.
type voteRequest struct {
	CelebrityA string `json:"celebrity_a"`
	CelebrityB string `json:"celebrity_b"`
	Winner     string `json:"winner"`
	KFactor    int    `json:"k_factor,omitempty"`
}

// skipRequest mirrors the OpenAPI schema for POST /skips.
type skipRequest struct {
	CelebrityA string `json:"celebrity_a"`
	CelebrityB string `json:"celebrity_b"`
}

type skipResponse struct {
	Status string          `json:"status"`
	Skip   model.SkipEvent `json:"skip"`
}

// HandlePostVote handles POST /votes requests.
func (h *VotesHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	winner, err := model.ParseSide(req.Winner)
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}

	res, err := h.deps.RecordVote(r.Context(), service.VoteRequest{
		CelebrityA:     req.CelebrityA,
		CelebrityB:     req.CelebrityB,
		Winner:         winner,
		K:              req.KFactor,
		ClientKey:      h.clients.key(r),
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePostSkip handles POST /skips requests. Skips are persisted
// asynchronously, so success is 202.
func (h *VotesHandler) HandlePostSkip(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_skip"
	var req skipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	ev, err := h.deps.RecordSkip(r.Context(), req.CelebrityA, req.CelebrityB)
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, skipResponse{Status: "accepted", Skip: ev})
}
