package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/pkg/logger"
)

// MatchesDependencies defines the interface for match history reads.
type MatchesDependencies interface {
	RecentMatches(ctx context.Context, limit int) ([]service.RecentMatch, error)
}

// MatchesHandler handles match history requests.
type MatchesHandler struct {
	deps MatchesDependencies
	log  logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchesDependencies, log logger.Logger) *MatchesHandler {
	return &MatchesHandler{deps: deps, log: log}
}

// HandleRecent handles GET /matches/recent?limit=N requests. Without a limit
// the service default applies; larger limits are capped by the service.
func (h *MatchesHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.recent_matches"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, r, h.log, op, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	matches, err := h.deps.RecentMatches(r.Context(), limit)
	if err != nil {
		respondError(w, r, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}
