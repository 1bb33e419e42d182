package api

import (
	"context"
	"net/http"

	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
)

// PairDependencies defines the interface for pair selection.
type PairDependencies interface {
	RandomPair(ctx context.Context) (model.Pair, error)
}

// PairHandler handles pair requests.
type PairHandler struct {
	deps PairDependencies
	log  logger.Logger
}

// NewPairHandler creates a new pair handler.
func NewPairHandler(deps PairDependencies, log logger.Logger) *PairHandler {
	return &PairHandler{deps: deps, log: log}
}

// HandleGetPair handles GET /pair requests.
func (h *PairHandler) HandleGetPair(w http.ResponseWriter, r *http.Request) {
	pair, err := h.deps.RandomPair(r.Context())
	if err != nil {
		respondError(w, r, h.log, "api.get_pair", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, pair)
}
