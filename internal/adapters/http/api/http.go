// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"

	service "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RandomPair(ctx context.Context) (model.Pair, error)
	RecordVote(ctx context.Context, req service.VoteRequest) (service.VoteResult, error)
	RecordSkip(ctx context.Context, a, b string) (model.SkipEvent, error)

	// Read operations expose rankings and profiles.
	Rankings(ctx context.Context, enrich bool) ([]service.RankedCelebrity, error)
	GetCelebrity(ctx context.Context, id string) (service.Profile, error)
	RecentMatches(ctx context.Context, limit int) ([]service.RecentMatch, error)

	CastConfirmVote(ctx context.Context, id string, yes bool, clientKey string) (service.ConfirmResult, error)

	// Admin operations take the caller's secret and check it themselves.
	CreateCelebrity(ctx context.Context, secret, name, wikiKey string) (model.Celebrity, error)
	SetConfirmedFlag(ctx context.Context, id string, value *bool, secret string) (model.Celebrity, error)
	ResetVotes(ctx context.Context, id, secret string) (model.Celebrity, error)

	GetStats(ctx context.Context) (service.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	pairHandler        *PairHandler
	votesHandler       *VotesHandler
	celebritiesHandler *CelebritiesHandler
	matchesHandler     *MatchesHandler
	adminHandler       *AdminHandler
	clients            clientResolver
	log                logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used for access logs and server errors.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTrustedProxies lists the networks whose X-Forwarded-For header is
// honoured. Without it the socket address always identifies the client.
func WithTrustedProxies(prefixes ...netip.Prefix) ServerOption {
	return func(s *Server) {
		s.clients.trusted = append(s.clients.trusted, prefixes...)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps, s.log)
	s.pairHandler = NewPairHandler(deps, s.log)
	s.votesHandler = NewVotesHandler(deps, s.log)
	s.votesHandler.clients = s.clients
	s.celebritiesHandler = NewCelebritiesHandler(deps, s.log)
	s.celebritiesHandler.clients = s.clients
	s.matchesHandler = NewMatchesHandler(deps, s.log)
	s.adminHandler = NewAdminHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /pair", MetricsMiddleware(s.pairHandler.HandleGetPair, "pair"))
	mux.HandleFunc("POST /votes", MetricsMiddleware(s.votesHandler.HandlePostVote, "votes"))
	mux.HandleFunc("POST /skips", MetricsMiddleware(s.votesHandler.HandlePostSkip, "skips"))

	mux.HandleFunc("GET /celebrities", MetricsMiddleware(s.celebritiesHandler.HandleList, "celebrities"))
	mux.HandleFunc("GET /celebrities/{id}", MetricsMiddleware(s.celebritiesHandler.HandleGet, "celebrity"))
	mux.HandleFunc("POST /celebrities/{id}/confirm-votes", MetricsMiddleware(s.celebritiesHandler.HandleConfirmVote, "confirm_votes"))
	mux.HandleFunc("GET /matches/recent", MetricsMiddleware(s.matchesHandler.HandleRecent, "recent_matches"))

	mux.HandleFunc("POST /admin/celebrities", MetricsMiddleware(s.adminHandler.HandleCreate, "admin_create"))
	mux.HandleFunc("PUT /admin/celebrities/{id}/confirmed", MetricsMiddleware(s.adminHandler.HandleSetConfirmed, "admin_confirmed"))
	mux.HandleFunc("POST /admin/celebrities/{id}/reset-votes", MetricsMiddleware(s.adminHandler.HandleResetVotes, "admin_reset_votes"))
}

// Handler registers the routes on a fresh mux and wraps it with request
// logging and CORS.
func (s *Server) Handler(ctx context.Context, cors CORSConfig, extra ...func(*http.ServeMux)) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	for _, fn := range extra {
		fn(mux)
	}
	return RequestLogging(s.log)(NewCORS(cors).Handler(mux))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// respondError maps err onto a status and writes it. Server-side failures are
// logged; their details stay out of the response body.
func respondError(w http.ResponseWriter, r *http.Request, log logger.Logger, op string, err error) {
	status, code := statusFor(err)
	if retry, ok := model.RetryAfterOf(err); ok && status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", retryAfterSeconds(retry))
	}
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", logger.String("op", op), logger.Int("status", status), logger.Error(err))
	}
	writeError(w, status, code, err)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return WrapKind("decode body", ErrBadRequest, err)
	}
	return nil
}
