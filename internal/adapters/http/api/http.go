// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/funbet/internal/domain/ledger"
	"github.com/okian/funbet/internal/domain/match"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/types"
	"github.com/okian/funbet/internal/domain/wagerbook"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	WagerDependencies
	MatchDependencies
	AccountDependencies
	LeaderboardDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	wagersHandler      *WagersHandler
	matchHandler       *MatchHandler
	accountsHandler    *AccountsHandler
	leaderboardHandler *LeaderboardHandler
}

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

type serverOptions struct {
	identity Identity
	maxLimit int
}

// WithIdentity replaces the header based caller resolution.
func WithIdentity(id Identity) ServerOption {
	return func(o *serverOptions) {
		if id != nil {
			o.identity = id
		}
	}
}

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) ServerOption {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	o := serverOptions{identity: HeaderIdentity, maxLimit: maxLeaderboardLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		wagersHandler:      NewWagersHandler(deps, o.identity),
		matchHandler:       NewMatchHandler(deps, deps, o.identity),
		accountsHandler:    NewAccountsHandler(deps, o.identity),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /wagers", MetricsMiddleware(s.wagersHandler.HandlePlaceWager, "wagers"))
	mux.HandleFunc("GET /match", MetricsMiddleware(s.matchHandler.HandleGetMatch, "match"))
	mux.HandleFunc("POST /match/transition", MetricsMiddleware(s.matchHandler.HandleTransition, "match_transition"))
	mux.HandleFunc("POST /accounts", MetricsMiddleware(s.accountsHandler.HandleOpenAccount, "accounts"))
	mux.HandleFunc("GET /accounts/{id}", MetricsMiddleware(s.accountsHandler.HandleGetAccount, "account"))
	mux.HandleFunc("POST /accounts/{id}/payments", MetricsMiddleware(s.accountsHandler.HandlePayment, "payments"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
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
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain error to its HTTP status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, ErrForbidden), errors.Is(err, match.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"

	case errors.Is(err, wagerbook.ErrBiddingClosed):
		return http.StatusConflict, "bidding_closed"
	case errors.Is(err, wagerbook.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, wagerbook.ErrInvalidParticipant):
		return http.StatusBadRequest, "invalid_participant"
	case errors.Is(err, wagerbook.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"

	case errors.Is(err, match.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, match.ErrInvalidWinner):
		return http.StatusBadRequest, "invalid_winner"
	case errors.Is(err, match.ErrSettlementUnavailable), errors.Is(err, match.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"

	case errors.Is(err, ledger.ErrUnknownAccount):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrAccountExists):
		return http.StatusConflict, "account_exists"
	case errors.Is(err, ledger.ErrDuplicatePayment):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, ledger.ErrInvalidAccountID):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decode reads a JSON body, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// requester resolves the caller or fails with ErrNotAuthenticated.
func requester(identity Identity, r *http.Request, op string) (Principal, error) {
	p, ok := identity(r)
	if !ok {
		return Principal{}, NewKind(op, ErrNotAuthenticated)
	}
	return p, nil
}

// isAdmin accepts either the proxy's admin flag or an admin account.
func isAdmin(ctx context.Context, accounts AccountReader, p Principal) bool {
	if p.Admin {
		return true
	}
	a, err := accounts.Account(ctx, p.AccountID)
	return err == nil && a.IsAdmin()
}

// AccountReader reads one account.
type AccountReader interface {
	Account(ctx context.Context, id string) (model.Account, error)
}
