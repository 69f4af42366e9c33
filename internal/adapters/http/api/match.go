package api

import (
	"context"
	"net/http"

	"github.com/okian/funbet/internal/domain/model"
)

// MatchDependencies defines the interface for reading and advancing the match.
type MatchDependencies interface {
	CurrentMatchDocument() model.Match
	ProposeTransition(ctx context.Context, oldDoc, newDoc model.Match, requesterIsAdmin bool) (model.Match, error)
}

// MatchHandler handles match requests.
type MatchHandler struct {
	deps     MatchDependencies
	accounts AccountReader
	identity Identity
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies, accounts AccountReader, identity Identity) *MatchHandler {
	return &MatchHandler{deps: deps, accounts: accounts, identity: identity}
}

// transitionRequest carries the proposed document. Old defaults to the
// stored document when omitted.
type transitionRequest struct {
	Old *model.Match `json:"old,omitempty"`
	New *model.Match `json:"new"`
}

// HandleGetMatch handles GET /match requests.
func (h *MatchHandler) HandleGetMatch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.CurrentMatchDocument())
}

// HandleTransition handles POST /match/transition requests.
func (h *MatchHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	const op = "api.transition"
	p, err := requester(h.identity, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.New == nil || !req.New.Status.Valid() {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	old := h.deps.CurrentMatchDocument()
	if req.Old != nil {
		old = *req.Old
	}
	doc, err := h.deps.ProposeTransition(r.Context(), old, *req.New, isAdmin(r.Context(), h.accounts, p))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
