package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/funbet/internal/domain/ledger"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/wagerbook"
)

// WagerDependencies defines the interface for wager placement.
type WagerDependencies interface {
	BiddingOpen() bool
	PlaceWager(ctx context.Context, accountID, participantKey string, amount float64) (model.Wager, error)
}

// WagersHandler handles wager requests.
type WagersHandler struct {
	deps     WagerDependencies
	identity Identity
}

// NewWagersHandler creates a new wagers handler.
func NewWagersHandler(deps WagerDependencies, identity Identity) *WagersHandler {
	return &WagersHandler{deps: deps, identity: identity}
}

type wagerRequest struct {
	Participant string  `json:"participant"`
	Amount      float64 `json:"amount"`
}

// HandlePlaceWager handles POST /wagers requests.
func (h *WagersHandler) HandlePlaceWager(w http.ResponseWriter, r *http.Request) {
	const op = "api.place_wager"
	if !h.deps.BiddingOpen() {
		writeFailure(w, Wrap(op, wagerbook.ErrBiddingClosed))
		return
	}
	p, err := requester(h.identity, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req wagerRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	wager, err := h.deps.PlaceWager(r.Context(), p.AccountID, req.Participant, req.Amount)
	if errors.Is(err, ledger.ErrUnknownAccount) {
		writeFailure(w, WrapKind(op, ErrNotAuthenticated, err))
		return
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, wager)
}
