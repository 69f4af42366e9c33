package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/funbet/internal/domain/model"
)

// AccountDependencies defines the interface for account operations.
type AccountDependencies interface {
	AccountReader
	OpenAccount(ctx context.Context, id, displayName string, balance int64, admin bool) (model.Account, error)
	Pay(ctx context.Context, accountID string, amount int64, idempotencyKey string) (model.Account, error)
}

// AccountsHandler handles account requests.
type AccountsHandler struct {
	deps     AccountDependencies
	identity Identity
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(deps AccountDependencies, identity Identity) *AccountsHandler {
	return &AccountsHandler{deps: deps, identity: identity}
}

type openAccountRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
	Admin       bool   `json:"admin"`
}

type paymentRequest struct {
	Amount int64 `json:"amount"`
}

// HandleOpenAccount handles POST /accounts requests. Admin only.
func (h *AccountsHandler) HandleOpenAccount(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_account"
	p, err := requester(h.identity, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !isAdmin(r.Context(), h.deps, p) {
		writeFailure(w, NewKind(op, ErrForbidden))
		return
	}
	var req openAccountRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ID) == "" || req.Balance < 0 {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	a, err := h.deps.OpenAccount(r.Context(), req.ID, req.DisplayName, req.Balance, req.Admin)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleGetAccount handles GET /accounts/{id} requests. Owners and admins only.
func (h *AccountsHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_account"
	id := r.PathValue("id")
	if err := h.authorizeOwner(r, op, id); err != nil {
		writeFailure(w, err)
		return
	}
	a, err := h.deps.Account(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandlePayment handles POST /accounts/{id}/payments requests. Owner only.
func (h *AccountsHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	const op = "api.payment"
	id := r.PathValue("id")
	p, err := requester(h.identity, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if p.AccountID != id {
		writeFailure(w, NewKind(op, ErrForbidden))
		return
	}
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	a, err := h.deps.Pay(r.Context(), id, req.Amount, key)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountsHandler) authorizeOwner(r *http.Request, op, id string) error {
	p, err := requester(h.identity, r, op)
	if err != nil {
		return err
	}
	if p.AccountID != id && !isAdmin(r.Context(), h.deps, p) {
		return NewKind(op, ErrForbidden)
	}
	return nil
}
