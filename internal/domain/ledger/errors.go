package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrAccountExists     = errors.New("account already exists")
	ErrInvalidAccountID  = errors.New("invalid account id")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicatePayment  = errors.New("duplicate payment")
)
