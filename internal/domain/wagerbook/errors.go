package wagerbook

import "errors"

// Sentinel kinds for wager placement, checked in this order.
var (
	ErrBiddingClosed      = errors.New("bidding closed")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrInsufficientFunds  = errors.New("insufficient funds")

	ErrUnknownMode = errors.New("unknown bettor mode")
)
