package match

import "errors"

// Sentinel kinds for transition errors.
var (
	ErrNotStarted            = errors.New("exchange not started")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInvalidWinner         = errors.New("invalid winner")
	ErrSettlementUnavailable = errors.New("settlement unavailable")
	ErrNoSettlement          = errors.New("no settlement requested")
)
