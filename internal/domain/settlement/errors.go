package settlement

import "errors"

// Sentinel kinds for settlement errors.
var (
	ErrBusy         = errors.New("settlement already running")
	ErrLedger       = errors.New("ledger update failed")
	ErrNotCompleted = errors.New("settlement could not close the match")
)
