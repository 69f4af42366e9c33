package metrics

import "errors"

// ErrGatherFailed wraps registry gather failures in Sum.
var ErrGatherFailed = errors.New("gathering metrics")
