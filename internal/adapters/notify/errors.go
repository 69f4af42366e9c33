package notify

import "errors"

var (
	ErrUnknownDriver = errors.New("unknown notify driver")
	ErrMissingTarget = errors.New("notify target not configured")
	ErrEncode        = errors.New("encode match event")
	ErrPublish       = errors.New("publish match event")
)
