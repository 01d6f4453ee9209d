package can

import "errors"

// Frame construction errors.
var (
	ErrTooMuchData = errors.New("can: too much data")
	ErrIDMismatch  = errors.New("can: identifier does not fit message type")
	ErrNotClassic  = errors.New("can: frame does not fit a classic frame")
)
