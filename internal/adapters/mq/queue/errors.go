package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("skip queue full")
	ErrClosed = errors.New("skip queue closed")
)
