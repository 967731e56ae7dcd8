package session

import "errors"

var (
	ErrAlreadyStarted   = errors.New("session already started")
	ErrNotStarted       = errors.New("session not started")
	ErrAutoAdvance      = errors.New("auto-advance is on, layers advance by themselves")
	ErrLayerNotFinished = errors.New("previous layer not finished")
	ErrLayerFailed      = errors.New("previous layer failed")
	ErrNoFurtherNesting = errors.New("no further nesting")
	ErrSessionNotFound  = errors.New("session not found")
)
