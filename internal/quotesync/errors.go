package quotesync

import "errors"

var (
	// ErrHalted is returned by every call after the session was rejected.
	ErrHalted   = errors.New("sync halted: session is no longer authorized")
	ErrBusy     = errors.New("another submission is in progress")
	ErrNotFound = errors.New("quote not found")
	ErrOffline  = errors.New("server unreachable")
)
