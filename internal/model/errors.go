package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrInvalidState      = errors.New("session record violates state invariants")
	ErrInvalidArgument   = errors.New("invalid argument")

	// Store concurrency errors, resolved inside the lifecycle manager
	ErrConflict   = errors.New("session already exists")
	ErrStaleState = errors.New("stored session state does not match expected state")

	// ErrStoreUnavailable wraps transient backend failures
	ErrStoreUnavailable = errors.New("session store unavailable")

	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Catalog errors
	ErrPuzzleNotFound = errors.New("puzzle not found")
)
