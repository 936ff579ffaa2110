package memory

import "errors"

// Error taxonomy shared by all stage backends and the facade.
var (
	// ErrNotFound is returned by lookups that yield nothing. It is a
	// valid empty result, not a failure.
	ErrNotFound = errors.New("memory: entry not found")

	// ErrBackendUnavailable wraps failures to reach or open a stage.
	ErrBackendUnavailable = errors.New("memory: backend unavailable")

	// ErrCapacityExceeded signals the working tier is full and eviction
	// could not make room.
	ErrCapacityExceeded = errors.New("memory: capacity exceeded")

	// ErrNotRunning is returned by facade operations attempted outside
	// the Running state.
	ErrNotRunning = errors.New("memory: system not running")
)
