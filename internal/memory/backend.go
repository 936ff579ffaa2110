package memory

import "context"

// Backend is the contract every storage tier implements. A failure in
// one backend must never corrupt or block another; all side effects are
// confined to the backend's own storage.
type Backend interface {
	// Store upserts an entry. Duplicate writes of the same id overwrite
	// and must not error.
	Store(ctx context.Context, e *Entry) error

	// GetByID returns the entry or ErrNotFound. It does not update
	// access statistics; callers use Touch for that.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// Search returns up to limit entries matching the query, best
	// first. No results is an empty slice, never an error.
	Search(ctx context.Context, query string, limit int) ([]*Entry, error)

	// GetForConsolidation returns entries at or above the importance
	// threshold that have not yet been promoted, oldest first.
	GetForConsolidation(ctx context.Context, threshold float64, limit int) ([]*Entry, error)

	// Remove deletes an entry, returning ErrNotFound when absent.
	Remove(ctx context.Context, id string) error

	// Touch records a successful read: bumps the access count and
	// last-accessed time.
	Touch(ctx context.Context, id string) error

	// Stats reports the backend's current occupancy.
	Stats(ctx context.Context) (StageStats, error)

	// Close releases the backend's resources.
	Close() error
}

// StageStats is a backend occupancy snapshot.
type StageStats struct {
	Stage       Stage   `json:"stage"`
	Count       int     `json:"count"`
	Capacity    int     `json:"capacity,omitempty"` // 0 = unbounded
	Utilization float64 `json:"utilization"`
}
