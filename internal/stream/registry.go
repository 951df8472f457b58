package stream

import "sync/atomic"

// Registry counts currently open streaming connections across the process.
// It is observability-only: nothing in the streamers rejects a connection
// based on it, but the interface leaves room for a future admission cap.
type Registry struct {
	open atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Open returns the number of currently registered connections.
func (r *Registry) Open() int64 {
	return r.open.Load()
}

// Register counts a new connection and returns its lease. The caller must
// release the lease on every exit path; Release is idempotent so deferred
// and early releases cannot double-decrement.
func (r *Registry) Register() *Lease {
	r.open.Add(1)
	return &Lease{registry: r}
}

// Lease represents one registered connection.
type Lease struct {
	registry *Registry
	released atomic.Bool
}

// Release decrements the counter exactly once, no matter how many times it
// is called.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.registry.open.Add(-1)
	}
}
