package scene

import "sync"

// Ticket identifies one load request for a layer kind.
type Ticket struct {
	Kind       LayerKind
	Generation uint64
}

// Loader hands out generation tickets so that only the most recently requested
// load for each layer kind may be applied to a scene.
type Loader struct {
	mu     sync.Mutex
	next   uint64
	latest map[LayerKind]uint64
}

// NewLoader returns a Loader with no outstanding requests.
func NewLoader() *Loader {
	return &Loader{latest: make(map[LayerKind]uint64)}
}

// Begin records a new load request for kind and returns its ticket. Any ticket
// issued earlier for the same kind becomes stale.
func (l *Loader) Begin(kind LayerKind) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	l.latest[kind] = l.next
	return Ticket{Kind: kind, Generation: l.next}
}

// Current reports whether t is still the latest request for its kind.
func (l *Loader) Current(t Ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.latest[t.Kind] == t.Generation
}

// Invalidate makes every outstanding ticket for kind stale, e.g. when the layer
// is cleared while a load is still running.
func (l *Loader) Invalidate(kind LayerKind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	l.latest[kind] = l.next
}
