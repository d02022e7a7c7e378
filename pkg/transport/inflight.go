package transport

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// InFlight describes a running relay.
type InFlight struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Model   string    `json:"model,omitempty"`
	Stream  bool      `json:"stream"`
	Started time.Time `json:"started"`
}

type inflightEntry struct {
	info   InFlight
	cancel context.CancelFunc
}

// InFlightRegistry tracks running relays so they can be listed and
// cancelled by ID. It is safe for concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]inflightEntry
	now     func() time.Time
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]inflightEntry),
		now:     time.Now,
	}
}

// Register records a running relay and returns the function that removes
// it again without cancelling. Started is filled in when zero.
func (r *InFlightRegistry) Register(info InFlight, cancel context.CancelFunc) (release func()) {
	if info.Started.IsZero() {
		info.Started = r.now()
	}

	r.mu.Lock()
	r.entries[info.ID] = inflightEntry{info: info, cancel: cancel}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.entries, info.ID)
	}
}

// Cancel stops the relay with the given ID. It reports false when no such
// relay is running.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.cancel()
	return true
}

// List returns the running relays, oldest first.
func (r *InFlightRegistry) List() []InFlight {
	r.mu.Lock()
	out := make([]InFlight, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b InFlight) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of running relays.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
