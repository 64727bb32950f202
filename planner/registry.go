package planner

import (
	"sync"
	"time"
)

// Registry keeps one dashboard per session id.
type Registry struct {
	api API
	now func() time.Time

	mu     sync.Mutex
	boards map[string]*entry
}

type entry struct {
	board    *Dashboard
	lastUsed time.Time
}

func NewRegistry(api API) *Registry {
	return &Registry{api: api, now: time.Now, boards: make(map[string]*entry)}
}

// Get returns the dashboard for id, creating it with the default form.
func (r *Registry) Get(id string) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.boards[id]
	if !ok {
		e = &entry{board: NewDashboard(r.api, DefaultForm())}
		r.boards[id] = e
	}
	e.lastUsed = r.now()
	return e.board
}

// Remove drops the dashboard state for id, e.g. on logout.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boards, id)
}

// Len is the number of dashboards held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

// Sweep drops dashboards not used for longer than idle and returns how many
// were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	n := 0
	for id, e := range r.boards {
		if e.lastUsed.Before(cutoff) {
			delete(r.boards, id)
			n++
		}
	}
	return n
}
