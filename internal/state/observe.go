package state

import (
	"slices"
	"sync"
)

// observers is a change-notification list embedded in each store. Callbacks
// run after the store lock has been released.
type observers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

// Observe registers fn to be called after every mutation. The returned
// function removes it.
func (o *observers) Observe(fn func()) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func())
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.fns, id)
		o.mu.Unlock()
	}
}

func (o *observers) notify() {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
