package state

import (
	"maps"
	"sync"
)

// Subscriptions is the ordered list of active subscriptions. IDs are unique.
type Subscriptions struct {
	observers
	mu   sync.RWMutex
	subs []Subscription
}

func NewSubscriptions() *Subscriptions { return &Subscriptions{} }

// Add appends sub. A subscription with the same ID is replaced in place.
func (s *Subscriptions) Add(sub Subscription) {
	s.mu.Lock()
	replaced := false
	for i := range s.subs {
		if s.subs[i].ID == sub.ID {
			s.subs[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		s.subs = append(s.subs, sub)
	}
	s.mu.Unlock()
	s.notify()
}

// Remove deletes the subscription with id and returns it.
func (s *Subscriptions) Remove(id string) (Subscription, bool) {
	s.mu.Lock()
	for i, sub := range s.subs {
		if sub.ID == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			s.mu.Unlock()
			s.notify()
			return sub, true
		}
	}
	s.mu.Unlock()
	return Subscription{}, false
}

func (s *Subscriptions) Get(id string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.ID == id {
			return cloneSub(sub), true
		}
	}
	return Subscription{}, false
}

// List returns the active subscriptions in creation order.
func (s *Subscriptions) List() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscription, len(s.subs))
	for i, sub := range s.subs {
		out[i] = cloneSub(sub)
	}
	return out
}

// HasType reports whether any active subscription has type typ.
func (s *Subscriptions) HasType(typ string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.Type == typ {
			return true
		}
	}
	return false
}

func (s *Subscriptions) Clear() {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
	s.notify()
}

func cloneSub(sub Subscription) Subscription {
	sub.Parameters = maps.Clone(sub.Parameters)
	return sub
}
