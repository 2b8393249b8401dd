package state

import (
	"sync"
	"time"
)

// View is a point-in-time copy of every store.
type View struct {
	Status        Status             `json:"status"`
	Map           MapView            `json:"map"`
	Subscriptions []Subscription     `json:"subscriptions"`
	Chat          ChatView           `json:"chat"`
	Region        []DeviceCountPoint `json:"region_device_counts"`
}

// Options configures a Dashboard.
type Options struct {
	Home          Place
	Greeting      string
	RegionHistory int
	Now           func() time.Time
}

// Dashboard groups the stores and enforces the rules that span more than one
// of them.
type Dashboard struct {
	mu sync.Mutex

	Status        *SystemStatus
	Map           *MapState
	Subscriptions *Subscriptions
	Chat          *Transcript
	Region        *RegionDevices
}

// NewDashboard constructs every store in its initial state.
func NewDashboard(opts Options) *Dashboard {
	return &Dashboard{
		Status:        NewSystemStatus(),
		Map:           NewMapState(opts.Home),
		Subscriptions: NewSubscriptions(),
		Chat:          NewTranscript(opts.Greeting, opts.Now),
		Region:        NewRegionDevices(opts.RegionHistory),
	}
}

// Atomically runs fn while holding the dashboard lock, so that no reset or
// cross-store removal interleaves with it.
func (d *Dashboard) Atomically(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// RemoveSubscription removes the subscription with id. Removing a geofencing
// subscription also clears the geofence circle; other types leave the map
// untouched.
func (d *Dashboard) RemoveSubscription(id string) (Subscription, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub, ok := d.Subscriptions.Remove(id)
	if ok && sub.Type == TypeGeofencing {
		d.Map.ClearGeofence()
	}
	return sub, ok
}

// Reset returns every store to its initial state: flags cleared, transcript
// back to the greeting, markers and subscriptions removed.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Status.Reset()
	d.Chat.Reset()
	d.Map.Reset()
	d.Subscriptions.Clear()
	d.Region.Clear()
}

// Snapshot copies every store. It does not take the dashboard lock, so it is
// safe to call from an observer.
func (d *Dashboard) Snapshot() View {
	return View{
		Status:        d.Status.Snapshot(),
		Map:           d.Map.Snapshot(),
		Subscriptions: d.Subscriptions.List(),
		Chat:          d.Chat.Snapshot(),
		Region:        d.Region.Points(),
	}
}

// Observe registers fn on every store. The returned function removes it.
func (d *Dashboard) Observe(fn func()) (cancel func()) {
	cancels := []func(){
		d.Status.Observe(fn),
		d.Map.Observe(fn),
		d.Subscriptions.Observe(fn),
		d.Chat.Observe(fn),
		d.Region.Observe(fn),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
