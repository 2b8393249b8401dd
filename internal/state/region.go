package state

import "sync"

// RegionDevices keeps the most recent device count samples. With a limit of 1
// it holds only the latest sample.
type RegionDevices struct {
	observers
	mu     sync.RWMutex
	limit  int
	points []DeviceCountPoint
}

// NewRegionDevices returns a store keeping at most limit samples.
func NewRegionDevices(limit int) *RegionDevices {
	if limit < 1 {
		limit = 1
	}
	return &RegionDevices{limit: limit}
}

func (r *RegionDevices) Add(p DeviceCountPoint) {
	r.mu.Lock()
	r.points = append(r.points, p)
	if over := len(r.points) - r.limit; over > 0 {
		r.points = append([]DeviceCountPoint(nil), r.points[over:]...)
	}
	r.mu.Unlock()
	r.notify()
}

// Points returns the retained samples, oldest first.
func (r *RegionDevices) Points() []DeviceCountPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DeviceCountPoint(nil), r.points...)
}

// Latest returns the newest sample.
func (r *RegionDevices) Latest() (DeviceCountPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return DeviceCountPoint{}, false
	}
	return r.points[len(r.points)-1], true
}

func (r *RegionDevices) Clear() {
	r.mu.Lock()
	r.points = nil
	r.mu.Unlock()
	r.notify()
}
