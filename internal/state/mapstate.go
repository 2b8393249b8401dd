package state

import "sync"

// MapView is a snapshot of MapState. Nil markers are not shown.
type MapView struct {
	Center   LatLon    `json:"center"`
	Base     *Place    `json:"base,omitempty"`
	Incident *Incident `json:"incident,omitempty"`
	Drone    *LatLon   `json:"drone,omitempty"`
	Edge     *EdgeNode `json:"edge,omitempty"`
	Geofence *Circle   `json:"geofence,omitempty"`
}

// MapState holds the map center, markers and geofence circle.
type MapState struct {
	observers
	mu   sync.RWMutex
	home Place
	v    MapView
}

// NewMapState returns a map centred on home with only the base marker shown.
func NewMapState(home Place) *MapState {
	m := &MapState{home: home}
	m.v = m.initial()
	return m
}

func (m *MapState) initial() MapView {
	base := m.home
	return MapView{Center: m.home.LatLon, Base: &base}
}

func (m *MapState) update(fn func(*MapView)) {
	m.mu.Lock()
	fn(&m.v)
	m.mu.Unlock()
	m.notify()
}

// Snapshot returns a copy of the map state.
func (m *MapState) Snapshot() MapView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneView(m.v)
}

func cloneView(v MapView) MapView {
	out := MapView{Center: v.Center}
	if v.Base != nil {
		b := *v.Base
		out.Base = &b
	}
	if v.Incident != nil {
		i := *v.Incident
		out.Incident = &i
	}
	if v.Drone != nil {
		d := *v.Drone
		out.Drone = &d
	}
	if v.Edge != nil {
		e := *v.Edge
		out.Edge = &e
	}
	if v.Geofence != nil {
		g := *v.Geofence
		out.Geofence = &g
	}
	return out
}

func (m *MapState) SetCenter(c LatLon) { m.update(func(v *MapView) { v.Center = c }) }

// MoveToAddress centres the map on the incident and marks it.
func (m *MapState) MoveToAddress(address string, at LatLon) {
	m.update(func(v *MapView) {
		v.Center = at
		v.Incident = &Incident{LatLon: at, Address: address}
	})
}

// SetDrone places the drone kit marker at at. The base marker is hidden while
// a drone is shown.
func (m *MapState) SetDrone(at LatLon) {
	m.update(func(v *MapView) {
		v.Drone = &at
		v.Base = nil
	})
}

func (m *MapState) SetEdgeNode(at LatLon, zone string) {
	m.update(func(v *MapView) { v.Edge = &EdgeNode{LatLon: at, Zone: zone} })
}

func (m *MapState) SetGeofence(center LatLon, radius float64) {
	m.update(func(v *MapView) { v.Geofence = &Circle{Center: center, Radius: radius} })
}

func (m *MapState) ClearGeofence() { m.update(func(v *MapView) { v.Geofence = nil }) }

// SetHome changes the home base. It takes effect on the next Reset.
func (m *MapState) SetHome(home Place) {
	m.mu.Lock()
	m.home = home
	m.mu.Unlock()
}

// Reset restores the base marker and clears every other marker.
func (m *MapState) Reset() {
	m.update(func(v *MapView) { *v = m.initial() })
}

// ReferenceLocation returns the drone position, else the incident, else the
// home base.
func (m *MapState) ReferenceLocation() LatLon {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.v.Drone != nil:
		return *m.v.Drone
	case m.v.Incident != nil:
		return m.v.Incident.LatLon
	default:
		return m.home.LatLon
	}
}

// Drone returns the drone marker position if one is shown.
func (m *MapState) Drone() (LatLon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.v.Drone == nil {
		return LatLon{}, false
	}
	return *m.v.Drone, true
}
