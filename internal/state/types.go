// Package state holds the observable stores that make up the dashboard: system
// status, map markers, subscriptions, the chat transcript and region device
// counts.
package state

import "time"

// LatLon is a WGS84 coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Offset returns the coordinate moved by dLat and dLon degrees.
func (p LatLon) Offset(dLat, dLon float64) LatLon {
	return LatLon{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

// Place is a named map location such as the base station.
type Place struct {
	LatLon `yaml:",inline"`
	Name   string `json:"name" yaml:"name"`
}

// Incident is the geocoded incident location.
type Incident struct {
	LatLon
	Address string `json:"address"`
}

// EdgeNode marks the discovered edge cloud zone.
type EdgeNode struct {
	LatLon
	Zone string `json:"zone"`
}

// Circle is the drawn geofence.
type Circle struct {
	Center LatLon  `json:"center"`
	Radius float64 `json:"radius"`
}

// EdgeDeployment records an application deployed to the edge zone.
type EdgeDeployment struct {
	DeploymentID string `json:"deployment_id"`
	ImageID      string `json:"image_id"`
	ZoneName     string `json:"zone_name"`
	Status       string `json:"status"`
}

// Subscription types created by tool results.
const (
	TypeGeofencing = "Geofencing"
	TypeNetwork    = "Network Type & Reachability"
)

// Subscription is an active backend subscription.
type Subscription struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	DeviceID   string         `json:"device_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// DeviceCountPoint is one region device count sample used for heatmap weighting.
type DeviceCountPoint struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DeviceCount int     `json:"device_count"`
	Radius      float64 `json:"radius"`
	Timestamp   string  `json:"timestamp"`
}
