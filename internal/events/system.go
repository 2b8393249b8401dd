// Package events holds the typed events carried by the backend's two SSE
// channels: system notifications and chat stream events.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"droneops-console/internal/sse"
)

// SystemEventType discriminates events on the long-lived notification stream.
type SystemEventType string

const (
	Geofence             SystemEventType = "geofence"
	ConnectedNetworkType SystemEventType = "connected_network_type"
	DeviceReachability   SystemEventType = "device_reachability"
	ConnectivityInsight  SystemEventType = "connectivity_insight"
	IncomingWebRTC       SystemEventType = "incoming_webrtc"
	LocationUpdate       SystemEventType = "location_update"
	RegionDeviceCount    SystemEventType = "region_device_count"
)

// Connected is the handshake event name sent when the stream opens. It drives
// connection state and is never published as a SystemEvent.
const Connected = "connected"

// SystemEventTypes lists every published system event type.
var SystemEventTypes = []SystemEventType{
	Geofence,
	ConnectedNetworkType,
	DeviceReachability,
	ConnectivityInsight,
	IncomingWebRTC,
	LocationUpdate,
	RegionDeviceCount,
}

// Known reports whether t is a recognised system event type.
func (t SystemEventType) Known() bool {
	for _, k := range SystemEventTypes {
		if k == t {
			return true
		}
	}
	return false
}

// SystemEvent is an immutable notification from the backend.
type SystemEvent struct {
	Type      SystemEventType `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	// Payload is only retained for event types whose data is consumed
	// (region_device_count); other types carry type and time alone.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RegionCount is the payload of a region_device_count event.
type RegionCount struct {
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	DeviceCount int      `json:"device_count"`
	Radius      float64  `json:"radius"`
	Timestamp   string   `json:"timestamp"`
}

// RegionCount decodes the payload of a region_device_count event.
func (e SystemEvent) RegionCount() (RegionCount, bool) {
	if e.Type != RegionDeviceCount || len(e.Payload) == 0 {
		return RegionCount{}, false
	}
	var rc RegionCount
	if err := json.Unmarshal(e.Payload, &rc); err != nil {
		return RegionCount{}, false
	}
	if rc.Timestamp == "" {
		rc.Timestamp = e.Timestamp
	}
	return rc, true
}

// Timestamp formats t the way the backend and dashboard exchange times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DecodeSystemEvent maps a named SSE frame to a SystemEvent. The timestamp is
// taken from the payload when present and generated from now otherwise.
// Unknown event names and malformed JSON return an error; callers drop the
// frame.
func DecodeSystemEvent(f sse.Frame, now time.Time) (SystemEvent, error) {
	typ := SystemEventType(f.Event)
	if !typ.Known() {
		return SystemEvent{}, fmt.Errorf("unknown system event %q", f.Event)
	}
	ev := SystemEvent{Type: typ, Timestamp: Timestamp(now)}
	if f.Data == "" {
		return ev, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(f.Data), &fields); err != nil {
		return SystemEvent{}, fmt.Errorf("decode %s payload: %w", f.Event, err)
	}
	if raw, ok := fields["timestamp"]; ok {
		var ts string
		if json.Unmarshal(raw, &ts) == nil && ts != "" {
			ev.Timestamp = ts
		}
	}
	if typ == RegionDeviceCount || typ == LocationUpdate {
		ev.Payload = json.RawMessage(f.Data)
	}
	return ev, nil
}
