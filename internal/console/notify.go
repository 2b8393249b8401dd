package console

import (
	"go.uber.org/zap"

	"droneops-console/internal/events"
	"droneops-console/internal/state"
)

// Notice is how a system event is announced in the transcript.
type Notice struct {
	Icon string
	Text string
}

func (n Notice) String() string { return n.Icon + " " + n.Text }

var notices = map[events.SystemEventType]Notice{
	events.Geofence:             {"⚠️", "Geofence boundary breach detected"},
	events.ConnectedNetworkType: {"📶", "Device connected network type changed from 5G to 4G"},
	events.DeviceReachability:   {"📡", "Device reachability changed from true to false"},
	events.ConnectivityInsight:  {"⚡", "Video streaming connectivity QoS breached"},
	events.IncomingWebRTC:       {"📞", "Incoming WebRTC call from drone-001"},
}

// NoticeFor returns the transcript notice for t.
func NoticeFor(t events.SystemEventType) Notice {
	if n, ok := notices[t]; ok {
		return n
	}
	return Notice{"ℹ️", "System notification"}
}

func (c *Console) onSystemEvent(ev events.SystemEvent) {
	if ev.Type == events.RegionDeviceCount {
		c.recordRegionCount(ev)
		return
	}
	c.dash.Chat.AppendSystem(NoticeFor(ev.Type).String(), &ev)
}

// recordRegionCount stores a heatmap sample at the reported location, or at
// the drone when the event carries none. Samples with neither are dropped.
func (c *Console) recordRegionCount(ev events.SystemEvent) {
	rc, ok := ev.RegionCount()
	if !ok {
		c.log.Warn("malformed region device count", zap.ByteString("payload", ev.Payload))
		return
	}
	var at state.LatLon
	switch drone, hasDrone := c.dash.Map.Drone(); {
	case rc.Lat != nil && rc.Lon != nil:
		at = state.LatLon{Lat: *rc.Lat, Lon: *rc.Lon}
	case hasDrone:
		at = drone
	default:
		c.log.Debug("region device count without location dropped")
		return
	}
	c.dash.Region.Add(state.DeviceCountPoint{
		Lat:         at.Lat,
		Lon:         at.Lon,
		DeviceCount: rc.DeviceCount,
		Radius:      rc.Radius,
		Timestamp:   rc.Timestamp,
	})
}
