package chat

import (
	"go.uber.org/zap"

	"droneops-console/internal/state"
)

// Marker offsets in degrees.
const (
	droneOffsetLat = 0.001
	droneOffsetLon = 0.001
	edgeOffsetLat  = 0.01
	edgeOffsetLon  = -0.01
)

// Tool names with dashboard side effects.
const (
	ToolGeocodeAddress          = "geocode_address"
	ToolVerifyLocation          = "verify_location"
	ToolDiscoverEdgeNode        = "discover_edge_node"
	ToolDeployEdgeApplication   = "deploy_edge_application"
	ToolUndeployEdgeApplication = "undeploy_edge_application"
	ToolSubscribeGeofencing     = "subscribe_geofencing"
	ToolUnsubscribeGeofencing   = "unsubscribe_geofencing"
	ToolSubscribeNetwork        = "subscribe_connected_network"
	ToolUnsubscribeNetwork      = "unsubscribe_connected_network"
	ToolHandleWebRTCCall        = "handle_webrtc_call"
	ToolCreateQoD               = "create_quality_on_demand"
)

// effect mutates the dashboard for a resolved call. result is the call's
// result as an object, or nil when it is absent, null or not an object.
type effect func(r *Reconciler, call state.ToolCall, result map[string]any, present bool)

var effects = map[string]effect{
	ToolGeocodeAddress:          (*Reconciler).geocoded,
	ToolVerifyLocation:          (*Reconciler).locationVerified,
	ToolDiscoverEdgeNode:        (*Reconciler).edgeNodeDiscovered,
	ToolDeployEdgeApplication:   (*Reconciler).edgeAppDeployed,
	ToolUndeployEdgeApplication: (*Reconciler).edgeAppUndeployed,
	ToolSubscribeGeofencing:     (*Reconciler).geofenceSubscribed,
	ToolUnsubscribeGeofencing:   (*Reconciler).geofenceUnsubscribed,
	ToolSubscribeNetwork:        (*Reconciler).networkSubscribed,
	ToolUnsubscribeNetwork:      (*Reconciler).networkUnsubscribed,
	ToolHandleWebRTCCall:        (*Reconciler).webRTCHandled,
	ToolCreateQoD:               (*Reconciler).qodCreated,
}

// applyEffects runs the side effect registered for call.Tool. Results carrying
// an error field never have side effects.
func (r *Reconciler) applyEffects(call state.ToolCall, present bool) {
	fn, ok := effects[call.Tool]
	if !ok {
		return
	}
	result, _ := call.Result.(map[string]any)
	if _, failed := result["error"]; failed {
		r.log.Debug("tool returned error, no side effects", zap.String("tool", call.Tool))
		return
	}
	fn(r, call, result, present)
}

func (r *Reconciler) geocoded(_ state.ToolCall, res map[string]any, _ bool) {
	lat, okLat := number(res, "latitude")
	lon, okLon := number(res, "longitude")
	if !okLat || !okLon {
		return
	}
	addr := text(res, "address")
	if addr == "" {
		addr = text(res, "display_name")
	}
	r.dash.Map.MoveToAddress(addr, state.LatLon{Lat: lat, Lon: lon})
}

func (r *Reconciler) locationVerified(call state.ToolCall, res map[string]any, _ bool) {
	if text(res, "verificationResult") != "TRUE" {
		return
	}
	r.dash.Status.SetDroneActive(true)
	lat, okLat := number(call.Arguments, "latitude")
	lon, okLon := number(call.Arguments, "longitude")
	if okLat && okLon {
		at := state.LatLon{Lat: lat, Lon: lon}.Offset(droneOffsetLat, droneOffsetLon)
		r.dash.Map.SetDrone(at)
	}
}

func (r *Reconciler) edgeNodeDiscovered(_ state.ToolCall, res map[string]any, _ bool) {
	zone := text(res, "edgeCloudZoneName")
	if zone == "" {
		return
	}
	ref := r.dash.Map.ReferenceLocation()
	r.dash.Map.SetEdgeNode(ref.Offset(edgeOffsetLat, edgeOffsetLon), zone)
}

func (r *Reconciler) edgeAppDeployed(_ state.ToolCall, res map[string]any, _ bool) {
	id, status := text(res, "deployment_id"), text(res, "status")
	if id == "" || status == "" {
		return
	}
	r.dash.Status.SetEdgeDeployment(state.EdgeDeployment{
		DeploymentID: id,
		ImageID:      text(res, "image_id"),
		ZoneName:     text(res, "edge_zone_name"),
		Status:       status,
	})
}

func (r *Reconciler) edgeAppUndeployed(call state.ToolCall, _ map[string]any, present bool) {
	if !present {
		return
	}
	if text(call.Arguments, "deployment_id") != "" {
		r.dash.Status.ClearEdgeDeployment()
	}
}

func (r *Reconciler) geofenceSubscribed(_ state.ToolCall, res map[string]any, _ bool) {
	id := text(res, "subscription_id")
	lat, okLat := number(res, "latitude")
	lon, okLon := number(res, "longitude")
	radius, okRadius := number(res, "radius")
	if id == "" || !okLat || !okLon || !okRadius {
		return
	}
	device := text(res, "device_id")
	if device == "" {
		device = "unknown"
	}
	r.dash.Atomically(func() {
		r.dash.Map.SetGeofence(state.LatLon{Lat: lat, Lon: lon}, radius)
		r.dash.Subscriptions.Add(state.Subscription{
			ID:        id,
			Type:      state.TypeGeofencing,
			DeviceID:  device,
			CreatedAt: r.sched.Clock().Now(),
			Parameters: map[string]any{
				"latitude":  lat,
				"longitude": lon,
				"radius":    radius,
			},
		})
	})
}

func (r *Reconciler) geofenceUnsubscribed(call state.ToolCall, res map[string]any, present bool) {
	if !present {
		return
	}
	if id := subscriptionID(call, res); id != "" {
		r.dash.RemoveSubscription(id)
	}
	r.dash.Map.ClearGeofence()
}

func (r *Reconciler) networkSubscribed(_ state.ToolCall, res map[string]any, _ bool) {
	id, device := text(res, "subscription_id"), text(res, "device_id")
	if id == "" || device == "" {
		return
	}
	r.dash.Subscriptions.Add(state.Subscription{
		ID:        id,
		Type:      state.TypeNetwork,
		DeviceID:  device,
		CreatedAt: r.sched.Clock().Now(),
	})
}

func (r *Reconciler) networkUnsubscribed(call state.ToolCall, res map[string]any, present bool) {
	if !present {
		return
	}
	if id := subscriptionID(call, res); id != "" {
		r.dash.RemoveSubscription(id)
	}
}

func webRTCOwner(session string) string { return "webrtc:" + session }

func (r *Reconciler) webRTCHandled(call state.ToolCall, res map[string]any, present bool) {
	if !present {
		return
	}
	switch text(call.Arguments, "type") {
	case "accept_media_session":
		if text(res, "sdp") == "" {
			return
		}
		prev := r.dash.Status.Snapshot().StreamSessionID
		session := text(res, "session_id")
		if session == "" {
			session = prev
		}
		// A replaced session's pending edge processing must not fire.
		r.sched.CancelOwner(webRTCOwner(prev))
		r.dash.Status.SetStreamActive(true)
		r.dash.Status.SetStreamSessionID(session)
		r.sched.After(webRTCOwner(session), "edge-processing", r.opts.EdgeProcessingDelay, func() {
			r.dash.Status.SetEdgeProcessing(true)
		})
	case "cancel_media_session":
		r.sched.CancelOwner(webRTCOwner(r.dash.Status.Snapshot().StreamSessionID))
		r.dash.Status.SetStreamActive(false)
		r.dash.Status.SetEdgeProcessing(false)
		r.dash.Status.SetStreamSessionID("")
	}
}

func (r *Reconciler) qodCreated(_ state.ToolCall, res map[string]any, _ bool) {
	profile := text(res, "qos_profile")
	if profile == "" || text(res, "status") != "active" {
		return
	}
	r.dash.Status.SetQoSProfile(profile)
	if session := text(res, "session_id"); session != "" {
		r.dash.Status.SetQoDSessionID(session)
	}
	r.log.Info("QoS profile updated", zap.String("profile", profile), zap.String("session", text(res, "session_id")))
}

// subscriptionID prefers the id the call was made with over the one echoed in
// the result.
func subscriptionID(call state.ToolCall, res map[string]any) string {
	if id := text(call.Arguments, "subscription_id"); id != "" {
		return id
	}
	return text(res, "subscription_id")
}

// number returns a non-zero numeric field. Zero and missing values are
// treated alike.
func number(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, v != 0
	case int:
		return float64(v), v != 0
	}
	return 0, false
}

func text(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
