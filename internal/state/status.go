package state

import "sync"

// DefaultQoSProfile is the profile in effect until a quality-on-demand session
// is created.
const DefaultQoSProfile = "QOS_L"

// Status is a snapshot of SystemStatus.
type Status struct {
	EmergencyMode   bool            `json:"emergency_mode"`
	DroneActive     bool            `json:"drone_active"`
	StreamActive    bool            `json:"stream_active"`
	EdgeProcessing  bool            `json:"edge_processing"`
	StreamSessionID string          `json:"stream_session_id,omitempty"`
	QoSProfile      string          `json:"qos_profile"`
	QoDSessionID    string          `json:"qod_session_id,omitempty"`
	EdgeDeployment  *EdgeDeployment `json:"edge_deployment,omitempty"`
}

// SystemStatus tracks operational flags and session identifiers.
type SystemStatus struct {
	observers
	mu sync.RWMutex
	s  Status
}

// NewSystemStatus returns a store with every flag cleared.
func NewSystemStatus() *SystemStatus {
	return &SystemStatus{s: Status{QoSProfile: DefaultQoSProfile}}
}

func (st *SystemStatus) update(fn func(*Status)) {
	st.mu.Lock()
	fn(&st.s)
	st.mu.Unlock()
	st.notify()
}

// Snapshot returns a copy of the current status.
func (st *SystemStatus) Snapshot() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := st.s
	if out.EdgeDeployment != nil {
		d := *out.EdgeDeployment
		out.EdgeDeployment = &d
	}
	return out
}

func (st *SystemStatus) SetEmergencyMode(v bool) { st.update(func(s *Status) { s.EmergencyMode = v }) }

func (st *SystemStatus) ToggleEmergencyMode() {
	st.update(func(s *Status) { s.EmergencyMode = !s.EmergencyMode })
}

func (st *SystemStatus) SetDroneActive(v bool) { st.update(func(s *Status) { s.DroneActive = v }) }

func (st *SystemStatus) SetStreamActive(v bool) { st.update(func(s *Status) { s.StreamActive = v }) }

func (st *SystemStatus) SetEdgeProcessing(v bool) { st.update(func(s *Status) { s.EdgeProcessing = v }) }

func (st *SystemStatus) SetStreamSessionID(id string) {
	st.update(func(s *Status) { s.StreamSessionID = id })
}

func (st *SystemStatus) SetQoSProfile(p string) { st.update(func(s *Status) { s.QoSProfile = p }) }

func (st *SystemStatus) SetQoDSessionID(id string) { st.update(func(s *Status) { s.QoDSessionID = id }) }

// SetEdgeDeployment records the deployed edge application.
func (st *SystemStatus) SetEdgeDeployment(d EdgeDeployment) {
	st.update(func(s *Status) { s.EdgeDeployment = &d })
}

func (st *SystemStatus) ClearEdgeDeployment() {
	st.update(func(s *Status) { s.EdgeDeployment = nil })
}

// Reset clears every flag and identifier and restores the default QoS profile.
func (st *SystemStatus) Reset() {
	st.update(func(s *Status) { *s = Status{QoSProfile: DefaultQoSProfile} })
}
