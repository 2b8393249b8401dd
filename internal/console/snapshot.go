package console

import (
	"droneops-console/internal/profile"
	"droneops-console/internal/state"
)

// Snapshot is everything a presentation layer renders.
type Snapshot struct {
	state.View
	Connection string            `json:"connection"`
	Attempts   int               `json:"reconnect_attempts"`
	Profile    string            `json:"profile"`
	Title      string            `json:"title"`
	Analysis   *profile.Analysis `json:"analysis,omitempty"`
}

// Snapshot copies the current state. The edge analysis is included only while
// edge processing is active.
func (c *Console) Snapshot() Snapshot {
	p := c.Profile()
	s := Snapshot{
		View:       c.dash.Snapshot(),
		Connection: c.strm.State().String(),
		Attempts:   c.strm.Attempts(),
		Profile:    p.Name,
		Title:      p.Title,
	}
	if s.Status.EdgeProcessing {
		a := p.Analysis
		s.Analysis = &a
	}
	return s
}
