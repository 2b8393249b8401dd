// Package profile describes mission variants such as bushfire and power
// outage response. A profile supplies the terminology, home base, edge image
// and static edge analysis that the rest of the console is parameterised by.
package profile

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"droneops-console/internal/config"
	"droneops-console/internal/state"
)

//go:embed profiles/*.yaml profiles/schema.cue
var builtin embed.FS

// Default is the profile used when none is configured.
const Default = "bushfire"

// Image is a deployable edge application image.
type Image struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// QoSProfile describes a network quality tier.
type QoSProfile struct {
	Name                string  `yaml:"name" json:"name"`
	MaxDownstreamBps    int64   `yaml:"max_downstream_bps" json:"max_downstream_bps"`
	MaxUpstreamBps      int64   `yaml:"max_upstream_bps" json:"max_upstream_bps"`
	JitterMs            float64 `yaml:"jitter_ms" json:"jitter_ms"`
	PacketErrorLossRate float64 `yaml:"packet_error_loss_rate" json:"packet_error_loss_rate"`
}

// Hotspot is one location flagged by edge analysis.
type Hotspot struct {
	ID         string  `yaml:"id" json:"id"`
	Lat        float64 `yaml:"lat" json:"lat"`
	Lon        float64 `yaml:"lon" json:"lon"`
	Type       string  `yaml:"type" json:"type"`
	Severity   string  `yaml:"severity" json:"severity"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// Assessment summarises how the incident is developing.
type Assessment struct {
	Direction       string  `yaml:"direction" json:"direction"`
	SpreadRateKmh   float64 `yaml:"spread_rate_kmh" json:"spread_rate_kmh"`
	AffectedAreaKm2 float64 `yaml:"affected_area_km2" json:"affected_area_km2"`
	Severity        string  `yaml:"severity" json:"severity"`
	EstimatedHours  float64 `yaml:"estimated_hours" json:"estimated_hours"`
}

// Analysis is the edge analysis shown while edge processing is active.
type Analysis struct {
	Hotspots   []Hotspot      `yaml:"hotspots" json:"hotspots"`
	Assessment Assessment     `yaml:"assessment" json:"assessment"`
	Summary    map[string]any `yaml:"summary" json:"summary,omitempty"`
}

// Profile is one mission variant.
type Profile struct {
	Name        string       `yaml:"name" json:"name"`
	Title       string       `yaml:"title" json:"title"`
	Greeting    string       `yaml:"greeting" json:"greeting"`
	Incident    string       `yaml:"incident" json:"incident"`
	Base        state.Place  `yaml:"base" json:"base"`
	EdgeImage   Image        `yaml:"edge_image" json:"edge_image"`
	QoSProfiles []QoSProfile `yaml:"qos_profiles" json:"qos_profiles"`
	Analysis    Analysis     `yaml:"analysis" json:"analysis"`
}

// Builtin returns the names of the embedded profiles, sorted.
func Builtin() []string {
	entries, err := builtin.ReadDir("profiles")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Load returns the built-in profile called nameOrPath, or reads the YAML file
// at nameOrPath. An empty name selects Default.
func Load(nameOrPath string) (*Profile, error) {
	if nameOrPath == "" {
		nameOrPath = Default
	}
	if data, err := builtin.ReadFile(path.Join("profiles", nameOrPath+".yaml")); err == nil {
		return Parse(nameOrPath+".yaml", data)
	}
	data, err := os.ReadFile(nameOrPath)
	if err != nil {
		return nil, fmt.Errorf("unknown profile %q: %w", nameOrPath, err)
	}
	return Parse(nameOrPath, data)
}

// Parse validates data against the profile schema and decodes it.
func Parse(filename string, data []byte) (*Profile, error) {
	schema, err := builtin.ReadFile("profiles/schema.cue")
	if err != nil {
		return nil, fmt.Errorf("read profile schema: %w", err)
	}
	if err := config.ValidateYAML(schema, "#Profile", filename, data); err != nil {
		return nil, fmt.Errorf("profile %s: %w", filename, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", filename, err)
	}
	return &p, nil
}

// QoS returns the named quality tier.
func (p *Profile) QoS(name string) (QoSProfile, bool) {
	for _, q := range p.QoSProfiles {
		if q.Name == name {
			return q, true
		}
	}
	return QoSProfile{}, false
}
