package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"droneops-console/internal/state"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func connectionIndicator(conn string) string {
	c := lipgloss.Color("9")
	switch conn {
	case "connected":
		c = lipgloss.Color("10")
	case "connecting":
		c = lipgloss.Color("11")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m Model) renderHeader() string {
	s := m.snap
	st := s.Status
	conn := fmt.Sprintf("%s %s", connectionIndicator(s.Connection), s.Connection)
	if s.Attempts > 0 {
		conn += fmt.Sprintf(" (attempt %d)", s.Attempts)
	}
	lines := []string{
		fmt.Sprintf("%s | events %s", titleStyle.Render(s.Title), conn),
		fmt.Sprintf("Emergency %s | Drone %s | Stream %s | Edge %s | QoS %s",
			indicator(st.EmergencyMode), indicator(st.DroneActive), indicator(st.StreamActive),
			indicator(st.EdgeProcessing), st.QoSProfile),
	}
	if loc := renderMap(s.Map); loc != "" {
		lines = append(lines, loc)
	}
	if a := s.Analysis; a != nil {
		lines = append(lines, fmt.Sprintf("Analysis: %d hotspots | spread %s %.1f km/h | %.1f km² | severity %s",
			len(a.Hotspots), a.Assessment.Direction, a.Assessment.SpreadRateKmh,
			a.Assessment.AffectedAreaKm2, a.Assessment.Severity))
	}
	return strings.Join(lines, "\n")
}

func renderMap(v state.MapView) string {
	var parts []string
	if v.Incident != nil {
		parts = append(parts, fmt.Sprintf("incident %s (%.4f,%.4f)", v.Incident.Address, v.Incident.Lat, v.Incident.Lon))
	}
	if v.Drone != nil {
		parts = append(parts, fmt.Sprintf("drone (%.4f,%.4f)", v.Drone.Lat, v.Drone.Lon))
	}
	if v.Edge != nil {
		parts = append(parts, "edge "+v.Edge.Zone)
	}
	if v.Geofence != nil {
		parts = append(parts, fmt.Sprintf("geofence %.0fm", v.Geofence.Radius))
	}
	return strings.Join(parts, " | ")
}

func (m Model) renderTranscript() string {
	width := m.vp.Width
	var b strings.Builder
	for i, msg := range m.snap.Chat.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case state.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(wrap(msg.Content, width) + "\n")
		case state.RoleSystem:
			b.WriteString(systemStyle.Render(wrap(msg.Content, width)) + "\n")
		default:
			b.WriteString(assistantStyle.Render("Assistant") + "\n")
			b.WriteString(m.markdown(msg.Content, width) + "\n")
			for j, tc := range msg.ToolCalls {
				b.WriteString(m.renderTool(i, j, tc, width) + "\n")
			}
		}
	}
	if m.snap.Chat.Typing {
		b.WriteString("\n" + dimStyle.Render("Assistant is typing…"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) markdown(content string, width int) string {
	if content == "" {
		return ""
	}
	if m.md != nil {
		if out, err := m.md.Render(content); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return wrap(content, width)
}

func (m Model) renderTool(msgIdx, toolIdx int, tc state.ToolCall, width int) string {
	mark := "…"
	switch {
	case tc.Failed():
		mark = "✗"
	case tc.Resolved:
		mark = "✓"
	}
	line := fmt.Sprintf("  🔧 %s %s", tc.Tool, mark)
	if m.collapsed(msgIdx, toolIdx) {
		return dimStyle.Render(line)
	}
	var lines []string
	lines = append(lines, line)
	if len(tc.Arguments) > 0 {
		lines = append(lines, "     args: "+compact(tc.Arguments))
	}
	if tc.Resolved {
		lines = append(lines, "     result: "+compact(tc.Result))
	}
	return dimStyle.Render(wrap(strings.Join(lines, "\n"), width))
}

func (m Model) collapsed(msgIdx, toolIdx int) bool {
	key := state.CollapseKey(msgIdx, toolIdx)
	for _, k := range m.snap.Chat.Collapsed {
		if k == key {
			return true
		}
	}
	return false
}

func (m Model) renderFooter() string {
	var lines []string
	for _, c := range m.suggestions() {
		lines = append(lines, fmt.Sprintf("  %-28s %s", c.Usage(), dimStyle.Render(c.Description)))
	}
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf(
		"enter send | ctrl+r reconnect | ctrl+e emergency | ctrl+o tools | ctrl+s scroll %s | ctrl+c quit",
		indicator(m.autoscroll))))
	return strings.Join(lines, "\n")
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}
