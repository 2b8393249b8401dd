package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"droneops-console/internal/console"
	"droneops-console/internal/profile"
	"droneops-console/internal/slash"
	"droneops-console/internal/state"
)

type fakeConsole struct {
	dash  *state.Dashboard
	table *slash.Table

	mu         sync.Mutex
	submitted  []string
	submitErr  error
	reconnects int
	observers  []func()
}

func newFakeConsole(t *testing.T) *fakeConsole {
	t.Helper()
	p, err := profile.Load("")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return &fakeConsole{
		dash:  state.NewDashboard(state.Options{Home: p.Base, Greeting: p.Greeting}),
		table: slash.NewTable(p),
	}
}

func (f *fakeConsole) Snapshot() console.Snapshot {
	return console.Snapshot{View: f.dash.Snapshot(), Connection: "connecting", Attempts: 2, Title: "Bushfire Response"}
}

func (f *fakeConsole) Commands() *slash.Table      { return f.table }
func (f *fakeConsole) Dashboard() *state.Dashboard { return f.dash }

func (f *fakeConsole) SubmitAsync(input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, input)
	return nil
}

func (f *fakeConsole) Reconnect() {
	f.mu.Lock()
	f.reconnects++
	f.mu.Unlock()
}

func (f *fakeConsole) Observe(fn func()) func() {
	f.mu.Lock()
	f.observers = append(f.observers, fn)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeConsole) observerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

func (f *fakeConsole) changed() {
	f.mu.Lock()
	obs := append([]func(){}, f.observers...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

type fakeProgram struct{ msgs chan tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs <- msg }

func sized(t *testing.T, fc *fakeConsole) Model {
	t.Helper()
	mi, _ := New(fc).Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return mi.(Model)
}

func press(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		mi, _ := m.Update(msg)
		m = mi.(Model)
	}
	return m
}

func typed(s string) tea.Msg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func TestHeaderShowsConnection(t *testing.T) {
	m := sized(t, newFakeConsole(t))
	view := m.View()
	if !strings.Contains(view, "Bushfire Response") {
		t.Fatalf("title missing from view:\n%s", view)
	}
	if !strings.Contains(view, "connecting (attempt 2)") {
		t.Fatalf("connection state missing from view:\n%s", view)
	}
	if !strings.Contains(view, "QoS "+state.DefaultQoSProfile) {
		t.Fatalf("qos profile missing from view:\n%s", view)
	}
}

func TestSubmitClearsInput(t *testing.T) {
	fc := newFakeConsole(t)
	m := press(sized(t, fc), typed("/qos"), enter)
	if len(fc.submitted) != 1 || fc.submitted[0] != "/qos" {
		t.Fatalf("unexpected submissions %v", fc.submitted)
	}
	if m.input.Value() != "" {
		t.Fatalf("input not cleared: %q", m.input.Value())
	}
}

func TestBlankInputNotSubmitted(t *testing.T) {
	fc := newFakeConsole(t)
	press(sized(t, fc), typed("   "), enter)
	if len(fc.submitted) != 0 {
		t.Fatalf("blank input submitted: %v", fc.submitted)
	}
}

func TestBusyKeepsInput(t *testing.T) {
	fc := newFakeConsole(t)
	fc.submitErr = console.ErrBusy
	m := press(sized(t, fc), typed("status?"), enter)
	if m.input.Value() != "status?" {
		t.Fatalf("input lost while busy: %q", m.input.Value())
	}
	if !strings.Contains(m.View(), "waiting for the current reply") {
		t.Fatalf("busy notice missing:\n%s", m.View())
	}
}

func TestRejectedCommandClearsInput(t *testing.T) {
	fc := newFakeConsole(t)
	fc.submitErr = slash.ErrUnknownCommand
	m := press(sized(t, fc), typed("/launch"), enter)
	if m.input.Value() != "" || m.notice != "" {
		t.Fatalf("expected cleared input and no notice, got %q %q", m.input.Value(), m.notice)
	}
}

func TestSuggestions(t *testing.T) {
	m := press(sized(t, newFakeConsole(t)), typed("/subscribe-geo"))
	got := m.suggestions()
	if len(got) != 2 || got[0].Name != "subscribe-geofence" || got[1].Name != "unsubscribe-geofence" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
	if !strings.Contains(m.View(), "/subscribe-geofence <radius>") {
		t.Fatalf("usage missing from footer:\n%s", m.View())
	}

	m = press(m, typed(" 500"))
	if got := m.suggestions(); len(got) != 0 {
		t.Fatalf("expected no suggestions once an argument is typed, got %+v", got)
	}
}

func TestSuggestionsCapped(t *testing.T) {
	m := press(sized(t, newFakeConsole(t)), typed("/"))
	if got := m.suggestions(); len(got) != maxSuggestions {
		t.Fatalf("expected %d suggestions, got %d", maxSuggestions, len(got))
	}
}

func TestSnapshotUpdatesTranscript(t *testing.T) {
	fc := newFakeConsole(t)
	m := sized(t, fc)
	fc.dash.Chat.AppendUser("where is the drone")
	fc.dash.Chat.AppendSystem("⚠️ Geofence boundary breach detected", nil)
	fc.dash.Chat.SetTyping(true)
	m = press(m, snapshotMsg{fc.Snapshot()})

	view := m.View()
	for _, want := range []string{"where is the drone", "Geofence boundary breach detected", "Assistant is typing"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSubscriptionsTable(t *testing.T) {
	fc := newFakeConsole(t)
	fc.dash.Subscriptions.Add(state.Subscription{ID: "geo-1", Type: state.TypeGeofencing, DeviceID: "drone-001"})
	m := press(sized(t, fc), snapshotMsg{fc.Snapshot()})
	if !strings.Contains(m.View(), "geo-1") {
		t.Fatalf("subscription missing from view:\n%s", m.View())
	}
}

func TestControlKeys(t *testing.T) {
	fc := newFakeConsole(t)
	m := press(sized(t, fc), tea.KeyMsg{Type: tea.KeyCtrlR}, tea.KeyMsg{Type: tea.KeyCtrlE})
	if fc.reconnects != 1 {
		t.Errorf("expected reconnect, got %d", fc.reconnects)
	}
	if !fc.dash.Status.Snapshot().EmergencyMode {
		t.Error("emergency mode not toggled")
	}
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.autoscroll {
		t.Error("autoscroll not toggled off")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Error("expected quit command")
	}
}

func TestToolCards(t *testing.T) {
	fc := newFakeConsole(t)
	m := sized(t, fc)
	m.snap.Chat.Messages = append(m.snap.Chat.Messages, state.ChatMessage{
		Role: state.RoleAssistant,
		ToolCalls: []state.ToolCall{{
			Tool:      "geocode_address",
			Arguments: map[string]any{"address": "1 Main St"},
			Result:    map[string]any{"lat": -37.8},
			Resolved:  true,
		}},
	})
	out := m.renderTranscript()
	if !strings.Contains(out, "geocode_address ✓") || !strings.Contains(out, `result: {"lat":-37.8}`) {
		t.Fatalf("expanded tool card missing:\n%s", out)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if !fc.dash.Chat.IsCollapsed(1, 0) {
		t.Fatal("tool card not collapsed")
	}
	m.snap.Chat.Collapsed = []string{state.CollapseKey(1, 0)}
	out = m.renderTranscript()
	if !strings.Contains(out, "geocode_address ✓") || strings.Contains(out, "result:") {
		t.Fatalf("collapsed tool card should hide details:\n%s", out)
	}
}

func TestForwardSendsSnapshots(t *testing.T) {
	fc := newFakeConsole(t)
	p := &fakeProgram{msgs: make(chan tea.Msg, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		forward(ctx, fc, p)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fc.observerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	fc.dash.Status.SetDroneActive(true)
	fc.changed()

	select {
	case msg := <-p.msgs:
		snap, ok := msg.(snapshotMsg)
		if !ok || !snap.Status.DroneActive {
			t.Fatalf("unexpected message %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot forwarded")
	}
	cancel()
	<-done
}
