// Package tui is the terminal front end of the console: a transcript
// viewport, a status header and a slash-aware input line.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"droneops-console/internal/console"
	"droneops-console/internal/slash"
	"droneops-console/internal/state"
)

// Console is the part of the console the terminal UI drives.
type Console interface {
	Snapshot() console.Snapshot
	Commands() *slash.Table
	SubmitAsync(input string) error
	Reconnect()
	Dashboard() *state.Dashboard
	Observe(fn func()) (cancel func())
}

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// snapshotMsg carries fresh console state.
type snapshotMsg struct{ console.Snapshot }

const (
	maxSuggestions = 6
	inputHeight    = 1
)

// Run shows the terminal UI until the user quits or ctx is done.
func Run(ctx context.Context, con Console) error {
	m := New(con)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go forward(fwdCtx, con, p)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// forward pushes a snapshot to p after every console change, coalescing
// bursts so observers never block on the UI.
func forward(ctx context.Context, con Console, p teaProgram) {
	dirty := make(chan struct{}, 1)
	stop := con.Observe(func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-dirty:
			p.Send(snapshotMsg{con.Snapshot()})
		}
	}
}

// Model is the bubbletea model of the console UI.
type Model struct {
	con        Console
	snap       console.Snapshot
	vp         viewport.Model
	input      textinput.Model
	subs       table.Model
	md         *glamour.TermRenderer
	width      int
	height     int
	autoscroll bool
	notice     string
	header     string
}

// New returns a model showing the current console state.
func New(con Console) Model {
	in := textinput.New()
	in.Placeholder = "Message the assistant, or / for commands"
	in.Prompt = "› "
	in.CharLimit = 4096
	in.ShowSuggestions = true
	in.Focus()

	cols := []table.Column{
		{Title: "Subscription", Width: 24},
		{Title: "ID", Width: 20},
		{Title: "Device", Width: 20},
	}
	m := Model{
		con:        con,
		snap:       con.Snapshot(),
		vp:         viewport.New(0, 0),
		input:      in,
		subs:       table.New(table.WithColumns(cols), table.WithHeight(1)),
		autoscroll: true,
	}
	m.md = newRenderer(80)
	m.refresh()
	return m
}

func newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(glamour.WithStylePath("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.input.Width = msg.Width - lipgloss.Width(m.input.Prompt) - 1
		m.md = newRenderer(msg.Width - 4)
		m.refresh()
		return m, nil
	case snapshotMsg:
		m.snap = msg.Snapshot
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.submit()
			m.updateSuggestions()
			m.layout()
			return m, nil
		case "ctrl+r":
			m.con.Reconnect()
			m.notice = "reconnecting event stream"
			m.layout()
			return m, nil
		case "ctrl+e":
			m.con.Dashboard().Status.ToggleEmergencyMode()
			return m, nil
		case "ctrl+o":
			m.toggleLatestTools()
			return m, nil
		case "ctrl+s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			m.autoscroll = m.vp.AtBottom()
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.updateSuggestions()
	m.layout()
	return m, cmd
}

// submit sends the input line. A busy console keeps the line so it can be
// sent again once the reply completes.
func (m *Model) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	err := m.con.SubmitAsync(text)
	switch {
	case err == nil:
		m.notice = ""
	case errors.Is(err, console.ErrBusy):
		m.notice = "waiting for the current reply"
		return
	case errors.Is(err, slash.ErrUnknownCommand), errors.Is(err, slash.ErrMissingArgument):
		// The console explains the rejection in the transcript.
		m.notice = ""
	default:
		m.notice = err.Error()
		return
	}
	m.input.Reset()
}

// toggleLatestTools flips every tool card of the newest message that has
// tool calls.
func (m *Model) toggleLatestTools() {
	msgs := m.snap.Chat.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if len(msgs[i].ToolCalls) == 0 {
			continue
		}
		for j := range msgs[i].ToolCalls {
			m.con.Dashboard().Chat.ToggleToolCollapse(i, j)
		}
		return
	}
}

// suggestions lists the commands matching the input while a command name is
// being typed.
func (m Model) suggestions() []slash.Command {
	v := m.input.Value()
	if !strings.HasPrefix(v, slash.Prefix) || strings.Contains(v, " ") {
		return nil
	}
	cmds := m.con.Commands().Suggest(v)
	if len(cmds) > maxSuggestions {
		cmds = cmds[:maxSuggestions]
	}
	return cmds
}

func (m *Model) updateSuggestions() {
	cmds := m.suggestions()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, slash.Prefix+c.Name)
	}
	m.input.SetSuggestions(names)
}

// refresh re-renders everything derived from the snapshot.
func (m *Model) refresh() {
	rows := make([]table.Row, 0, len(m.snap.Subscriptions))
	for _, s := range m.snap.Subscriptions {
		rows = append(rows, table.Row{s.Type, s.ID, s.DeviceID})
	}
	m.subs.SetRows(rows)
	m.subs.SetHeight(len(rows) + 1)
	if m.width > 0 {
		m.subs.SetWidth(m.width)
	}
	m.header = m.renderHeader()
	m.vp.SetContent(m.renderTranscript())
	m.layout()
}

// layout sizes the transcript to the space left by the other sections.
func (m *Model) layout() {
	used := lipgloss.Height(m.header) + lipgloss.Height(m.renderFooter()) + inputHeight + 2
	if len(m.snap.Subscriptions) > 0 {
		used += lipgloss.Height(m.subs.View()) + 1
	}
	h := m.height - used
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m Model) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{m.header, divider}
	if len(m.snap.Subscriptions) > 0 {
		sections = append(sections, m.subs.View(), divider)
	}
	sections = append(sections, m.vp.View(), divider, m.input.View(), m.renderFooter())
	return strings.Join(sections, "\n")
}
