package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/live"
)

const maxRows = 200

// KeyMap defines the keyboard bindings for the watcher.
type KeyMap struct {
	Clear key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type eventMsg live.BookingEvent

type tickMsg time.Time

// Model is the root Bubble Tea model: a status bar plus a scrolling log of
// booking events arriving on the live channel.
type Model struct {
	channel *live.Channel
	events  chan live.BookingEvent

	keys   KeyMap
	width  int
	height int

	rows  []live.BookingEvent
	state live.ConnectionState
	total int
}

// New creates the root model around an unopened channel.
func New(channel *live.Channel) Model {
	return Model{
		channel: channel,
		events:  make(chan live.BookingEvent, 256),
		keys:    DefaultKeyMap(),
		state:   live.StateIdle,
	}
}

// Init opens the live channel and starts the event and tick loops.
func (m Model) Init() tea.Cmd {
	events := m.events
	m.channel.Open(func(ev live.BookingEvent) {
		select {
		case events <- ev:
		default:
			// UI fell behind; dropping is preferable to stalling the reader.
		}
	})
	return tea.Batch(m.waitForEvent(), tick())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.channel.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.rows = nil
			return m, nil
		}
		return m, nil

	case eventMsg:
		m.rows = append(m.rows, live.BookingEvent(msg))
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}
		m.total++
		return m, m.waitForEvent()

	case tickMsg:
		m.state = m.channel.State()
		return m, tick()
	}
	return m, nil
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.events)
	}
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	stateStyles = map[live.ConnectionState]lipgloss.Style{
		live.StateIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		live.StateConnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		live.StateOpen:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		live.StateClosed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	kindStyles = map[live.EventKind]lipgloss.Style{
		live.KindCreated:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		live.KindSubmitted: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		live.KindApproved:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		live.KindRejected:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
)

// View renders the watcher.
func (m Model) View() string {
	state := stateStyles[m.state].Render(m.state.String())
	header := titleStyle.Render("u-schedule live") + " " + state +
		dimStyle.Render(fmt.Sprintf("  %d events", m.total))

	visible := m.rows
	if limit := m.height - 3; limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}

	body := ""
	for _, ev := range visible {
		body += renderRow(ev) + "\n"
	}

	help := helpStyle.Render("c clear • q quit")
	return header + "\n" + body + help
}

func renderRow(ev live.BookingEvent) string {
	ts := ev.Timestamp.Local().Format("15:04:05")
	kind := kindStyles[ev.Kind].Render(string(ev.Kind))
	return fmt.Sprintf(" %s  %-18s booking=%s dept=%s candidates=%d status=%s",
		dimStyle.Render(ts), kind, ev.Booking.ID, ev.Booking.DepartmentID,
		ev.Booking.CandidateCount, ev.Booking.Status)
}
