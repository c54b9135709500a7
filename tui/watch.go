// Package tui renders the live connection view for watch mode.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tunnelguard/tunnelguard/vpn"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	connectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	connectingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	messageStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// statusMsg carries a connection transition into the update loop.
type statusMsg struct {
	status  vpn.ConnectionStatus
	message string
}

// Model is the watch-mode bubbletea model.
type Model struct {
	orc     *vpn.Orchestrator
	profile string

	spinner  spinner.Model
	status   vpn.ConnectionStatus
	message  string
	override bool
	quitting bool

	transitions chan statusMsg
}

// NewModel builds the model around an orchestrator. The orchestrator's
// subscriber slot is taken over for the lifetime of the view.
func NewModel(orc *vpn.Orchestrator, profile string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = connectingStyle

	m := Model{
		orc:         orc,
		profile:     profile,
		spinner:     sp,
		status:      orc.Status(),
		message:     orc.LastError(),
		transitions: make(chan statusMsg, 16),
	}
	orc.Subscribe(func(status vpn.ConnectionStatus, message string) {
		select {
		case m.transitions <- statusMsg{status, message}:
		default:
			// The view only needs the latest state; dropping under
			// backpressure is fine.
		}
	})
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForTransition())
}

func (m Model) waitForTransition() tea.Cmd {
	return func() tea.Msg {
		return <-m.transitions
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = msg.status
		if msg.message != "" {
			m.message = msg.message
		}
		return m, m.waitForTransition()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.orc.Disconnect()
			return m, tea.Quit
		case "d":
			m.orc.Disconnect()
		case "p":
			if m.status == vpn.StatusConnected {
				m.orc.Pause()
			}
		case "r":
			if m.status == vpn.StatusDisconnected {
				m.orc.Resume()
			}
		case "R":
			m.orc.Reconnect()
		case "a":
			m.orc.AllowCommunicationWithoutVPN()
			m.override = true
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Disconnected.\n"
	}

	var status string
	switch m.status {
	case vpn.StatusConnected:
		status = connectedStyle.Render("● " + m.status.String())
	case vpn.StatusConnecting:
		status = m.spinner.View() + connectingStyle.Render(m.status.String())
	case vpn.StatusError:
		status = errorStyle.Render("✗ " + m.status.String())
	default:
		status = disconnectedStyle.Render("○ " + m.status.String())
	}

	view := titleStyle.Render("TunnelGuard") + "  " + m.profile + "\n\n"
	view += "  " + status + "\n"
	if m.message != "" {
		view += "  " + messageStyle.Render(m.message) + "\n"
	}
	if m.override {
		view += "  " + warnStyle.Render("⚠ communication allowed without VPN") + "\n"
	}
	view += "\n" + helpStyle.Render("  p pause · r resume · R reconnect · d disconnect · a allow insecure · q quit") + "\n"
	return view
}

// Run drives the watch view until the user quits.
func Run(orc *vpn.Orchestrator, profile string) error {
	p := tea.NewProgram(NewModel(orc, profile))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch view failed: %w", err)
	}
	return nil
}
