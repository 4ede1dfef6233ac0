package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	tuiconfig "github.com/HaiFongPan/ducktransfer/internal/tui/config"
	"github.com/HaiFongPan/ducktransfer/internal/tui/messaging"
	"github.com/HaiFongPan/ducktransfer/internal/tui/theme"
)

// ConnectionStore is the part of the persisted store the selector needs.
type ConnectionStore interface {
	Load() ([]connector.Config, error)
	Remove(name string) error
}

// ConnectionSelectorModel lists saved connections and asks the app to
// connect to the chosen one.
type ConnectionSelectorModel struct {
	store          ConnectionStore
	connections    []connector.Config
	lastConnection string
	selectedIndex  int
	loading        bool
	connecting     string
	showHelp       bool
	confirmRemove  bool
	status         messaging.StatusManager
	keyMap         ConnectionSelectorKeyMap
	help           help.Model
	spinner        spinner.Model
	windowWidth    int
	windowHeight   int
}

// ConnectionSelectorKeyMap defines keybindings for the connection selector
type ConnectionSelectorKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Remove  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultConnectionSelectorKeyMap returns default keybindings
func DefaultConnectionSelectorKeyMap() ConnectionSelectorKeyMap {
	return ConnectionSelectorKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "remove"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/esc", "quit"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "yes"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "no"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k ConnectionSelectorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Remove, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k ConnectionSelectorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Remove, k.Refresh},
		{k.Help, k.Quit},
	}
}

// NewConnectionSelectorModel creates a selector that preselects lastConnection
func NewConnectionSelectorModel(store ConnectionStore, lastConnection string) *ConnectionSelectorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.CreateLoadingStyle()

	return &ConnectionSelectorModel{
		store:          store,
		lastConnection: lastConnection,
		status:         messaging.NewStatusManager(),
		keyMap:         DefaultConnectionSelectorKeyMap(),
		help:           help.New(),
		spinner:        s,
		loading:        true,
		windowWidth:    80,
		windowHeight:   24,
	}
}

// Messages for the connection selector

type connectionsLoadedMsg struct {
	connections []connector.Config
	err         error
}

type connectionRemovedMsg struct {
	name string
	err  error
}

// connectRequestMsg asks the app to bind the chosen connection.
type connectRequestMsg struct {
	config connector.Config
}

// Init loads the saved connections
func (m *ConnectionSelectorModel) Init() tea.Cmd {
	return tea.Batch(m.loadConnections(), m.spinner.Tick)
}

// Update handles messages in the connection selector
func (m *ConnectionSelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case connectionsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			return m, m.setStatus(fmt.Sprintf("Error loading connections: %v", msg.err), messaging.MessageError)
		}
		m.connections = msg.connections
		m.selectedIndex = 0
		for i, c := range m.connections {
			if c.Name == m.lastConnection {
				m.selectedIndex = i
				break
			}
		}
		return m, nil

	case connectionRemovedMsg:
		if msg.err != nil {
			return m, m.setStatus(fmt.Sprintf("Error removing %s: %v", msg.name, msg.err), messaging.MessageError)
		}
		return m, tea.Batch(
			m.setStatus(fmt.Sprintf("Removed connection: %s", msg.name), messaging.MessageSuccess),
			m.loadConnections(),
		)

	case clearStatusMsg:
		m.status.ClearIfStale(msg.stamp)
		return m, nil
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m *ConnectionSelectorModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loading || m.connecting != "" {
		if key.Matches(msg, m.keyMap.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.confirmRemove {
		switch {
		case key.Matches(msg, m.keyMap.Confirm):
			m.confirmRemove = false
			return m, m.removeConnection(m.connections[m.selectedIndex].Name)
		case key.Matches(msg, m.keyMap.Cancel):
			m.confirmRemove = false
		}
		return m, nil
	}

	if m.showHelp {
		if key.Matches(msg, m.keyMap.Help) || key.Matches(msg, m.keyMap.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.selectedIndex < len(m.connections)-1 {
			m.selectedIndex++
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Select):
		if len(m.connections) == 0 {
			return m, nil
		}
		cfg := m.connections[m.selectedIndex]
		m.connecting = cfg.Name
		m.status.ClearMessage()
		return m, func() tea.Msg { return connectRequestMsg{config: cfg} }

	case key.Matches(msg, m.keyMap.Remove):
		if len(m.connections) > 0 {
			m.confirmRemove = true
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keyMap.Refresh):
		m.loading = true
		return m, m.loadConnections()

	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit
	}

	return m, nil
}

// connectFailed is called by the app when binding the chosen connection failed
func (m *ConnectionSelectorModel) connectFailed(err error) tea.Cmd {
	m.connecting = ""
	return m.setStatus(err.Error(), messaging.MessageError)
}

func (m *ConnectionSelectorModel) setStatus(message string, kind messaging.MessageType) tea.Cmd {
	return clearStatusAfter(m.status.SetMessage(message, kind))
}

// View renders the connection selector
func (m *ConnectionSelectorModel) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(theme.ColorBrightYellow)).
		Render("🦆 Connections")

	var body string
	switch {
	case m.loading:
		body = theme.CreateLoadingStyle().Render(m.spinner.View() + " Loading connections...")
	case m.showHelp:
		body = m.help.FullHelpView(m.keyMap.FullHelp())
	case len(m.connections) == 0:
		body = theme.CreateSecondaryTextStyle().Render(
			"No saved connections.\n\nAdd one with:\n  ducktransfer connections add <name> --protocol sftp --host example.com")
	default:
		body = m.renderConnectionList()
	}

	parts := []string{title, "", body, ""}
	switch {
	case m.connecting != "":
		parts = append(parts, theme.CreateLoadingStyle().Render(
			fmt.Sprintf("%s Connecting to %s...", m.spinner.View(), m.connecting)), "")
	case m.confirmRemove:
		parts = append(parts, theme.CreateErrorStyle().Render(
			fmt.Sprintf("Remove %s? (y/n)", m.connections[m.selectedIndex].Name)), "")
	case m.status.HasMessage():
		parts = append(parts, m.status.RenderMessage(), "")
	}
	parts = append(parts, m.help.ShortHelpView(m.keyMap.ShortHelp()))

	return lipgloss.Place(
		m.windowWidth, m.windowHeight,
		lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.ColorBrightYellow)).
			Padding(1, 3).
			Width(tuiconfig.SelectorWidth).
			Render(lipgloss.JoinVertical(lipgloss.Left, parts...)),
	)
}

func (m *ConnectionSelectorModel) renderConnectionList() string {
	lines := make([]string, 0, len(m.connections))
	for i, c := range m.connections {
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.ColorWhite)).Padding(0, 1)
		if i == m.selectedIndex {
			prefix = "▶ "
			style = theme.CreateSelectedItemStyle().Padding(0, 1)
		}

		marker := "  "
		if c.Name == m.lastConnection {
			marker = "* "
		}

		line := fmt.Sprintf("%s%s%-16s %-5s %s", prefix, marker, c.Name, strings.ToUpper(string(c.Protocol)), c.Address())
		lines = append(lines, style.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m *ConnectionSelectorModel) loadConnections() tea.Cmd {
	return func() tea.Msg {
		connections, err := m.store.Load()
		if err != nil {
			logrus.WithError(err).Error("ConnectionSelector: failed to load connections")
			return connectionsLoadedMsg{err: err}
		}
		logrus.Debugf("ConnectionSelector: loaded %d connections", len(connections))
		return connectionsLoadedMsg{connections: connections}
	}
}

func (m *ConnectionSelectorModel) removeConnection(name string) tea.Cmd {
	return func() tea.Msg {
		logrus.Infof("ConnectionSelector: removing connection %s", name)
		return connectionRemovedMsg{name: name, err: m.store.Remove(name)}
	}
}
