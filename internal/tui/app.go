// Package tui renders the interactive dual-pane browser.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/ducktransfer/internal/config"
	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/localfs"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

// Options collects everything the interactive app works with.
type Options struct {
	Store        ConnectionStore
	Session      *transfer.Session
	Orchestrator *transfer.Orchestrator
	Local        *localfs.FS
	UserData     *config.UserData
	StartDir     string

	// NewConnector builds an unconnected connector for a protocol.
	NewConnector func(connector.Protocol) (connector.Connector, error)
}

type appState int

const (
	stateSelecting appState = iota
	stateBrowsing
)

// connectResultMsg reports the outcome of binding a connection.
type connectResultMsg struct {
	config connector.Config
	err    error
}

// AppModel switches between the connection selector and the browser.
type AppModel struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     Options
	state    appState
	selector *ConnectionSelectorModel
	browser  *BrowserModel
	window   tea.WindowSizeMsg
}

// NewAppModel creates the root model, starting at the connection selector.
func NewAppModel(opts Options) *AppModel {
	ctx, cancel := context.WithCancel(context.Background())
	last := ""
	if opts.UserData != nil {
		last = opts.UserData.LastConnection
	}
	return &AppModel{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		state:    stateSelecting,
		selector: NewConnectionSelectorModel(opts.Store, last),
		window:   tea.WindowSizeMsg{Width: 80, Height: 24},
	}
}

// Init implements the bubbletea.Model interface
func (m *AppModel) Init() tea.Cmd {
	return m.selector.Init()
}

// Update implements the bubbletea.Model interface
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.window = msg
		m.selector.Update(msg)
		if m.browser != nil {
			m.browser.Update(msg)
		}
		return m, nil

	case connectRequestMsg:
		return m, m.connect(msg.config)

	case connectResultMsg:
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("connection", msg.config.Name).Warn("Connect failed")
			return m, m.selector.connectFailed(msg.err)
		}
		m.selector.connecting = ""
		m.selector.lastConnection = msg.config.Name
		m.rememberConnection(msg.config.Name)
		return m, m.openBrowser()

	case switchConnectionMsg:
		m.rememberLocalDir()
		m.browser = nil
		m.state = stateSelecting
		m.selector.loading = true
		return m, m.disconnect()

	case disconnectedMsg:
		return m, m.selector.Init()
	}

	if m.state == stateBrowsing && m.browser != nil {
		_, cmd := m.browser.Update(msg)
		return m, cmd
	}
	_, cmd := m.selector.Update(msg)
	return m, cmd
}

// View implements the bubbletea.Model interface
func (m *AppModel) View() string {
	if m.state == stateBrowsing && m.browser != nil {
		return m.browser.View()
	}
	return m.selector.View()
}

// connect builds a connector for cfg and binds it to the session off the
// interactive loop.
func (m *AppModel) connect(cfg connector.Config) tea.Cmd {
	return func() tea.Msg {
		c, err := m.opts.NewConnector(cfg.Protocol)
		if err != nil {
			return connectResultMsg{config: cfg, err: err}
		}
		logrus.WithFields(logrus.Fields{"connection": cfg.Name, "address": cfg.Address()}).Info("Connecting")
		if err := m.opts.Session.Bind(m.ctx, c, cfg); err != nil {
			return connectResultMsg{config: cfg, err: err}
		}
		return connectResultMsg{config: cfg}
	}
}

// disconnect unbinds the session off the interactive loop.
func (m *AppModel) disconnect() tea.Cmd {
	return func() tea.Msg {
		m.opts.Session.Unbind()
		return disconnectedMsg{}
	}
}

func (m *AppModel) openBrowser() tea.Cmd {
	startDir := m.opts.StartDir
	if m.browser != nil && m.browser.LocalDir() != "" {
		startDir = m.browser.LocalDir()
	}
	m.browser = NewBrowserModel(m.ctx, BrowserDeps{
		Session:      m.opts.Session,
		Orchestrator: m.opts.Orchestrator,
		Local:        m.opts.Local,
		StartDir:     startDir,
	})
	m.browser.Update(m.window)
	m.state = stateBrowsing
	return m.browser.Init()
}

func (m *AppModel) rememberConnection(name string) {
	if m.opts.UserData == nil {
		return
	}
	if err := m.opts.UserData.SetLastConnection(name); err != nil {
		logrus.WithError(err).Warn("Failed to save last connection")
	}
}

func (m *AppModel) rememberLocalDir() {
	if m.opts.UserData == nil || m.browser == nil || m.browser.LocalDir() == "" {
		return
	}
	m.opts.StartDir = m.browser.LocalDir()
	if err := m.opts.UserData.SetLastLocalDir(m.browser.LocalDir()); err != nil {
		logrus.WithError(err).Warn("Failed to save last local directory")
	}
}

// shutdown cancels in-flight work, disconnects and saves user data.
func (m *AppModel) shutdown() {
	m.cancel()
	m.rememberLocalDir()
	m.opts.Session.Unbind()
}

// Run starts the interactive app and blocks until the user quits.
func Run(opts Options) error {
	if opts.NewConnector == nil {
		return fmt.Errorf("no connector factory configured")
	}
	model := NewAppModel(opts)
	defer model.shutdown()

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}
