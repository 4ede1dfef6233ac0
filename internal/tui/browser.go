package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/localfs"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
	tuiconfig "github.com/HaiFongPan/ducktransfer/internal/tui/config"
	"github.com/HaiFongPan/ducktransfer/internal/tui/messaging"
	"github.com/HaiFongPan/ducktransfer/internal/tui/theme"
	"github.com/HaiFongPan/ducktransfer/internal/utils"
)

var errRemoteBusy = errors.New("wait for the current transfer to finish")

const quitWhileTransferring = "A transfer is running, press q again to abort it and quit"

// BrowserDeps wires the browser to the bound session and the local filesystem.
type BrowserDeps struct {
	Session      *transfer.Session
	Orchestrator *transfer.Orchestrator
	Local        *localfs.FS
	StartDir     string
}

// BrowserModel is the dual-pane browser: local files on the left, the bound
// connection on the right.
type BrowserModel struct {
	ctx          context.Context
	session      *transfer.Session
	orchestrator *transfer.Orchestrator
	local        *localfs.FS
	startDir     string

	localPane  pane
	remotePane pane
	focus      transfer.Pane

	keyMap   KeyMap
	help     help.Model
	spinner  spinner.Model
	status   messaging.StatusManager
	dirInput  textinput.Model
	pathInput textinput.Model
	progress  progress.Model

	showHelp      bool
	confirmDelete bool
	deleteTarget  connector.Entry
	creatingDir   bool
	gotoPath      bool
	gotoPane      transfer.Pane
	quitPending   bool

	transferring      bool
	transferDirection transfer.Direction
	transferName      string
	transferred       int64
	transferTotal     int64
	events            <-chan transfer.Event

	windowWidth  int
	windowHeight int

	copyToClipboard func(string) error
}

// NewBrowserModel creates a browser for the connection currently bound to
// deps.Session. ctx bounds every remote call and transfer started from it.
func NewBrowserModel(ctx context.Context, deps BrowserDeps) *BrowserModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.CreateLoadingStyle()

	h := help.New()
	h.ShowAll = false

	ti := textinput.New()
	ti.Placeholder = "directory name"
	ti.CharLimit = 255
	ti.Width = tuiconfig.DialogDefaultWidth - 8

	pi := textinput.New()
	pi.CharLimit = 1024
	pi.Width = tuiconfig.DialogDefaultWidth - 8

	m := &BrowserModel{
		ctx:             ctx,
		session:         deps.Session,
		orchestrator:    deps.Orchestrator,
		local:           deps.Local,
		startDir:        deps.StartDir,
		localPane:       newPane(transfer.PaneLocal),
		remotePane:      newPane(transfer.PaneRemote),
		focus:           transfer.PaneLocal,
		keyMap:          DefaultKeyMap(),
		help:            h,
		spinner:         s,
		status:          messaging.NewStatusManager(),
		dirInput:        ti,
		pathInput:       pi,
		progress:        progress.New(progress.WithDefaultGradient()),
		windowWidth:     80,
		windowHeight:    24,
		copyToClipboard: utils.CopyToClipboard,
	}
	m.localPane.loading = true
	m.remotePane.loading = true
	return m
}

// Init lists both panes
func (m *BrowserModel) Init() tea.Cmd {
	return tea.Batch(m.listLocal(m.startDir), m.listRemote(""), m.spinner.Tick)
}

// LocalDir returns the directory shown in the local pane.
func (m *BrowserModel) LocalDir() string {
	return m.localPane.path
}

// Update implements the bubbletea.Model interface
func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case localListedMsg:
		m.localPane.loading = false
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("path", msg.path).Warn("Local listing failed")
			return m, m.setStatus(fmt.Sprintf("Cannot open %s: %v", msg.path, msg.err), messaging.MessageError)
		}
		m.localPane.setEntries(msg.path, msg.entries)
		return m, nil

	case remoteListedMsg:
		m.remotePane.loading = false
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("path", msg.path).Warn("Remote listing failed")
			return m, m.setStatus(fmt.Sprintf("Cannot open %s: %v", msg.path, msg.err), messaging.MessageError)
		}
		m.remotePane.setEntries(msg.path, msg.entries)
		return m, nil

	case transferEventMsg:
		return m.handleTransferEvent(msg)

	case remoteDeletedMsg:
		if !msg.ok {
			return m, m.setStatus(fmt.Sprintf("Could not delete %s", msg.entry.DisplayName()), messaging.MessageError)
		}
		return m, tea.Batch(
			m.setStatus(theme.FormatSuccessMessage("deleted", msg.entry.DisplayName()), messaging.MessageSuccess),
			m.listRemote(m.remotePane.path),
		)

	case remoteDirCreatedMsg:
		if !msg.ok {
			return m, m.setStatus(fmt.Sprintf("Could not create directory %s", msg.name), messaging.MessageError)
		}
		return m, tea.Batch(
			m.setStatus(theme.FormatSuccessMessage("created", msg.name), messaging.MessageSuccess),
			m.listRemote(m.remotePane.path),
		)

	case clearStatusMsg:
		m.status.ClearIfStale(msg.stamp)
		return m, nil
	}

	return m, nil
}

func (m *BrowserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.creatingDir {
		return m.handleMakeDirInput(msg)
	}
	if m.gotoPath {
		return m.handleGoToInput(msg)
	}
	if m.confirmDelete {
		return m.handleDeleteConfirmation(msg)
	}
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keyMap.Help), key.Matches(msg, m.keyMap.Cancel):
			m.showHelp = false
		case key.Matches(msg, m.keyMap.Quit):
			return m, m.quit()
		}
		return m, nil
	}

	quitPending := m.quitPending
	m.quitPending = false

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.quitPending = quitPending
		return m, m.quit()

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keyMap.Switch):
		m.setFocus(1 - m.focus)
		return m, nil

	case key.Matches(msg, m.keyMap.Refresh):
		if m.focus == transfer.PaneLocal {
			return m, m.listLocal(m.localPane.path)
		}
		if m.transferring {
			return m, m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
		}
		return m, m.listRemote(m.remotePane.path)

	case key.Matches(msg, m.keyMap.Open):
		return m, m.open()

	case key.Matches(msg, m.keyMap.Back):
		return m, m.back()

	case key.Matches(msg, m.keyMap.Download):
		return m, m.startTransfer(transfer.Download)

	case key.Matches(msg, m.keyMap.Upload):
		return m, m.startTransfer(transfer.Upload)

	case key.Matches(msg, m.keyMap.Delete):
		return m, m.requestDelete()

	case key.Matches(msg, m.keyMap.MakeDir):
		if m.transferring {
			return m, m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
		}
		m.creatingDir = true
		m.dirInput.Reset()
		return m, m.dirInput.Focus()

	case key.Matches(msg, m.keyMap.GoTo):
		if m.focus == transfer.PaneRemote && m.transferring {
			return m, m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
		}
		m.gotoPath = true
		m.gotoPane = m.focus
		m.pathInput.Reset()
		m.pathInput.Placeholder = m.focusedPane().path
		return m, m.pathInput.Focus()

	case key.Matches(msg, m.keyMap.Hidden):
		return m, m.toggleHidden()

	case key.Matches(msg, m.keyMap.CopyPath):
		return m, m.copySelectedPath()

	case key.Matches(msg, m.keyMap.Connect):
		if m.transferring {
			return m, m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
		}
		return m, func() tea.Msg { return switchConnectionMsg{} }
	}

	var cmd tea.Cmd
	focused := m.focusedPane()
	focused.table, cmd = focused.table.Update(msg)
	return m, cmd
}

func (m *BrowserModel) handleDeleteConfirmation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Confirm):
		m.confirmDelete = false
		return m, m.deleteRemote(m.deleteTarget)
	case key.Matches(msg, m.keyMap.Cancel):
		m.confirmDelete = false
		m.deleteTarget = connector.Entry{}
	}
	return m, nil
}

func (m *BrowserModel) handleMakeDirInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.creatingDir = false
		m.dirInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.creatingDir = false
		m.dirInput.Blur()
		name := strings.Trim(strings.TrimSpace(m.dirInput.Value()), "/")
		if name == "" {
			return m, nil
		}
		return m, m.createRemoteDir(name)
	}

	var cmd tea.Cmd
	m.dirInput, cmd = m.dirInput.Update(msg)
	return m, cmd
}

func (m *BrowserModel) handleGoToInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.gotoPath = false
		m.pathInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.gotoPath = false
		m.pathInput.Blur()
		target := strings.TrimSpace(m.pathInput.Value())
		if target == "" {
			return m, nil
		}
		if m.gotoPane == transfer.PaneLocal {
			return m, m.listLocal(m.local.Resolve(m.localPane.path, target))
		}
		if m.transferring {
			return m, m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
		}
		return m, m.gotoRemote(target)
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

// quit exits at once unless a transfer is running. Then the first press
// only warns and the second one aborts the transfer on the way out.
func (m *BrowserModel) quit() tea.Cmd {
	if !m.transferring || m.quitPending {
		return tea.Quit
	}
	m.quitPending = true
	return m.setStatus(quitWhileTransferring, messaging.MessageWarning)
}

func (m *BrowserModel) toggleHidden() tea.Cmd {
	show := !m.local.ShowHidden()
	m.local.SetShowHidden(show)
	state := "hidden"
	if show {
		state = "shown"
	}
	logrus.WithField("show_hidden", show).Debug("Toggled hidden files")
	return tea.Batch(
		m.setStatus(fmt.Sprintf("Hidden files %s", state), messaging.MessageInfo),
		m.listLocal(m.localPane.path),
	)
}

func (m *BrowserModel) handleTransferEvent(msg transferEventMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		m.events = nil
		return m, nil
	}

	ev := msg.event
	switch ev.Kind {
	case transfer.EventProgress:
		m.transferred = ev.Transferred
		m.transferTotal = ev.Total
		return m, waitForEvent(m.events)

	case transfer.EventDone:
		m.transferring = false
		m.quitPending = false
		m.events = nil
		if ev.Err != nil {
			return m, m.setStatus(theme.FormatErrorMessage(directionTitle(ev.Direction), ev.Err), messaging.MessageError)
		}
		return m, tea.Batch(
			m.setStatus(theme.FormatSuccessMessage(directionPast(ev.Direction), ev.Name), messaging.MessageSuccess),
			m.relist(ev.Destination),
		)
	}
	return m, nil
}

// relist refreshes the destination pane if it still shows dest.Dir.
func (m *BrowserModel) relist(dest transfer.Destination) tea.Cmd {
	if dest.Pane == transfer.PaneRemote {
		return m.listRemote(m.remotePane.path)
	}
	if m.localPane.path != dest.Dir {
		return nil
	}
	return m.listLocal(dest.Dir)
}

func (m *BrowserModel) open() tea.Cmd {
	focused := m.focusedPane()
	entry, ok := focused.selected()
	if !ok {
		return nil
	}
	if !entry.IsDir {
		if m.focus == transfer.PaneLocal {
			return m.startTransfer(transfer.Upload)
		}
		return m.startTransfer(transfer.Download)
	}
	if m.focus == transfer.PaneLocal {
		return m.listLocal(entry.Path)
	}
	if m.transferring {
		return m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
	}
	return m.listRemote(entry.Path)
}

func (m *BrowserModel) back() tea.Cmd {
	if m.focus == transfer.PaneLocal {
		if m.localPane.path == "" {
			return nil
		}
		return m.listLocal(localfs.Parent(m.localPane.path))
	}
	if m.transferring {
		return m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
	}
	return m.listRemoteParent(m.remotePane.path)
}

// startTransfer downloads the remote selection into the local directory or
// uploads the local selection into the remote directory.
func (m *BrowserModel) startTransfer(direction transfer.Direction) tea.Cmd {
	if m.transferring {
		return m.setStatus(transfer.ErrTransferInProgress.Error(), messaging.MessageWarning)
	}

	source, destDir := &m.remotePane, m.localPane.path
	if direction == transfer.Upload {
		source, destDir = &m.localPane, m.remotePane.path
	}
	if m.localPane.loading || m.remotePane.loading {
		return m.setStatus("Wait for the listing to finish", messaging.MessageWarning)
	}
	entry, ok := source.selected()
	if !ok {
		return m.setStatus(fmt.Sprintf("Select a %s file first", source.side), messaging.MessageWarning)
	}

	events, err := m.orchestrator.Start(m.ctx, transfer.Request{
		Direction: direction,
		Source:    entry,
		DestDir:   destDir,
	})
	if err != nil {
		kind := messaging.MessageError
		if errors.Is(err, transfer.ErrDirectoryTransfer) || errors.Is(err, transfer.ErrTransferInProgress) {
			kind = messaging.MessageWarning
		}
		return m.setStatus(err.Error(), kind)
	}

	m.transferring = true
	m.transferDirection = direction
	m.transferName = entry.DisplayName()
	m.transferred = 0
	m.transferTotal = entry.Size
	m.events = events
	m.status.ClearMessage()
	return waitForEvent(events)
}

func (m *BrowserModel) requestDelete() tea.Cmd {
	if m.focus != transfer.PaneRemote {
		return m.setStatus("Delete works on the remote pane", messaging.MessageWarning)
	}
	if m.transferring {
		return m.setStatus(errRemoteBusy.Error(), messaging.MessageWarning)
	}
	entry, ok := m.remotePane.selected()
	if !ok {
		return nil
	}
	m.confirmDelete = true
	m.deleteTarget = entry
	return nil
}

func (m *BrowserModel) copySelectedPath() tea.Cmd {
	entry, ok := m.focusedPane().selected()
	if !ok {
		return nil
	}
	if err := m.copyToClipboard(entry.Path); err != nil {
		return m.setStatus(fmt.Sprintf("Copy failed: %v", err), messaging.MessageError)
	}
	return m.setStatus(fmt.Sprintf("Copied %s", entry.Path), messaging.MessageInfo)
}

func (m *BrowserModel) focusedPane() *pane {
	if m.focus == transfer.PaneRemote {
		return &m.remotePane
	}
	return &m.localPane
}

func (m *BrowserModel) setFocus(p transfer.Pane) {
	m.focus = p
	m.localPane.setFocused(p == transfer.PaneLocal)
	m.remotePane.setFocused(p == transfer.PaneRemote)
}

func (m *BrowserModel) setStatus(message string, kind messaging.MessageType) tea.Cmd {
	stamp := m.status.SetMessage(message, kind)
	return clearStatusAfter(stamp)
}

func (m *BrowserModel) resize(width, height int) {
	m.windowWidth = width
	m.windowHeight = height
	m.help.Width = width

	paneWidth := int(float64(width)*tuiconfig.PaneWidthRatio) - 2
	tableHeight := height - tuiconfig.ChromeHeight - 4
	m.localPane.setSize(paneWidth, tableHeight)
	m.remotePane.setSize(paneWidth, tableHeight)
	m.progress.Width = tuiconfig.DialogDefaultWidth - 8
}

// View implements the bubbletea.Model interface
func (m *BrowserModel) View() string {
	base := m.renderMain()

	switch {
	case m.showHelp:
		return m.renderFloatingDialog(m.renderHelpDialog())
	case m.confirmDelete:
		return m.renderFloatingDialog(m.renderDeleteConfirmation())
	case m.creatingDir:
		return m.renderFloatingDialog(m.renderMakeDirDialog())
	case m.gotoPath:
		return m.renderFloatingDialog(m.renderGoToDialog())
	}
	return base
}

func (m *BrowserModel) renderMain() string {
	paneWidth := int(float64(m.windowWidth)*tuiconfig.PaneWidthRatio) - 2
	paneHeight := m.windowHeight - tuiconfig.ChromeHeight

	spin := m.spinner.View()
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.localPane.view(paneWidth, paneHeight, m.focus == transfer.PaneLocal, spin),
		m.remotePane.view(paneWidth, paneHeight, m.focus == transfer.PaneRemote, spin),
	)

	header := theme.CreateHeaderStyle().Render(m.renderHeader())
	footer := theme.CreateFooterStyle().Render(m.help.ShortHelpView(m.keyMap.ShortHelp()))

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, m.renderStatusLine(), footer)
}

func (m *BrowserModel) renderHeader() string {
	cfg := m.session.Config()
	if cfg.Name == "" {
		return "🦆 ducktransfer"
	}
	return fmt.Sprintf("🦆 ducktransfer  %s (%s %s)", cfg.Name, cfg.Protocol, cfg.Address())
}

func (m *BrowserModel) renderStatusLine() string {
	if m.transferring && !m.quitPending {
		return " " + m.renderTransferProgress()
	}
	return " " + m.status.RenderMessage()
}

// renderTransferProgress renders the progress bar and byte counts of the
// running transfer.
func (m *BrowserModel) renderTransferProgress() string {
	percent := transfer.Percent(m.transferred, m.transferTotal)
	label := theme.FormatProgressMessage(directionTitle(m.transferDirection), m.transferName, -1)
	counts := humanize.IBytes(uint64(m.transferred))
	if m.transferTotal > 0 {
		counts = fmt.Sprintf("%s / %s", counts, humanize.IBytes(uint64(m.transferTotal)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		theme.CreateProgressTextStyle().Render(label),
		" ",
		m.progress.ViewAs(percent/100),
		" ",
		counts,
	)
}

// renderFloatingDialog centers dialog over the whole window
func (m *BrowserModel) renderFloatingDialog(dialog string) string {
	return lipgloss.Place(
		m.windowWidth,
		m.windowHeight,
		lipgloss.Center,
		lipgloss.Center,
		dialog,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("#222222")),
	)
}

func (m *BrowserModel) renderDeleteConfirmation() string {
	kind := "file"
	if m.deleteTarget.IsDir {
		kind = "directory"
	}
	content := fmt.Sprintf("Delete %s: %s\n\nThis action cannot be undone!\n\nPress 'y' to confirm, 'n' to cancel",
		kind, m.deleteTarget.Path)
	return theme.CreateDialogStyle(tuiconfig.DialogDefaultWidth, theme.ColorBrightRed).Render(content)
}

func (m *BrowserModel) renderMakeDirDialog() string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		theme.CreatePromptStyle().Render(fmt.Sprintf("New directory in %s", m.remotePane.path)),
		"",
		m.dirInput.View(),
		"",
		theme.CreateSecondaryTextStyle().Render("enter to create, esc to cancel"),
	)
	return theme.CreateDialogStyle(tuiconfig.DialogDefaultWidth, "").Render(content)
}

func (m *BrowserModel) renderGoToDialog() string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		theme.CreatePromptStyle().Render(fmt.Sprintf("Go to path in the %s pane", m.gotoPane)),
		"",
		m.pathInput.View(),
		"",
		theme.CreateSecondaryTextStyle().Render("enter to open, esc to cancel"),
	)
	return theme.CreateDialogStyle(tuiconfig.DialogDefaultWidth, "").Render(content)
}

func (m *BrowserModel) renderHelpDialog() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.CreatePromptStyle().Render("Keyboard shortcuts"),
		"",
		m.help.FullHelpView(m.keyMap.FullHelp()),
	)
	return theme.CreateDialogStyle(tuiconfig.DialogLargeWidth, theme.ColorBrightYellow).Render(content)
}

func directionTitle(d transfer.Direction) string {
	if d == transfer.Upload {
		return "Uploading"
	}
	return "Downloading"
}

func directionPast(d transfer.Direction) string {
	if d == transfer.Upload {
		return "uploaded"
	}
	return "downloaded"
}
