package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
	tuiconfig "github.com/HaiFongPan/ducktransfer/internal/tui/config"
)

// Messages for the browser

type localListedMsg struct {
	path    string
	entries []connector.Entry
	err     error
}

type remoteListedMsg struct {
	path    string
	entries []connector.Entry
	err     error
}

type transferEventMsg struct {
	event  transfer.Event
	closed bool
}

type remoteDeletedMsg struct {
	entry connector.Entry
	ok    bool
}

type remoteDirCreatedMsg struct {
	name string
	ok   bool
}

type clearStatusMsg struct {
	stamp time.Time
}

type switchConnectionMsg struct{}

type disconnectedMsg struct{}

// waitForEvent blocks on the next transfer event. The browser re-issues it
// after every progress event until the terminal one arrives.
func waitForEvent(events <-chan transfer.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return transferEventMsg{closed: true}
		}
		return transferEventMsg{event: ev}
	}
}

func clearStatusAfter(stamp time.Time) tea.Cmd {
	return tea.Tick(tuiconfig.StatusMessageTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{stamp: stamp}
	})
}

// listLocal enumerates dir on the local filesystem
func (m *BrowserModel) listLocal(dir string) tea.Cmd {
	m.localPane.loading = true
	return func() tea.Msg {
		entries, err := m.local.Enumerate(dir)
		return localListedMsg{path: dir, entries: entries, err: err}
	}
}

// listRemote lists p on the bound connector and reports the cursor the
// connector ended up on. An empty p lists the current directory.
func (m *BrowserModel) listRemote(p string) tea.Cmd {
	m.remotePane.loading = true
	return func() tea.Msg {
		msg := remoteListedMsg{path: p}
		msg.err = m.session.Do(func(c connector.Connector) error {
			entries, err := c.List(m.ctx, p)
			if err != nil {
				return err
			}
			msg.entries = entries
			msg.path = c.CurrentPath(m.ctx)
			return nil
		})
		return msg
	}
}

// listRemoteParent lists the parent of p using the connector's path rules.
func (m *BrowserModel) listRemoteParent(p string) tea.Cmd {
	m.remotePane.loading = true
	return func() tea.Msg {
		msg := remoteListedMsg{path: p}
		msg.err = m.session.Do(func(c connector.Connector) error {
			parent := c.Parent(p)
			msg.path = parent
			entries, err := c.List(m.ctx, parent)
			if err != nil {
				return err
			}
			msg.entries = entries
			msg.path = c.CurrentPath(m.ctx)
			return nil
		})
		return msg
	}
}

// gotoRemote lists a path typed by the user. Relative paths are joined to
// the directory the remote pane shows. Connectors that track their cursor
// locally are moved first and put back when the listing fails.
func (m *BrowserModel) gotoRemote(p string) tea.Cmd {
	dir := m.remotePane.path
	m.remotePane.loading = true
	return func() tea.Msg {
		msg := remoteListedMsg{path: p}
		msg.err = m.session.Do(func(c connector.Connector) error {
			target := p
			if !strings.HasPrefix(target, "/") {
				target = c.Join(dir, target)
			}
			msg.path = target

			var (
				entries []connector.Entry
				err     error
			)
			if cur, ok := c.(connector.Cursor); ok {
				prev := c.CurrentPath(m.ctx)
				cur.SetCurrentPath(target)
				if entries, err = c.List(m.ctx, ""); err != nil {
					cur.SetCurrentPath(prev)
				}
			} else {
				entries, err = c.List(m.ctx, target)
			}
			if err != nil {
				return err
			}
			msg.entries = entries
			msg.path = c.CurrentPath(m.ctx)
			return nil
		})
		return msg
	}
}

func (m *BrowserModel) deleteRemote(entry connector.Entry) tea.Cmd {
	return func() tea.Msg {
		var ok bool
		err := m.session.Do(func(c connector.Connector) error {
			ok = c.Delete(m.ctx, entry.Path)
			return nil
		})
		if err != nil {
			logrus.WithError(err).Warn("Delete skipped")
		}
		return remoteDeletedMsg{entry: entry, ok: ok}
	}
}

func (m *BrowserModel) createRemoteDir(name string) tea.Cmd {
	dir := m.remotePane.path
	return func() tea.Msg {
		var ok bool
		err := m.session.Do(func(c connector.Connector) error {
			ok = c.CreateDirectory(m.ctx, c.Join(dir, name))
			return nil
		})
		if err != nil {
			logrus.WithError(err).Warn("Create directory skipped")
		}
		return remoteDirCreatedMsg{name: name, ok: ok}
	}
}
