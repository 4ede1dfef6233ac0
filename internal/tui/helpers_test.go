package tui

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/localfs"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

type mockConnector struct {
	mock.Mock
	connected bool
	cwd       string
}

func (m *mockConnector) Protocol() connector.Protocol { return connector.ProtocolSFTP }

func (m *mockConnector) Connect(ctx context.Context, cfg connector.Config) error {
	err := m.Called(cfg.Name).Error(0)
	m.connected = err == nil
	return err
}

func (m *mockConnector) Disconnect() { m.connected = false }

func (m *mockConnector) IsConnected() bool { return m.connected }

func (m *mockConnector) List(ctx context.Context, p string) ([]connector.Entry, error) {
	args := m.Called(p)
	entries, _ := args.Get(0).([]connector.Entry)
	if args.Error(1) == nil && p != "" {
		m.cwd = p
	}
	return entries, args.Error(1)
}

func (m *mockConnector) Download(ctx context.Context, remotePath, localPath string, progress connector.ProgressFunc) error {
	return m.Called(remotePath, localPath, progress).Error(0)
}

func (m *mockConnector) Upload(ctx context.Context, localPath, remotePath string, progress connector.ProgressFunc) error {
	return m.Called(localPath, remotePath, progress).Error(0)
}

func (m *mockConnector) Delete(ctx context.Context, p string) bool {
	return m.Called(p).Bool(0)
}

func (m *mockConnector) CreateDirectory(ctx context.Context, p string) bool {
	return m.Called(p).Bool(0)
}

func (m *mockConnector) CurrentPath(ctx context.Context) string { return m.cwd }

func (m *mockConnector) Join(dir, name string) string { return path.Join(dir, name) }
func (m *mockConnector) Parent(p string) string       { return path.Dir(p) }

var remoteHome = []connector.Entry{
	{Name: "photos", Path: "/home/alice/photos", IsDir: true},
	{Name: "notes.txt", Path: "/home/alice/notes.txt", Size: 10, Modified: "2024-01-15 10:30"},
}

type browserFixture struct {
	fs      afero.Fs
	conn    *mockConnector
	session *transfer.Session
	orch    *transfer.Orchestrator
	browser *BrowserModel
}

// newBrowserFixture binds a mocked connector sitting in /home/alice and a
// local filesystem holding /data/docs and /data/a.txt, then lists both panes.
func newBrowserFixture(t *testing.T) *browserFixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data/docs", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/a.txt", []byte("hello"), 0o644))

	conn := &mockConnector{cwd: "/home/alice"}
	conn.On("Connect", "lab").Return(nil)
	conn.On("List", "").Return(remoteHome, nil).Once()

	session := transfer.NewSession()
	require.NoError(t, session.Bind(context.Background(), conn, connector.Config{
		Name: "lab", Protocol: connector.ProtocolSFTP, Host: "lab.local",
	}))
	orch := transfer.NewOrchestrator(session, fs, nil)

	b := NewBrowserModel(context.Background(), BrowserDeps{
		Session:      session,
		Orchestrator: orch,
		Local:        localfs.New(fs, true),
		StartDir:     "/data",
	})
	b.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	pump(b, b.Init())

	require.Equal(t, "/data", b.localPane.path)
	require.Equal(t, "/home/alice", b.remotePane.path)

	return &browserFixture{fs: fs, conn: conn, session: session, orch: orch, browser: b}
}

// runCmd executes cmd and returns the messages it produced. Batches are
// flattened; spinner ticks and anything slower than a short timeout (status
// expiry timers) are dropped.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		switch msg := msg.(type) {
		case nil, spinner.TickMsg:
			return nil
		case tea.BatchMsg:
			var out []tea.Msg
			for _, c := range msg {
				out = append(out, runCmd(c)...)
			}
			return out
		default:
			return []tea.Msg{msg}
		}
	case <-time.After(300 * time.Millisecond):
		return nil
	}
}

// pump feeds the messages produced by cmd back into m until nothing is left.
func pump(m tea.Model, cmd tea.Cmd) {
	queue := runCmd(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		var next tea.Cmd
		m, next = m.Update(msg)
		queue = append(queue, runCmd(next)...)
	}
}

func press(m tea.Model, keys ...string) tea.Cmd {
	var cmds []tea.Cmd
	for _, k := range keys {
		_, cmd := m.Update(keyMsg(k))
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func entryNames(entries []connector.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
