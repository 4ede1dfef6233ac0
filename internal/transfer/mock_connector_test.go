package transfer

import (
	"context"
	"path"

	"github.com/stretchr/testify/mock"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

type mockConnector struct {
	mock.Mock
	connected bool
}

func (m *mockConnector) Protocol() connector.Protocol { return connector.ProtocolSFTP }

func (m *mockConnector) Connect(ctx context.Context, cfg connector.Config) error {
	err := m.Called(ctx, cfg).Error(0)
	m.connected = err == nil
	return err
}

func (m *mockConnector) Disconnect() {
	m.Called()
	m.connected = false
}

func (m *mockConnector) IsConnected() bool { return m.connected }

func (m *mockConnector) List(ctx context.Context, p string) ([]connector.Entry, error) {
	args := m.Called(ctx, p)
	entries, _ := args.Get(0).([]connector.Entry)
	return entries, args.Error(1)
}

func (m *mockConnector) Download(ctx context.Context, remotePath, localPath string, progress connector.ProgressFunc) error {
	return m.Called(ctx, remotePath, localPath, progress).Error(0)
}

func (m *mockConnector) Upload(ctx context.Context, localPath, remotePath string, progress connector.ProgressFunc) error {
	return m.Called(ctx, localPath, remotePath, progress).Error(0)
}

func (m *mockConnector) Delete(ctx context.Context, p string) bool {
	return m.Called(ctx, p).Bool(0)
}

func (m *mockConnector) CreateDirectory(ctx context.Context, p string) bool {
	return m.Called(ctx, p).Bool(0)
}

func (m *mockConnector) CurrentPath(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *mockConnector) Join(dir, name string) string { return path.Join(dir, name) }
func (m *mockConnector) Parent(p string) string       { return path.Dir(p) }

// emitProgress makes a mocked Download or Upload report the given byte counts.
func emitProgress(total int64, steps ...int64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		fn := args.Get(3).(connector.ProgressFunc)
		for _, n := range steps {
			fn(n, total)
		}
	}
}
