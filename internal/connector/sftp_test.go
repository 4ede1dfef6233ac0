package connector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSFTPClient struct {
	mock.Mock
	uploads map[string]*bytes.Buffer
}

func (m *mockSFTPClient) ReadDir(p string) ([]os.FileInfo, error) {
	args := m.Called(p)
	infos, _ := args.Get(0).([]os.FileInfo)
	return infos, args.Error(1)
}

func (m *mockSFTPClient) Stat(p string) (os.FileInfo, error) {
	args := m.Called(p)
	fi, _ := args.Get(0).(os.FileInfo)
	return fi, args.Error(1)
}

func (m *mockSFTPClient) RealPath(p string) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

func (m *mockSFTPClient) Getwd() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockSFTPClient) Open(p string) (io.ReadCloser, error) {
	args := m.Called(p)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockSFTPClient) Create(p string) (io.WriteCloser, error) {
	if err := m.Called(p).Error(0); err != nil {
		return nil, err
	}
	if m.uploads == nil {
		m.uploads = map[string]*bytes.Buffer{}
	}
	buf := &bytes.Buffer{}
	m.uploads[p] = buf
	return nopWriteCloser{buf}, nil
}

func (m *mockSFTPClient) Remove(p string) error          { return m.Called(p).Error(0) }
func (m *mockSFTPClient) RemoveDirectory(p string) error { return m.Called(p).Error(0) }
func (m *mockSFTPClient) Mkdir(p string) error           { return m.Called(p).Error(0) }
func (m *mockSFTPClient) Close() error                   { return m.Called().Error(0) }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// fakeInfo is an os.FileInfo whose Sys optionally carries raw SFTP attributes.
type fakeInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
	sys   any
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() os.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return f.mtime }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return f.sys }

func connectedSFTP(t *testing.T, client *mockSFTPClient, lfs afero.Fs) *SFTPConnector {
	t.Helper()
	client.On("Getwd").Return("/home/alice", nil).Once()

	c := NewSFTPConnector(Options{LocalFS: lfs, ChunkSize: 8})
	c.dial = func(context.Context, Config, Options) (sftpClient, error) { return client, nil }
	require.NoError(t, c.Connect(context.Background(), Config{Protocol: ProtocolSFTP, Host: "sftp.example.com", Username: "alice", Password: "pw"}))
	return c
}

func TestSFTPConnect(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())

	assert.True(t, c.IsConnected())
	assert.Equal(t, ProtocolSFTP, c.Protocol())

	client.On("RealPath", "/home/alice").Return("/home/alice", nil)
	assert.Equal(t, "/home/alice", c.CurrentPath(context.Background()))
}

func TestSFTPConnectFailure(t *testing.T) {
	c := NewSFTPConnector(Options{})
	c.dial = func(context.Context, Config, Options) (sftpClient, error) {
		return nil, errors.New("ssh: handshake failed: ssh: unable to authenticate")
	}
	err := c.Connect(context.Background(), Config{Protocol: ProtocolSFTP, Host: "h"})

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "h:22", connErr.Address)
	assert.False(t, c.IsConnected())
}

func TestSFTPListUsesModeBits(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())

	mtime := time.Date(2024, 3, 2, 8, 5, 0, 0, time.Local)
	client.On("RealPath", "/srv").Return("/srv", nil)
	client.On("ReadDir", "/srv").Return([]os.FileInfo{
		fakeInfo{name: "data", sys: &sftp.FileStat{Mode: 0o040755}},
		fakeInfo{name: "report.pdf", size: 2048, mtime: mtime, sys: &sftp.FileStat{Mode: 0o100644}},
		fakeInfo{name: "link", mode: os.ModeDir},
		fakeInfo{name: ".."},
	}, nil)

	entries, err := c.List(context.Background(), "/srv")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{Name: "data", Path: "/srv/data", IsDir: true}, entries[0])
	assert.Equal(t, Entry{Name: "link", Path: "/srv/link", IsDir: true}, entries[1])
	assert.Equal(t, Entry{Name: "report.pdf", Path: "/srv/report.pdf", Size: 2048, Modified: "2024-03-02 08:05"}, entries[2])

	client.On("RealPath", "/srv").Return("/srv", nil)
	assert.Equal(t, "/srv", c.CurrentPath(context.Background()))
}

func TestSFTPListRelativeAndFailure(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())

	client.On("RealPath", "/home/alice/missing").Return("", fs.ErrNotExist)
	client.On("ReadDir", "/home/alice/missing").Return(nil, fs.ErrNotExist)

	_, err := c.List(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	client.On("RealPath", "/home/alice").Return("/home/alice", nil)
	assert.Equal(t, "/home/alice", c.CurrentPath(context.Background()))
}

func TestSFTPDownload(t *testing.T) {
	client := &mockSFTPClient{}
	lfs := afero.NewMemMapFs()
	c := connectedSFTP(t, client, lfs)

	payload := bytes.Repeat([]byte("x"), 20)
	client.On("Stat", "/srv/blob").Return(fakeInfo{name: "blob", size: 20, sys: &sftp.FileStat{Mode: 0o100644}}, nil)
	client.On("Open", "/srv/blob").Return(io.NopCloser(struct{ io.Reader }{bytes.NewReader(payload)}), nil)

	calls, fn := recordProgress()
	require.NoError(t, c.Download(context.Background(), "/srv/blob", "/tmp/out/blob", fn))

	got, err := afero.ReadFile(lfs, "/tmp/out/blob")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []progressCall{{8, 20}, {16, 20}, {20, 20}}, *calls)
}

func TestSFTPDownloadDirectoryRejected(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())

	client.On("Stat", "/srv").Return(fakeInfo{name: "srv", sys: &sftp.FileStat{Mode: 0o040755}}, nil)

	err := c.Download(context.Background(), "/srv", "/tmp/srv", nil)
	require.Error(t, err)
	client.AssertNotCalled(t, "Open", "/srv")
}

func TestSFTPUpload(t *testing.T) {
	client := &mockSFTPClient{}
	lfs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(lfs, "/local/notes.txt", []byte("remember the milk"), 0o644))
	c := connectedSFTP(t, client, lfs)

	client.On("Create", "/home/alice/notes.txt").Return(nil)

	calls, fn := recordProgress()
	require.NoError(t, c.Upload(context.Background(), "/local/notes.txt", "/home/alice/notes.txt", fn))

	assert.Equal(t, "remember the milk", client.uploads["/home/alice/notes.txt"].String())
	assertMonotonic(t, *calls)
	assert.Equal(t, progressCall{17, 17}, (*calls)[len(*calls)-1])
}

func TestSFTPUploadPermissionDenied(t *testing.T) {
	client := &mockSFTPClient{}
	lfs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(lfs, "/local/a", []byte("a"), 0o644))
	c := connectedSFTP(t, client, lfs)

	client.On("Create", "/root/a").Return(fs.ErrPermission)

	err := c.Upload(context.Background(), "/local/a", "/root/a", nil)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestSFTPDeleteByType(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())

	client.On("Stat", "/srv/file").Return(fakeInfo{name: "file", sys: &sftp.FileStat{Mode: 0o100644}}, nil)
	client.On("Remove", "/srv/file").Return(nil)
	client.On("Stat", "/srv/dir").Return(fakeInfo{name: "dir", sys: &sftp.FileStat{Mode: 0o040755}}, nil)
	client.On("RemoveDirectory", "/srv/dir").Return(nil)
	client.On("Stat", "/srv/gone").Return(nil, fs.ErrNotExist)

	ctx := context.Background()
	assert.True(t, c.Delete(ctx, "/srv/file"))
	assert.True(t, c.Delete(ctx, "/srv/dir"))
	assert.False(t, c.Delete(ctx, "/srv/gone"))
	client.AssertNotCalled(t, "RemoveDirectory", "/srv/file")
	client.AssertNotCalled(t, "Remove", "/srv/dir")
}

func TestSFTPCreateDirectory(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())

	client.On("Mkdir", "/srv/new").Return(nil)
	client.On("Mkdir", "/srv/exists").Return(errors.New("file exists"))

	assert.True(t, c.CreateDirectory(context.Background(), "/srv/new"))
	assert.False(t, c.CreateDirectory(context.Background(), "/srv/exists"))
}

func TestSFTPDisconnectIdempotent(t *testing.T) {
	client := &mockSFTPClient{}
	c := connectedSFTP(t, client, afero.NewMemMapFs())
	client.On("Close").Return(nil).Once()

	c.Disconnect()
	c.Disconnect()

	assert.False(t, c.IsConnected())
	client.AssertNumberOfCalls(t, "Close", 1)
}

func TestSFTPErrorKind(t *testing.T) {
	assert.Equal(t, ErrNotFound, sftpErrorKind(fs.ErrNotExist))
	assert.Equal(t, ErrPermission, sftpErrorKind(fs.ErrPermission))
	assert.Nil(t, sftpErrorKind(errors.New("boom")))
}
