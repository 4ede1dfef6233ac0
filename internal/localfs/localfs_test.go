package localfs

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

func seed(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/u/Projects", 0o755))
	require.NoError(t, fs.MkdirAll("/home/u/.cache", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/home/u/b.txt", []byte("bb"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/home/u/A.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/home/u/.profile", []byte("x"), 0o644))
	return fs
}

func TestEnumerate(t *testing.T) {
	l := New(seed(t), true)

	entries, err := l.Enumerate("/home/u")
	require.NoError(t, err)

	assert.Equal(t, []connector.Entry{
		{Name: ".cache", Path: "/home/u/.cache", IsDir: true},
		{Name: "Projects", Path: "/home/u/Projects", IsDir: true},
		{Name: ".profile", Path: "/home/u/.profile", Size: 1},
		{Name: "A.txt", Path: "/home/u/A.txt", Size: 1},
		{Name: "b.txt", Path: "/home/u/b.txt", Size: 2},
	}, entries)
}

func TestEnumerateHidesDotfiles(t *testing.T) {
	l := New(seed(t), false)

	entries, err := l.Enumerate("/home/u")
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotEqual(t, '.', rune(e.Name[0]), e.Name)
	}
	assert.Len(t, entries, 3)
}

func TestSetShowHidden(t *testing.T) {
	l := New(seed(t), true)
	require.True(t, l.ShowHidden())

	l.SetShowHidden(false)
	entries, err := l.Enumerate("/home/u")
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	l.SetShowHidden(true)
	entries, err = l.Enumerate("/home/u")
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestResolve(t *testing.T) {
	l := New(afero.NewMemMapFs(), true)

	assert.Equal(t, "/var/log", l.Resolve("/home/u", "/var/log/"))
	assert.Equal(t, "/home/u/Projects/x", l.Resolve("/home/u", "Projects/x"))
	assert.Equal(t, "/home", l.Resolve("/home/u", ".."))
}

func TestEnumerateMissingDir(t *testing.T) {
	l := New(afero.NewMemMapFs(), true)
	_, err := l.Enumerate("/nope")
	assert.Error(t, err)
}

func TestParent(t *testing.T) {
	assert.Equal(t, "/home", Parent("/home/u"))
	assert.Equal(t, "/home", Parent("/home/u/"))
	assert.Equal(t, "/", Parent("/"))
}

func TestStartDir(t *testing.T) {
	l := New(seed(t), true)
	assert.Equal(t, "/home/u/Projects", l.StartDir("", "/missing", "/home/u/Projects"))
}
