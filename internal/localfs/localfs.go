// Package localfs lists the local side of the dual-pane browser.
package localfs

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

// FS enumerates local directories. Entries use the same shape and sort
// order as remote listings.
type FS struct {
	fs         afero.Fs
	showHidden atomic.Bool
}

// New wraps fs. A nil fs means the real operating system filesystem.
func New(fs afero.Fs, showHidden bool) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	l := &FS{fs: fs}
	l.showHidden.Store(showHidden)
	return l
}

// ShowHidden reports whether dot files are listed.
func (l *FS) ShowHidden() bool {
	return l.showHidden.Load()
}

// SetShowHidden changes whether dot files are listed from the next Enumerate on.
func (l *FS) SetShowHidden(show bool) {
	l.showHidden.Store(show)
}

// Afero exposes the underlying filesystem so connectors can stream through it.
func (l *FS) Afero() afero.Fs {
	return l.fs
}

// Enumerate lists dir. Modification times are not reported for local entries.
func (l *FS) Enumerate(dir string) ([]connector.Entry, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}
	showHidden := l.ShowHidden()
	entries := make([]connector.Entry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		e := connector.Entry{
			Name:  name,
			Path:  filepath.Join(dir, name),
			IsDir: fi.IsDir(),
		}
		if !e.IsDir {
			e.Size = fi.Size()
		}
		entries = append(entries, e)
	}
	connector.SortEntries(entries)
	return entries, nil
}

// IsDir reports whether p exists and is a directory.
func (l *FS) IsDir(p string) bool {
	ok, err := afero.IsDir(l.fs, p)
	return err == nil && ok
}

// Stat returns the file info for p.
func (l *FS) Stat(p string) (os.FileInfo, error) {
	return l.fs.Stat(p)
}

// Join appends name to dir using the host separator.
func (l *FS) Join(dir, name string) string {
	return filepath.Join(dir, name)
}

// Resolve turns a path typed by the user into an absolute one. Relative
// paths are taken from dir and a leading "~" means the home directory.
func (l *FS) Resolve(dir, p string) string {
	if p == "~" || strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return l.Join(dir, p)
}

// Parent returns the parent of p, stopping at the volume root.
func Parent(p string) string {
	cleaned := filepath.Clean(p)
	parent := filepath.Dir(cleaned)
	if parent == "" {
		return cleaned
	}
	return parent
}

// StartDir picks the first usable directory out of candidates, falling back
// to the home directory and finally the working directory.
func (l *FS) StartDir(candidates ...string) string {
	for _, c := range candidates {
		if c != "" && l.IsDir(c) {
			return c
		}
	}
	if home, err := os.UserHomeDir(); err == nil && l.IsDir(home) {
		return home
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return string(filepath.Separator)
}
