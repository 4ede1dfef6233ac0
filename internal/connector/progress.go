package connector

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// progressTracker turns raw byte counts into ProgressFunc calls with a
// non-decreasing transferred value.
type progressTracker struct {
	ctx         context.Context
	fn          ProgressFunc
	total       int64
	transferred int64
	reported    int64
	lastTotal   int64
	finished    bool
}

func newProgressTracker(fn ProgressFunc, total int64) *progressTracker {
	return &progressTracker{fn: fn, total: total, reported: -1}
}

// withContext makes reads and writes through the tracker fail once ctx is
// done, so streamed transfers stop at the next chunk.
func (t *progressTracker) withContext(ctx context.Context) *progressTracker {
	t.ctx = ctx
	return t
}

func (t *progressTracker) canceled() error {
	if t.ctx == nil {
		return nil
	}
	return t.ctx.Err()
}

func (t *progressTracker) add(n int) {
	if n <= 0 {
		return
	}
	t.transferred += int64(n)
	t.report(t.transferred, t.total)
}

// finish emits the terminal (total,total) pair after a successful transfer,
// even when the backend undercounted along the way.
func (t *progressTracker) finish() {
	if t.finished {
		return
	}
	t.finished = true
	switch {
	case t.total <= 0:
		t.report(t.transferred, t.transferred)
	case t.transferred > t.total:
		t.report(t.transferred, t.transferred)
	default:
		t.report(t.total, t.total)
	}
}

func (t *progressTracker) report(transferred, total int64) {
	if t.fn == nil || transferred < t.reported {
		return
	}
	if transferred == t.reported && total == t.lastTotal {
		return
	}
	t.reported = transferred
	t.lastTotal = total
	t.fn(transferred, total)
}

type progressReader struct {
	r io.Reader
	t *progressTracker
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.t.canceled(); err != nil {
		return 0, err
	}
	n, err := pr.r.Read(p)
	pr.t.add(n)
	return n, err
}

type progressWriter struct {
	w io.Writer
	t *progressTracker
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	if err := pw.t.canceled(); err != nil {
		return 0, err
	}
	n, err := pw.w.Write(p)
	pw.t.add(n)
	return n, err
}

// copyWithProgress streams src into dst through a buffer of chunkSize bytes.
func copyWithProgress(dst io.Writer, src io.Reader, chunkSize int, t *progressTracker) (int64, error) {
	buf := make([]byte, chunkSize)
	return io.CopyBuffer(&progressWriter{w: dst, t: t}, src, buf)
}

// createLocalFile opens localPath for writing, creating missing parent directories.
func createLocalFile(fs afero.Fs, localPath string) (afero.File, error) {
	if dir := filepath.Dir(localPath); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return fs.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// openLocalFile opens localPath for reading and returns its size.
func openLocalFile(fs afero.Fs, localPath string) (afero.File, int64, error) {
	f, err := fs.Open(localPath)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, &os.PathError{Op: "open", Path: localPath, Err: errIsDirectory}
	}
	return f, info.Size(), nil
}
