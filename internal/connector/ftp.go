package connector

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/textproto"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"
)

// ftpTimeLayout is how FTP modification times are displayed.
const ftpTimeLayout = "02.01.2006 15:04:05"

// ftpConn is the subset of *ftp.ServerConn the connector uses.
type ftpConn interface {
	Login(user, password string) error
	List(p string) ([]*ftp.Entry, error)
	NameList(p string) ([]string, error)
	ChangeDir(p string) error
	ChangeDirToParent() error
	CurrentDir() (string, error)
	FileSize(p string) (int64, error)
	Retr(p string) (io.ReadCloser, error)
	Stor(p string, r io.Reader) error
	Delete(p string) error
	RemoveDir(p string) error
	MakeDir(p string) error
	Quit() error
}

// serverConn adapts *ftp.ServerConn so Retr returns a plain io.ReadCloser.
type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(p string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(p)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type ftpDialFunc func(ctx context.Context, cfg Config, opts Options) (ftpConn, error)

// FTPConnector talks plain FTP or FTP with explicit AUTH TLS.
type FTPConnector struct {
	opts        Options
	dial        ftpDialFunc
	proto       Protocol
	conn        ftpConn
	currentPath string
}

var _ Connector = (*FTPConnector)(nil)

// NewFTPConnector creates an unconnected FTP connector.
func NewFTPConnector(opts Options) *FTPConnector {
	return &FTPConnector{
		opts:        opts.withDefaults(),
		dial:        dialFTP,
		proto:       ProtocolFTP,
		currentPath: "/",
	}
}

func dialFTP(ctx context.Context, cfg Config, opts Options) (ftpConn, error) {
	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(opts.Timeout),
	}
	if cfg.UseTLS || cfg.Protocol == ProtocolFTPS {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: opts.FTPInsecureSkipVerify,
		}))
	}
	if opts.FTPDisableEPSV {
		dialOpts = append(dialOpts, ftp.DialWithDisabledEPSV(true))
	}
	c, err := ftp.Dial(cfg.Address(), dialOpts...)
	if err != nil {
		return nil, err
	}
	return serverConn{c}, nil
}

// Protocol reports ftp or ftps depending on the last configuration.
func (c *FTPConnector) Protocol() Protocol {
	return c.proto
}

// Connect dials, negotiates TLS when requested and logs in. Login also
// switches the data channel to protected mode when TLS is in use.
func (c *FTPConnector) Connect(ctx context.Context, cfg Config) error {
	c.Disconnect()
	if cfg.UseTLS || cfg.Protocol == ProtocolFTPS {
		c.proto = ProtocolFTPS
	} else {
		c.proto = ProtocolFTP
	}
	if err := cfg.Validate(); err != nil {
		return newConnectionError(c.proto, cfg.Host, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"protocol": c.proto, "address": cfg.Address()})
	log.Debug("Connecting")

	conn, err := c.dial(ctx, cfg, c.opts)
	if err != nil {
		return newConnectionError(c.proto, cfg.Address(), err)
	}

	user, pass := cfg.Username, cfg.Password
	if user == "" {
		user = "anonymous"
	}
	if pass == "" {
		pass = "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return newConnectionError(c.proto, cfg.Address(), err)
	}

	c.conn = conn
	c.currentPath = "/"
	if pwd, err := conn.CurrentDir(); err == nil && pwd != "" {
		c.currentPath = pwd
	}
	log.WithField("cwd", c.currentPath).Info("Connected")
	return nil
}

// Disconnect sends QUIT and drops the session. Safe to call repeatedly.
func (c *FTPConnector) Disconnect() {
	if c.conn != nil {
		if err := c.conn.Quit(); err != nil {
			logrus.WithField("protocol", c.proto).Debugf("QUIT failed: %v", err)
		}
	}
	c.conn = nil
	c.currentPath = "/"
}

// IsConnected reports whether a session handle exists.
func (c *FTPConnector) IsConnected() bool {
	return c.conn != nil
}

// List changes into p and lists it. Servers that reject the listing command
// with a permanent error are listed with NLST, probing each name with
// CWD/CDUP to tell directories from files. That degraded mode cannot report
// sizes or modification times.
func (c *FTPConnector) List(ctx context.Context, p string) ([]Entry, error) {
	if c.conn == nil {
		return nil, notConnected("list", p)
	}
	if p != "" && p != c.currentPath {
		if err := c.conn.ChangeDir(p); err != nil {
			return nil, newOperationError("list", p, err, ftpErrorKind(err))
		}
		c.currentPath = p
		if pwd, err := c.conn.CurrentDir(); err == nil && pwd != "" {
			c.currentPath = pwd
		}
	}

	raw, err := c.conn.List("")
	if err == nil {
		entries := make([]Entry, 0, len(raw))
		for _, fe := range raw {
			if fe == nil {
				continue
			}
			entries = append(entries, c.entryFromFTP(fe))
		}
		return finalize(entries), nil
	}
	if !isPermanentFTPError(err) {
		return nil, newOperationError("list", c.currentPath, err, ftpErrorKind(err))
	}

	logrus.WithField("path", c.currentPath).Debugf("Listing rejected (%v), falling back to NLST", err)
	entries, err := c.listByNames()
	if err != nil {
		return nil, newOperationError("list", c.currentPath, err, ftpErrorKind(err))
	}
	return finalize(entries), nil
}

func (c *FTPConnector) entryFromFTP(fe *ftp.Entry) Entry {
	name := normalizeName(fe.Name)
	e := Entry{
		Name:  name,
		Path:  joinPOSIX(c.currentPath, name),
		IsDir: fe.Type == ftp.EntryTypeFolder,
	}
	if !e.IsDir {
		e.Size = int64(fe.Size)
	}
	if !fe.Time.IsZero() {
		e.Modified = fe.Time.Format(ftpTimeLayout)
	}
	return e
}

func (c *FTPConnector) listByNames() ([]Entry, error) {
	names, err := c.conn.NameList("")
	if err != nil {
		if isPermanentFTPError(err) {
			// Some servers answer 550 on NLST of an empty directory.
			return nil, nil
		}
		return nil, err
	}
	entries := make([]Entry, 0, len(names))
	for _, raw := range names {
		name := normalizeName(raw)
		if isPseudoEntry(name) {
			continue
		}
		entries = append(entries, Entry{
			Name:  name,
			Path:  joinPOSIX(c.currentPath, name),
			IsDir: c.probeDir(name),
		})
	}
	return entries, nil
}

// probeDir enters name and comes back up. A failed return trip restores the
// cursor with an absolute CWD.
func (c *FTPConnector) probeDir(name string) bool {
	if err := c.conn.ChangeDir(name); err != nil {
		return false
	}
	if err := c.conn.ChangeDirToParent(); err != nil {
		_ = c.conn.ChangeDir(c.currentPath)
	}
	return true
}

// Download retrieves remotePath into localPath. The size is asked for up
// front; when the server does not answer SIZE the total is reported as unknown.
func (c *FTPConnector) Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error {
	if c.conn == nil {
		return notConnected("download", remotePath)
	}
	size, err := c.conn.FileSize(remotePath)
	if err != nil {
		size = 0
	}

	r, err := c.conn.Retr(remotePath)
	if err != nil {
		return newOperationError("download", remotePath, err, ftpErrorKind(err))
	}
	defer r.Close()

	f, err := createLocalFile(c.opts.LocalFS, localPath)
	if err != nil {
		return newOperationError("download", localPath, err, nil)
	}
	defer f.Close()

	tracker := newProgressTracker(progress, size).withContext(ctx)
	if _, err := copyWithProgress(f, r, c.opts.ChunkSize, tracker); err != nil {
		return newOperationError("download", remotePath, err, nil)
	}
	tracker.finish()
	logrus.WithFields(logrus.Fields{"remote": remotePath, "local": localPath}).Info("Downloaded")
	return nil
}

// Upload stores localPath at remotePath.
func (c *FTPConnector) Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error {
	if c.conn == nil {
		return notConnected("upload", remotePath)
	}
	f, size, err := openLocalFile(c.opts.LocalFS, localPath)
	if err != nil {
		return newOperationError("upload", localPath, err, nil)
	}
	defer f.Close()

	tracker := newProgressTracker(progress, size).withContext(ctx)
	if err := c.conn.Stor(remotePath, &progressReader{r: f, t: tracker}); err != nil {
		return newOperationError("upload", remotePath, err, ftpErrorKind(err))
	}
	tracker.finish()
	logrus.WithFields(logrus.Fields{"remote": remotePath, "local": localPath}).Info("Uploaded")
	return nil
}

// Delete removes a file. When DELE is refused with a permanent error the
// path is retried as a directory with RMD.
func (c *FTPConnector) Delete(ctx context.Context, p string) bool {
	if c.conn == nil {
		return false
	}
	err := c.conn.Delete(p)
	if err != nil && isPermanentFTPError(err) {
		err = c.conn.RemoveDir(p)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"protocol": c.proto, "path": p}).Warnf("Delete failed: %v", err)
		return false
	}
	return true
}

// CreateDirectory issues MKD.
func (c *FTPConnector) CreateDirectory(ctx context.Context, p string) bool {
	if c.conn == nil {
		return false
	}
	if err := c.conn.MakeDir(p); err != nil {
		logrus.WithFields(logrus.Fields{"protocol": c.proto, "path": p}).Warnf("MKD failed: %v", err)
		return false
	}
	return true
}

// CurrentPath asks the server with PWD and falls back to the cached cursor.
func (c *FTPConnector) CurrentPath(ctx context.Context) string {
	if c.conn != nil {
		if pwd, err := c.conn.CurrentDir(); err == nil && pwd != "" {
			c.currentPath = pwd
		}
	}
	return c.currentPath
}

func (c *FTPConnector) Join(dir, name string) string { return joinPOSIX(dir, name) }
func (c *FTPConnector) Parent(p string) string       { return parentPOSIX(p) }

// isPermanentFTPError reports a 5xx reply, which is how servers signal an
// unsupported command or a refused action.
func isPermanentFTPError(err error) bool {
	var te *textproto.Error
	return errors.As(err, &te) && te.Code >= 500 && te.Code < 600
}

func ftpErrorKind(err error) error {
	var te *textproto.Error
	if !errors.As(err, &te) {
		return nil
	}
	switch te.Code {
	case ftp.StatusFileUnavailable, ftp.StatusFileActionIgnored:
		return ErrNotFound
	case ftp.StatusNotLoggedIn:
		return ErrPermission
	}
	return nil
}
