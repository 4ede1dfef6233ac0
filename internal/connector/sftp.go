package connector

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	sftpTimeLayout = "2006-01-02 15:04"

	modeTypeMask = 0o170000
	modeDir      = 0o040000
)

// sftpClient is the subset of the SFTP session the connector uses.
type sftpClient interface {
	ReadDir(p string) ([]os.FileInfo, error)
	Stat(p string) (os.FileInfo, error)
	RealPath(p string) (string, error)
	Getwd() (string, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Remove(p string) error
	RemoveDirectory(p string) error
	Mkdir(p string) error
	Close() error
}

// sftpSession owns both the SSH connection and the SFTP subsystem on top of it.
type sftpSession struct {
	client *sftp.Client
	ssh    *ssh.Client
}

func (s *sftpSession) ReadDir(p string) ([]os.FileInfo, error) { return s.client.ReadDir(p) }
func (s *sftpSession) Stat(p string) (os.FileInfo, error)      { return s.client.Stat(p) }
func (s *sftpSession) RealPath(p string) (string, error)       { return s.client.RealPath(p) }
func (s *sftpSession) Getwd() (string, error)                  { return s.client.Getwd() }
func (s *sftpSession) Remove(p string) error                   { return s.client.Remove(p) }
func (s *sftpSession) RemoveDirectory(p string) error          { return s.client.RemoveDirectory(p) }
func (s *sftpSession) Mkdir(p string) error                    { return s.client.Mkdir(p) }

func (s *sftpSession) Open(p string) (io.ReadCloser, error) {
	f, err := s.client.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *sftpSession) Create(p string) (io.WriteCloser, error) {
	f, err := s.client.Create(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *sftpSession) Close() error {
	err := s.client.Close()
	if sshErr := s.ssh.Close(); err == nil {
		err = sshErr
	}
	return err
}

type sftpDialFunc func(ctx context.Context, cfg Config, opts Options) (sftpClient, error)

// SFTPConnector talks SFTP over an SSH connection authenticated by password.
type SFTPConnector struct {
	opts        Options
	dial        sftpDialFunc
	client      sftpClient
	currentPath string
}

var _ Connector = (*SFTPConnector)(nil)

// NewSFTPConnector creates an unconnected SFTP connector.
func NewSFTPConnector(opts Options) *SFTPConnector {
	return &SFTPConnector{
		opts:        opts.withDefaults(),
		dial:        dialSFTP,
		currentPath: "/",
	}
}

func dialSFTP(ctx context.Context, cfg Config, opts Options) (sftpClient, error) {
	hostKeys, err := hostKeyCallback(opts.SFTPKnownHostsFile)
	if err != nil {
		return nil, err
	}
	user := cfg.Username
	if user == "" {
		user = "anonymous"
	}
	password := cfg.Password
	sshConfig := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeys,
		Timeout:         opts.Timeout,
	}

	addr := cfg.Address()
	dialer := &net.Dialer{Timeout: opts.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	// The handshake has no context of its own; bound it with a deadline.
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(opts.Timeout)
	}
	_ = netConn.SetDeadline(deadline)
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshConfig)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	_ = netConn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, err
	}
	return &sftpSession{client: client, ssh: sshClient}, nil
}

// hostKeyCallback verifies against a known_hosts file when one is
// configured, otherwise it accepts the key and logs its fingerprint.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile != "" {
		if _, err := os.Stat(knownHostsFile); err == nil {
			return knownhosts.New(knownHostsFile)
		}
		logrus.Warnf("known_hosts file %s not found, trusting host keys on first use", knownHostsFile)
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		logrus.WithFields(logrus.Fields{
			"host":        hostname,
			"type":        key.Type(),
			"fingerprint": ssh.FingerprintSHA256(key),
		}).Info("Accepting SSH host key")
		return nil
	}, nil
}

func (c *SFTPConnector) Protocol() Protocol { return ProtocolSFTP }

// Connect opens the SSH connection and the SFTP subsystem, then records the
// server's initial working directory.
func (c *SFTPConnector) Connect(ctx context.Context, cfg Config) error {
	c.Disconnect()
	if err := cfg.Validate(); err != nil {
		return newConnectionError(ProtocolSFTP, cfg.Host, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	logrus.WithField("address", cfg.Address()).Debug("Connecting over SFTP")
	client, err := c.dial(ctx, cfg, c.opts)
	if err != nil {
		return newConnectionError(ProtocolSFTP, cfg.Address(), err)
	}
	c.client = client
	c.currentPath = "/"
	if wd, err := client.Getwd(); err == nil && wd != "" {
		c.currentPath = wd
	}
	logrus.WithFields(logrus.Fields{"address": cfg.Address(), "cwd": c.currentPath}).Info("Connected")
	return nil
}

// Disconnect closes the SFTP subsystem and the SSH connection. Safe to call repeatedly.
func (c *SFTPConnector) Disconnect() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			logrus.WithField("protocol", ProtocolSFTP).Debugf("close failed: %v", err)
		}
	}
	c.client = nil
	c.currentPath = "/"
}

func (c *SFTPConnector) IsConnected() bool {
	return c.client != nil
}

// List reads the directory attributes of p in a single call. The cursor only
// moves once the listing succeeded.
func (c *SFTPConnector) List(ctx context.Context, p string) ([]Entry, error) {
	if c.client == nil {
		return nil, notConnected("list", p)
	}
	dir := c.currentPath
	if p != "" {
		dir = p
		if p[0] != '/' {
			dir = joinPOSIX(c.currentPath, p)
		}
	}
	if real, err := c.client.RealPath(dir); err == nil && real != "" {
		dir = real
	}

	infos, err := c.client.ReadDir(dir)
	if err != nil {
		return nil, newOperationError("list", dir, err, sftpErrorKind(err))
	}
	c.currentPath = dir

	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		name := normalizeName(fi.Name())
		isDir := isDirMode(fi)
		e := Entry{
			Name:  name,
			Path:  joinPOSIX(dir, name),
			IsDir: isDir,
		}
		if !isDir {
			e.Size = fi.Size()
		}
		if mt := fi.ModTime(); !mt.IsZero() {
			e.Modified = mt.Format(sftpTimeLayout)
		}
		entries = append(entries, e)
	}
	return finalize(entries), nil
}

// isDirMode applies the POSIX S_IFDIR test to the raw mode when the server
// reported one.
func isDirMode(fi os.FileInfo) bool {
	if st, ok := fi.Sys().(*sftp.FileStat); ok && st != nil {
		return st.Mode&modeTypeMask == modeDir
	}
	return fi.IsDir()
}

func (c *SFTPConnector) Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error {
	if c.client == nil {
		return notConnected("download", remotePath)
	}
	info, err := c.client.Stat(remotePath)
	if err != nil {
		return newOperationError("download", remotePath, err, sftpErrorKind(err))
	}
	if isDirMode(info) {
		return &OperationError{Op: "download", Path: remotePath, Message: errIsDirectory.Error()}
	}

	r, err := c.client.Open(remotePath)
	if err != nil {
		return newOperationError("download", remotePath, err, sftpErrorKind(err))
	}
	defer r.Close()

	f, err := createLocalFile(c.opts.LocalFS, localPath)
	if err != nil {
		return newOperationError("download", localPath, err, nil)
	}
	defer f.Close()

	tracker := newProgressTracker(progress, info.Size()).withContext(ctx)
	if _, err := copyWithProgress(f, r, c.opts.ChunkSize, tracker); err != nil {
		return newOperationError("download", remotePath, err, sftpErrorKind(err))
	}
	tracker.finish()
	logrus.WithFields(logrus.Fields{"remote": remotePath, "local": localPath}).Info("Downloaded")
	return nil
}

func (c *SFTPConnector) Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error {
	if c.client == nil {
		return notConnected("upload", remotePath)
	}
	f, size, err := openLocalFile(c.opts.LocalFS, localPath)
	if err != nil {
		return newOperationError("upload", localPath, err, nil)
	}
	defer f.Close()

	w, err := c.client.Create(remotePath)
	if err != nil {
		return newOperationError("upload", remotePath, err, sftpErrorKind(err))
	}

	tracker := newProgressTracker(progress, size).withContext(ctx)
	buf := make([]byte, c.opts.ChunkSize)
	_, err = io.CopyBuffer(w, &progressReader{r: f, t: tracker}, buf)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return newOperationError("upload", remotePath, err, sftpErrorKind(err))
	}
	tracker.finish()
	logrus.WithFields(logrus.Fields{"remote": remotePath, "local": localPath}).Info("Uploaded")
	return nil
}

// Delete removes p as a file, or as an empty directory when it is one.
func (c *SFTPConnector) Delete(ctx context.Context, p string) bool {
	if c.client == nil {
		return false
	}
	info, err := c.client.Stat(p)
	if err == nil && isDirMode(info) {
		err = c.client.RemoveDirectory(p)
	} else if err == nil {
		err = c.client.Remove(p)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"protocol": ProtocolSFTP, "path": p}).Warnf("Delete failed: %v", err)
		return false
	}
	return true
}

func (c *SFTPConnector) CreateDirectory(ctx context.Context, p string) bool {
	if c.client == nil {
		return false
	}
	if err := c.client.Mkdir(p); err != nil {
		logrus.WithFields(logrus.Fields{"protocol": ProtocolSFTP, "path": p}).Warnf("mkdir failed: %v", err)
		return false
	}
	return true
}

// CurrentPath canonicalizes the cursor on the server.
func (c *SFTPConnector) CurrentPath(ctx context.Context) string {
	if c.client != nil {
		if real, err := c.client.RealPath(c.currentPath); err == nil && real != "" {
			c.currentPath = real
		}
	}
	return c.currentPath
}

func (c *SFTPConnector) Join(dir, name string) string { return joinPOSIX(dir, name) }
func (c *SFTPConnector) Parent(p string) string       { return parentPOSIX(p) }

func sftpErrorKind(err error) error {
	var se *sftp.StatusError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	case errors.As(err, &se):
		switch se.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return ErrNotFound
		case sftp.ErrSSHFxPermissionDenied:
			return ErrPermission
		}
	}
	return nil
}
