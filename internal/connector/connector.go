package connector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Protocol tags which connector variant a configuration selects.
type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolFTPS Protocol = "ftps"
	ProtocolSFTP Protocol = "sftp"
	ProtocolS3   Protocol = "s3"
)

// DefaultTimeout bounds connection establishment when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// DefaultChunkSize is the copy buffer used for streamed transfers.
const DefaultChunkSize = 32 * 1024

// ParseProtocol accepts the protocol names used in saved connections and on the command line.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case ProtocolFTP, ProtocolFTPS, ProtocolSFTP, ProtocolS3:
		return p, nil
	case "ftp-tls", "ftpes":
		return ProtocolFTPS, nil
	}
	return "", fmt.Errorf("unknown protocol %q (valid: ftp, ftps, sftp, s3)", s)
}

// Config describes one connection. FTP, FTPS and SFTP use the host fields,
// S3 uses the key/region/bucket fields.
type Config struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`

	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	UseTLS   bool   `json:"use_tls,omitempty"`

	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// Validate rejects configurations that cannot possibly connect. It never
// touches the network.
func (c Config) Validate() error {
	switch c.Protocol {
	case ProtocolFTP, ProtocolFTPS, ProtocolSFTP:
		if strings.TrimSpace(c.Host) == "" {
			return errors.New("host is required")
		}
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("port out of range: %d", c.Port)
		}
	case ProtocolS3:
		if strings.TrimSpace(c.Bucket) == "" {
			return errors.New("bucket is required")
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			return errors.New("access_key and secret_key must be given together")
		}
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}
	return nil
}

// Address returns host:port with the protocol default port filled in, or
// the bucket name for S3.
func (c Config) Address() string {
	switch c.Protocol {
	case ProtocolS3:
		return "s3://" + c.Bucket
	case ProtocolSFTP:
		return net.JoinHostPort(c.Host, strconv.Itoa(portOr(c.Port, 22)))
	default:
		return net.JoinHostPort(c.Host, strconv.Itoa(portOr(c.Port, 21)))
	}
}

func portOr(port, def int) int {
	if port == 0 {
		return def
	}
	return port
}

// ProgressFunc receives the bytes transferred so far and the expected total.
// A total <= 0 means the size is unknown.
type ProgressFunc func(transferred, total int64)

// Connector is the backend-agnostic storage contract. An instance is not safe
// for concurrent use; callers serialize access (see transfer.Session). Join
// and Parent are pure and may be called at any time.
type Connector interface {
	Protocol() Protocol
	Connect(ctx context.Context, cfg Config) error
	Disconnect()
	IsConnected() bool
	List(ctx context.Context, p string) ([]Entry, error)
	Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error
	Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error
	Delete(ctx context.Context, p string) bool
	CreateDirectory(ctx context.Context, p string) bool
	CurrentPath(ctx context.Context) string
	Join(dir, name string) string
	Parent(p string) string
}

// Cursor is implemented by connectors whose current path is tracked locally
// and can be moved without a round trip.
type Cursor interface {
	SetCurrentPath(p string)
}

// Options carries application settings shared by all connector variants.
type Options struct {
	Timeout   time.Duration
	ChunkSize int
	LocalFS   afero.Fs

	FTPInsecureSkipVerify bool
	FTPDisableEPSV        bool

	SFTPKnownHostsFile string

	S3PartSize    int64
	S3Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.LocalFS == nil {
		o.LocalFS = afero.NewOsFs()
	}
	return o
}

// New returns an unconnected connector for the given protocol.
func New(p Protocol, opts Options) (Connector, error) {
	switch p {
	case ProtocolFTP, ProtocolFTPS:
		return NewFTPConnector(opts), nil
	case ProtocolSFTP:
		return NewSFTPConnector(opts), nil
	case ProtocolS3:
		return NewS3Connector(opts), nil
	}
	return nil, fmt.Errorf("unknown protocol %q", p)
}
