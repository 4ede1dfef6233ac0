// Package transfer binds a connector to the remote pane and runs transfers
// on a background goroutine.
package transfer

import (
	"context"
	"errors"
	"path"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

// ErrNotBound is returned by Do when no connector is bound.
var ErrNotBound = errors.New("no connection")

// pathRules are the connector's pure path helpers.
type pathRules interface {
	Join(dir, name string) string
	Parent(p string) string
}

// Session owns the single connector bound to the remote pane and serializes
// every call made on it. The binding state is guarded separately so it can
// be read while a call is in flight.
type Session struct {
	mu   sync.Mutex
	conn connector.Connector

	stateMu sync.RWMutex
	cfg     connector.Config
	paths   pathRules
	bound   bool
}

// NewSession returns an unbound session.
func NewSession() *Session {
	return &Session{}
}

// Bind disconnects the current connector, if any, then connects c. On
// failure c is discarded and the session stays unbound.
func (s *Session) Bind(ctx context.Context, c connector.Connector, cfg connector.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unbindLocked()
	if err := c.Connect(ctx, cfg); err != nil {
		c.Disconnect()
		return err
	}
	s.conn = c
	s.setState(cfg, c, true)
	logrus.WithFields(logrus.Fields{"connection": cfg.Name, "protocol": cfg.Protocol}).Debug("Session bound")
	return nil
}

// Unbind disconnects and forgets the bound connector.
func (s *Session) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked()
}

func (s *Session) unbindLocked() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
	s.conn = nil
	s.setState(connector.Config{}, nil, false)
}

func (s *Session) setState(cfg connector.Config, paths pathRules, bound bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.cfg = cfg
	s.paths = paths
	s.bound = bound
}

// Do runs fn with exclusive access to the bound connector.
func (s *Session) Do(fn func(connector.Connector) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotBound
	}
	return fn(s.conn)
}

// Bound reports whether a connector is bound. It does not wait for
// in-flight calls.
func (s *Session) Bound() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.bound
}

// Name returns the name of the bound connection, or "" when unbound.
func (s *Session) Name() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cfg.Name
}

// Config returns the configuration the bound connector was connected with.
func (s *Session) Config() connector.Config {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cfg
}

// Join joins dir and name with the bound connector's path rules, or as a
// POSIX path when unbound.
func (s *Session) Join(dir, name string) string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.paths == nil {
		return path.Join(dir, name)
	}
	return s.paths.Join(dir, name)
}

// Parent returns the parent of p with the bound connector's path rules.
func (s *Session) Parent(p string) string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.paths == nil {
		return path.Dir(p)
	}
	return s.paths.Parent(p)
}
