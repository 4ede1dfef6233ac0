package connector

import (
	"errors"
	"fmt"
)

// Sentinel kinds an OperationError may carry.
var (
	ErrNotConnected = errors.New("not connected")
	ErrNotFound     = errors.New("no such file or directory")
	ErrPermission   = errors.New("permission denied")
)

// ConnectionError is returned only from Connect. It covers authentication
// failures, unreachable hosts, TLS negotiation failures and unreachable buckets.
type ConnectionError struct {
	Protocol Protocol
	Address  string
	Message  string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection to %s failed: %s", e.Protocol, e.Address, e.Message)
}

// OperationError is returned by every post-connect operation. Message holds
// the backend's own text; Kind, when set, is one of the sentinel errors above.
type OperationError struct {
	Op      string
	Path    string
	Message string
	Kind    error
}

func (e *OperationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Op, e.Path, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Kind
}

func newConnectionError(proto Protocol, address string, err error) *ConnectionError {
	return &ConnectionError{Protocol: proto, Address: address, Message: err.Error()}
}

// newOperationError flattens a backend error into an OperationError so the
// backend's error type never escapes the package.
func newOperationError(op, p string, err error, kind error) *OperationError {
	return &OperationError{Op: op, Path: p, Message: err.Error(), Kind: kind}
}

func notConnected(op, p string) *OperationError {
	return &OperationError{Op: op, Path: p, Message: ErrNotConnected.Error(), Kind: ErrNotConnected}
}

var errIsDirectory = errors.New("is a directory")
