// Package util provides logging helpers and common error types.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and transport failures
var (
	ErrAuthFailed        = errors.New("authentication failed")
	ErrConnectionRefused = errors.New("connection refused")
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrProtocol          = errors.New("protocol error")
	ErrNotConnected      = errors.New("session not connected")
	ErrNotIdentified     = errors.New("device not identified")
	ErrUnrecognized      = errors.New("not a recognized radio")
	ErrTunnelDepth       = errors.New("already at top hierarchy")
	ErrTunnelFailed      = errors.New("tunnel entry failed")
)

// TransportError wraps a low-level transport failure with the stage at which
// it occurred (dial, auth, shell, read, write).
type TransportError struct {
	Stage string
	Addr  string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed for %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error for the given stage
func NewTransportError(stage, addr string, err error) *TransportError {
	return &TransportError{Stage: stage, Addr: addr, Err: err}
}

// TunnelError reports a failed entry into (or exit from) a remote radio
// reached through the current session.
type TunnelError struct {
	Remote string
	Err    error
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("unable to tunnel into '%s': %v", e.Remote, e.Err)
}

func (e *TunnelError) Unwrap() error {
	return e.Err
}

// NewTunnelError creates a tunnel error for the named remote
func NewTunnelError(remote string, err error) *TunnelError {
	return &TunnelError{Remote: remote, Err: err}
}
