package mpd

import (
	"errors"
	"fmt"
)

// RemoteError represents an ACK response from the daemon.
//
// The daemon reports errors as a single line of the form
//
//	ACK [code@index] {command} message
//
// RemoteError carries all four parts. It is recoverable: the connection
// stays usable after an ACK, only the command that triggered it failed.
type RemoteError struct {
	Code    int    // Daemon error code (see Ack* constants)
	Index   int    // Offset of the failing command in a command list
	Command string // Name of the command that failed
	Message string // Human-readable message from the daemon
}

// Error returns the error message.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("mpd: error %d from %q: %s", e.Code, e.Command, e.Message)
}

// Is checks the target error by daemon error code.
//
// This allows errors.Is() to work with *RemoteError types.
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// UnknownCommand reports whether the daemon rejected the command as
// unknown. Used to fall back from readpicture to albumart.
func (e *RemoteError) UnknownCommand() bool {
	return e.Code == AckUnknownCommand
}

// Daemon error codes, as defined by the protocol.
const (
	AckNotList        = 1
	AckArg            = 2
	AckPassword       = 3
	AckPermission     = 4
	AckUnknownCommand = 5
	AckNoExist        = 50
	AckPlaylistMax    = 51
	AckSystem         = 52
	AckPlaylistLoad   = 53
	AckUpdateAlready  = 54
	AckPlayerSync     = 55
	AckExist          = 56
)

// ProtocolError represents malformed framing or a response missing a
// required field. It is fatal to the in-flight operation but not to the
// connection.
type ProtocolError struct {
	Reason string
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return "mpd: protocol error: " + e.Reason
}

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// CapabilityError is returned when a command is issued that the probed
// capability set forbids (e.g. album stickers against a daemon that only
// supports song stickers).
type CapabilityError struct {
	Capability string
}

// Error returns the error message.
func (e *CapabilityError) Error() string {
	return "mpd: daemon does not support " + e.Capability
}

// Predefined errors for common cases.
var (
	// ErrClosed is returned when the stream reaches EOF mid-response or a
	// command is attempted on a closed connection.
	ErrClosed = errors.New("mpd: connection closed")

	// ErrNotConnected is returned when a command is issued while the
	// client is not in the Connected state.
	ErrNotConnected = errors.New("mpd: not connected")
)
