package xbdm

import (
	"errors"
	"fmt"
)

// Sentinel errors for the XBDM protocol.
var (
	// ErrClosedByRemote indicates the console closed the connection.
	ErrClosedByRemote = errors.New("connection closed by remote")

	// ErrIdleTimeout indicates a pending read saw no data for the idle timeout.
	ErrIdleTimeout = errors.New("read timed out")

	// ErrReadInProgress indicates a read was issued while another one was
	// still pending on the same connection.
	ErrReadInProgress = errors.New("another read is already pending")

	// ErrLineTooLong indicates a protocol line exceeded MaxLineLength.
	ErrLineTooLong = errors.New("line too long")

	// ErrStreaming indicates a line or byte read after the residual stream
	// took over the connection.
	ErrStreaming = errors.New("connection is streaming")

	// ErrAlreadyExists indicates the console refused to create an entry
	// because one with the same name exists.
	ErrAlreadyExists = errors.New("file or directory already exists")
)

// ConnectError represents a failure to open a connection to a console.
type ConnectError struct {
	Address string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Address, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the connect attempt timed out.
func (e *ConnectError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Cause, &t) && t.Timeout()
}

// ProtocolError is returned when a status line does not carry the status
// expected at that point of the exchange.
type ProtocolError struct {
	Expected Status
	Actual   Status // zero when the line has no numeric code
	Line     string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected status code: expected %s (%s) but received %q",
		e.Expected.Code(), e.Expected, e.Line)
}

// MalformedResponseError represents a response line missing a property or
// carrying a value that cannot be parsed.
type MalformedResponseError struct {
	Line    string
	Message string
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s in %q", e.Message, e.Line)
}

func newMalformedError(line, format string, args ...any) error {
	return &MalformedResponseError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// TransferError represents a failed or short read/write on the data path.
type TransferError struct {
	Op  string // "read" or "write"
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned by the deswizzler for any framebuffer
// format other than tiled, unsigned 8888 with 8-in-32 endianness.
type UnsupportedFormatError struct {
	Format uint32
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported screenshot format: %x", e.Format)
}

// ValidationError represents bad input rejected before any network traffic.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Value, e.Message)
}
