package xbdm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// readChunkSize is the size of a single read from the socket.
const readChunkSize = 32 * 1024

// Dialer opens the raw connection. net.Dialer.DialContext satisfies it.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Conn is one exchange with the debug monitor: a TCP connection, the framed
// reader fed from it and the command writer. A Conn is never reused; it is
// closed when the operation that opened it returns.
type Conn struct {
	nc     net.Conn
	reader *Reader
	log    zerolog.Logger

	ctx       context.Context
	stopWatch func() bool
	closeOnce sync.Once
	pumpDone  chan struct{}
}

// Dial opens a connection to address (host:port). The connect attempt is
// bounded by connectTimeout; afterwards reads are bounded by idleTimeout.
// Cancelling ctx closes the connection and fails any pending read with
// ctx.Err().
func Dial(ctx context.Context, dial Dialer, address string, connectTimeout, idleTimeout time.Duration, log zerolog.Logger) (*Conn, error) {
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}

	connectCtx := ctx
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	nc, err := dial(connectCtx, "tcp", address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", connectTimeout, err)
		}
		return nil, &ConnectError{Address: address, Cause: err}
	}

	c := &Conn{
		nc:       nc,
		reader:   NewReader(idleTimeout),
		log:      log,
		ctx:      ctx,
		pumpDone: make(chan struct{}),
	}
	c.stopWatch = context.AfterFunc(ctx, func() {
		c.reader.Fail(ctx.Err())
		c.nc.Close()
	})
	go c.pump()

	c.log.Debug().Str("remote", address).Msg("connected")
	return c, nil
}

// pump moves bytes from the socket into the framed reader until the socket
// fails or is closed.
func (c *Conn) pump() {
	defer close(c.pumpDone)

	buf := make([]byte, readChunkSize)
	for {
		if !c.reader.WaitForSpace() {
			return
		}
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.reader.Feed(buf[:n])
		}
		if err != nil {
			c.reader.Fail(classifyReadError(err))
			return
		}
	}
}

// classifyReadError maps socket errors to the distinguishable causes.
func classifyReadError(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET):
		return ErrClosedByRemote
	case errors.Is(err, net.ErrClosed):
		return &TransferError{Op: "read", Err: fmt.Errorf("connection closed locally: %w", err)}
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrIdleTimeout
	default:
		return &TransferError{Op: "read", Err: err}
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stopWatch()
		err = c.nc.Close()
		c.reader.Fail(&TransferError{Op: "read", Err: net.ErrClosed})
		<-c.pumpDone
		c.log.Debug().Msg("closed")
	})
	return err
}

// Reader returns the framed reader fed by this connection.
func (c *Conn) Reader() *Reader {
	return c.reader
}

// write pushes raw bytes, reporting cancellation in preference to the
// socket error it causes.
func (c *Conn) write(p []byte) (int, error) {
	n, err := c.nc.Write(p)
	if err != nil {
		if c.ctx.Err() != nil {
			return n, c.ctx.Err()
		}
		return n, &TransferError{Op: "write", Err: err}
	}
	return n, nil
}

// Write implements io.Writer for raw upload data.
func (c *Conn) Write(p []byte) (int, error) {
	return c.write(p)
}

// WriteCommand writes one command line. When terminate is set the session
// terminator is appended to the same write so the console closes the
// connection after answering.
func (c *Conn) WriteCommand(cmd Command, terminate bool) error {
	line := cmd.FormatLine()
	if terminate {
		line += NewByeCommand().FormatLine()
	}
	c.log.Debug().Str("command", cmd.Format()).Bool("bye", terminate).Msg("send")
	_, err := c.write([]byte(line))
	return err
}

// WriteTerminator writes the session terminator on its own.
func (c *Conn) WriteTerminator() error {
	c.log.Debug().Str("command", ByeCommand).Msg("send")
	_, err := c.write([]byte(NewByeCommand().FormatLine()))
	return err
}

// ReadLine reads one line from the connection.
func (c *Conn) ReadLine() (string, error) {
	return c.reader.ReadLine(c.ctx)
}

// ReadBytes reads exactly n bytes from the connection.
func (c *Conn) ReadBytes(n int) ([]byte, error) {
	return c.reader.ReadBytes(c.ctx, n)
}

// ReadHeader reads one status line and checks its code against expected.
// It returns the payload after the "NNN- " prefix.
func (c *Conn) ReadHeader(expected Status) (string, error) {
	line, err := c.ReadLine()
	if err != nil {
		return "", err
	}
	c.log.Debug().Str("status", line).Msg("recv")
	return ParseStatusLine(line, expected)
}

// ParseStatusLine checks that line starts with the expected status code
// and returns its payload.
func ParseStatusLine(line string, expected Status) (string, error) {
	if len(line) < 3 || line[:3] != expected.Code() {
		perr := &ProtocolError{Expected: expected, Line: line}
		if len(line) >= 3 {
			if code, err := strconv.Atoi(line[:3]); err == nil {
				perr.Actual = Status(code)
			}
		}
		return "", perr
	}
	if len(line) <= statusPrefixLength {
		return "", nil
	}
	return line[statusPrefixLength:], nil
}

// ReadMultiline collects record lines until the lone "." terminator.
func (c *Conn) ReadMultiline() ([]string, error) {
	var lines []string
	for {
		line, err := c.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == MultilineTerminator {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// ReadBye reads the closing "200- bye" status line.
func (c *Conn) ReadBye() error {
	payload, err := c.ReadHeader(StatusOK)
	if err != nil {
		return err
	}
	if payload != ByePayload {
		return newMalformedError(payload, "expected response to end with '%s'", ByePayload)
	}
	return nil
}

// ReadBinaryLength reads the 4 byte little-endian length that precedes a
// binary payload.
func (c *Conn) ReadBinaryLength() (uint32, error) {
	raw, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// Stream returns a reader over the next maxBytes bytes (all remaining bytes
// when maxBytes < 0).
func (c *Conn) Stream(maxBytes int64) io.Reader {
	return c.reader.Stream(c.ctx, maxBytes)
}

// JoinLines joins multiline records with the protocol delimiter.
func JoinLines(lines []string) string {
	return strings.Join(lines, LineDelimiter)
}
