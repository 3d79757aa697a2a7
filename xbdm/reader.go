package xbdm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// readState is what the single pending request is waiting for.
type readState int

const (
	stateIdle readState = iota
	stateAwaitingDelimiter
	stateAwaitingByteCount
	stateStreaming
)

func (s readState) String() string {
	switch s {
	case stateAwaitingDelimiter:
		return "awaiting delimiter"
	case stateAwaitingByteCount:
		return "awaiting byte count"
	case stateStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

type readRequest struct {
	state readState
	count int // exact count for byte reads, upper bound for stream reads
	done  chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// Reader buffers the bytes arriving on one connection and hands them out as
// delimiter-terminated lines, exact byte counts or a residual stream.
//
// Arrivals enter through Feed and the end of the connection through Fail.
// At most one read may be pending at a time; a second concurrent read fails
// with ErrReadInProgress instead of racing the first one.
type Reader struct {
	mu          sync.Mutex
	space       *sync.Cond
	buf         []byte
	pending     *readRequest
	streaming   bool
	err         error
	idleTimeout time.Duration
	highWater   int
	lastArrival time.Time
}

// NewReader creates a reader. A zero idleTimeout disables the idle check.
func NewReader(idleTimeout time.Duration) *Reader {
	r := &Reader{
		idleTimeout: idleTimeout,
		highWater:   HighWaterMark,
		lastArrival: time.Now(),
	}
	r.space = sync.NewCond(&r.mu)
	return r
}

// Feed appends bytes that arrived from the connection and completes the
// pending read if it can now be satisfied.
func (r *Reader) Feed(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	r.lastArrival = time.Now()
	r.buf = append(r.buf, chunk...)
	r.dispatch()
}

// Fail terminates the reader. The pending read and every later read that
// cannot be served from the buffer fail with err. Only the first error is
// kept.
func (r *Reader) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.err = err
	}
	r.dispatch()
	r.space.Broadcast()
}

// Err returns the error the reader failed with, if any.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Buffered returns the number of bytes waiting in the buffer.
func (r *Reader) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// WaitForSpace blocks the producer while the buffer is above the high-water
// mark and nobody is waiting for more data. It returns false once the reader
// has failed.
func (r *Reader) WaitForSpace() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.err == nil && r.pending == nil && len(r.buf) >= r.highWater {
		r.space.Wait()
	}
	return r.err == nil
}

// ReadLine returns the next line without its delimiter.
func (r *Reader) ReadLine(ctx context.Context) (string, error) {
	data, err := r.request(ctx, stateAwaitingDelimiter, 0)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBytes returns exactly n bytes.
func (r *Reader) ReadBytes(ctx context.Context, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative byte count %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.request(ctx, stateAwaitingByteCount, n)
}

// Stream hands every further byte, buffered ones first, to the returned
// reader. With maxBytes >= 0 the stream ends after exactly maxBytes and
// anything after it is never exposed; with maxBytes < 0 it ends when the
// remote closes the connection.
//
// After Stream, ReadLine and ReadBytes fail with ErrStreaming.
func (r *Reader) Stream(ctx context.Context, maxBytes int64) io.Reader {
	r.mu.Lock()
	r.streaming = true
	r.mu.Unlock()

	return &residualStream{r: r, ctx: ctx, remaining: maxBytes}
}

// request registers one read in the pending slot and waits for Feed or Fail
// to complete it.
func (r *Reader) request(ctx context.Context, state readState, count int) ([]byte, error) {
	r.mu.Lock()
	if r.pending != nil {
		r.mu.Unlock()
		return nil, ErrReadInProgress
	}
	if r.streaming && state != stateStreaming {
		r.mu.Unlock()
		return nil, ErrStreaming
	}

	req := &readRequest{state: state, count: count, done: make(chan readResult, 1)}
	data, ok, err := r.take(req)
	if ok || err != nil {
		if err != nil && r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
		r.space.Broadcast()
		return data, err
	}
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return nil, err
	}
	r.pending = req
	r.mu.Unlock()
	r.space.Broadcast()

	var idle <-chan time.Time
	if r.idleTimeout > 0 {
		timer := time.NewTimer(r.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case res := <-req.done:
			r.space.Broadcast()
			return res.data, res.err

		case <-ctx.Done():
			r.mu.Lock()
			if r.pending == req {
				r.pending = nil
			}
			r.mu.Unlock()
			// Feed may have completed the request before we cleared the slot.
			select {
			case res := <-req.done:
				return res.data, res.err
			default:
			}
			return nil, ctx.Err()

		case <-idle:
			r.mu.Lock()
			silence := time.Since(r.lastArrival)
			r.mu.Unlock()
			if silence < r.idleTimeout {
				idle = time.After(r.idleTimeout - silence)
				continue
			}
			r.Fail(ErrIdleTimeout)
		}
	}
}

// dispatch completes the pending request from the buffer or with the
// terminal error. The caller holds r.mu.
func (r *Reader) dispatch() {
	req := r.pending
	if req == nil {
		return
	}

	data, ok, err := r.take(req)
	switch {
	case ok || err != nil:
		if err != nil && r.err == nil {
			r.err = err
		}
	case r.err != nil:
		err = r.err
	default:
		return
	}

	r.pending = nil
	req.done <- readResult{data: data, err: err}
}

// take removes what req asks for from the buffer. The caller holds r.mu.
func (r *Reader) take(req *readRequest) ([]byte, bool, error) {
	switch req.state {
	case stateAwaitingDelimiter:
		i := bytes.Index(r.buf, []byte(LineDelimiter))
		if i < 0 {
			if len(r.buf) > MaxLineLength {
				return nil, false, ErrLineTooLong
			}
			return nil, false, nil
		}
		if i > MaxLineLength {
			return nil, false, ErrLineTooLong
		}
		line := bytes.Clone(r.buf[:i])
		r.consume(i + len(LineDelimiter))
		return line, true, nil

	case stateAwaitingByteCount:
		if len(r.buf) < req.count {
			return nil, false, nil
		}
		data := bytes.Clone(r.buf[:req.count])
		r.consume(req.count)
		return data, true, nil

	case stateStreaming:
		if len(r.buf) == 0 {
			return nil, false, nil
		}
		n := min(len(r.buf), req.count)
		data := bytes.Clone(r.buf[:n])
		r.consume(n)
		return data, true, nil
	}
	return nil, false, fmt.Errorf("read request in state %s", req.state)
}

func (r *Reader) consume(n int) {
	r.buf = r.buf[n:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
}

// residualStream is the io.Reader returned by Reader.Stream.
type residualStream struct {
	r         *Reader
	ctx       context.Context
	remaining int64 // < 0 means unbounded
}

func (s *residualStream) Read(p []byte) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	want := len(p)
	if s.remaining > 0 && int64(want) > s.remaining {
		want = int(s.remaining)
	}

	data, err := s.r.request(s.ctx, stateStreaming, want)
	if err != nil {
		if errors.Is(err, ErrClosedByRemote) {
			if s.remaining < 0 {
				return 0, io.EOF
			}
			return 0, &TransferError{
				Op:  "read",
				Err: fmt.Errorf("%w with %d bytes outstanding", err, s.remaining),
			}
		}
		return 0, err
	}

	n := copy(p, data)
	if s.remaining > 0 {
		s.remaining -= int64(n)
	}
	return n, nil
}
