// Package xbdmtest provides an in-process debug monitor for tests.
//
// The server listens on 127.0.0.1 with a random port, greets every
// connection with "201- connected" and hands each received command line to
// the handler registered for its command word. The session terminator is
// answered with "200- bye" and closes the session. Unknown commands get a
// 407 status.
//
//	srv := xbdmtest.NewServer(t)
//	srv.Handle("dbgname", func(s *xbdmtest.Session, line string) {
//	    s.Ok("jtag")
//	})
//	console := xbdm.NewConsole("127.0.0.1", xbdm.WithPort(srv.Port()))
package xbdmtest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
)

const delimiter = "\r\n"

// Handler answers one command line. It may write any number of responses,
// read upload bytes and close the session.
type Handler func(s *Session, line string)

// Server is a fake debug monitor.
type Server struct {
	listener net.Listener

	mu       sync.Mutex
	handlers map[string]Handler
	commands []string
	conns    []net.Conn
	accepted int

	wg sync.WaitGroup
}

// NewServer starts a server that is stopped when the test finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{
		listener: listener,
		handlers: make(map[string]Handler),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

// Handle registers h for lines whose first word is name.
func (s *Server) Handle(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Commands returns every command line received so far, in arrival order,
// excluding the session terminator.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Close stops the server and closes every open session.
func (s *Server) Close() {
	s.listener.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := &Session{conn: conn, rd: bufio.NewReader(conn)}
	sess.WriteLine("201- connected")

	for !sess.closed {
		line, err := sess.rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		if line == "bye" {
			sess.WriteLine("200- bye")
			sess.Close()
			break
		}

		s.mu.Lock()
		s.commands = append(s.commands, line)
		h := s.handlers[commandWord(line)]
		s.mu.Unlock()

		if h == nil {
			sess.Status(407, "unknown command")
			continue
		}
		h(sess, line)
	}

	// Wait for the client to hang up so the close is seen as an orderly
	// shutdown rather than a reset.
	io.Copy(io.Discard, conn)
}

func commandWord(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}

// Session is the server side of one connection.
type Session struct {
	conn   net.Conn
	rd     *bufio.Reader
	closed bool
}

// WriteLine writes line followed by CRLF.
func (s *Session) WriteLine(line string) {
	io.WriteString(s.conn, line+delimiter)
}

// Write writes raw bytes.
func (s *Session) Write(p []byte) {
	s.conn.Write(p)
}

// Status writes a status line with the given code.
func (s *Session) Status(code int, payload string) {
	s.WriteLine(fmt.Sprintf("%03d- %s", code, payload))
}

// Ok writes a 200 status line.
func (s *Session) Ok(payload string) {
	s.Status(200, payload)
}

// Multiline writes a 202 header, the records and the "." terminator.
func (s *Session) Multiline(records ...string) {
	var b strings.Builder
	b.WriteString("202- multiline response follows" + delimiter)
	for _, r := range records {
		b.WriteString(r + delimiter)
	}
	b.WriteString("." + delimiter)
	io.WriteString(s.conn, b.String())
}

// Binary writes a 203 header, the little-endian length and data.
func (s *Session) Binary(data []byte) {
	s.Status(203, "binary response follows")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
	s.conn.Write(append(size[:], data...))
}

// ReadN reads exactly n raw bytes sent by the client.
func (s *Session) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := io.ReadFull(s.rd, buf)
	return buf, err
}

// Close ends the session by shutting down the write side of the connection.
// The client sees end of stream.
func (s *Session) Close() {
	s.closed = true
	if tcp, ok := s.conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
		return
	}
	s.conn.Close()
}
