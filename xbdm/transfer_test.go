package xbdm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/ClementDreptin/OpenNeighborhood/xbdm/xbdmtest"
)

// serveFiles answers getfile from a fixed set of contents.
func serveFiles(srv *xbdmtest.Server, files map[string][]byte) {
	srv.Handle("getfile", func(s *xbdmtest.Session, line string) {
		name, _ := StringProperty(line, "name")
		data, ok := files[name]
		if !ok {
			s.Status(402, "file not found")
			return
		}
		s.Binary(data)
	})
}

// receiver stores uploads by path.
type receiver struct {
	mu    sync.Mutex
	files map[string][]byte
}

func receiveUploads(srv *xbdmtest.Server) *receiver {
	r := &receiver{files: make(map[string][]byte)}
	srv.Handle("sendfile", func(s *xbdmtest.Session, line string) {
		name, _ := StringProperty(line, "name")
		length, _ := IntegerProperty(line, "length")
		s.Status(204, "send binary data")

		data, err := s.ReadN(int(length))
		if err != nil {
			return
		}
		r.mu.Lock()
		r.files[name] = data
		r.mu.Unlock()
	})
	return r
}

func (r *receiver) get(name string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.files[name]
	return data, ok
}

func TestDownload(t *testing.T) {
	content := bytes.Repeat([]byte("xbdm"), 20000)

	srv := xbdmtest.NewServer(t)
	serveFiles(srv, map[string][]byte{`E:\big.bin`: content})

	file, err := newTestConsole(srv).Download(context.Background(), `E:\big.bin`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer file.Close()

	if file.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", file.Size, len(content))
	}
	got, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %d bytes, content differs", len(got))
	}
	if cmds := srv.Commands(); len(cmds) != 1 || cmds[0] != `getfile name="E:\big.bin"` {
		t.Errorf("commands = %q", cmds)
	}
}

func TestDownloadIgnoresTrailingBytes(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	srv.Handle("getfile", func(s *xbdmtest.Session, line string) {
		s.Binary([]byte("payload"))
		s.Write([]byte("trailing garbage"))
	})

	file, err := newTestConsole(srv).Download(context.Background(), `E:\a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer file.Close()

	got, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want %q", got, "payload")
	}
}

func TestDownloadTruncated(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	srv.Handle("getfile", func(s *xbdmtest.Session, line string) {
		s.Status(203, "binary response follows")
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], 100)
		s.Write(size[:])
		s.Write([]byte("only ten b"))
		s.Close()
	})

	file, err := newTestConsole(srv).Download(context.Background(), `E:\a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer file.Close()

	got, err := io.ReadAll(file)
	if len(got) != 10 {
		t.Errorf("got %d bytes before the error, want 10", len(got))
	}
	var terr *TransferError
	if !errors.As(err, &terr) || !errors.Is(err, ErrClosedByRemote) {
		t.Fatalf("expected TransferError wrapping ErrClosedByRemote, got %T: %v", err, err)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	serveFiles(srv, nil)

	_, err := newTestConsole(srv).Download(context.Background(), `E:\missing`)

	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Actual != Status(402) {
		t.Fatalf("expected ProtocolError with status 402, got %v", err)
	}
}

func TestDownloadDirectory(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	serveTree(srv, map[string][]string{
		`E:\game`:      {fileRecord("default.xex", 5, false), fileRecord("maps", 0, true)},
		`E:\game\maps`: {fileRecord("a.map", 3, false), fileRecord("b.map", 4, false)},
	})
	serveFiles(srv, map[string][]byte{
		`E:\game\default.xex`: []byte("12345"),
		`E:\game\maps\a.map`:  []byte("aaa"),
		`E:\game\maps\b.map`:  []byte("bbbb"),
	})

	dialer := &countingDialer{}
	console := newTestConsole(srv, WithDialer(dialer.Dial))

	got := make(map[string]string)
	var order []string
	err := console.DownloadDirectory(context.Background(), `E:\game`, func(rel string, f *FileStream) error {
		order = append(order, rel)
		if rel == `maps\a.map` {
			// Left unread; the next transfer must still start cleanly.
			return nil
		}
		data, err := io.ReadAll(f)
		got[rel] = string(data)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{`maps\a.map`, `maps\b.map`, "default.xex"}
	if strings.Join(order, "|") != strings.Join(wantOrder, "|") {
		t.Errorf("order = %q, want %q", order, wantOrder)
	}
	if got[`maps\b.map`] != "bbbb" || got["default.xex"] != "12345" {
		t.Errorf("contents = %q", got)
	}

	peak, dialed := dialer.stats()
	if peak != 1 {
		t.Errorf("peak open connections = %d, want 1", peak)
	}
	// Two listings and three downloads.
	if dialed != 5 {
		t.Errorf("dialed %d connections, want 5", dialed)
	}
}

func TestDownloadDirectoryCallbackError(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	serveTree(srv, map[string][]string{
		`E:\d`: {fileRecord("a", 1, false), fileRecord("b", 1, false)},
	})
	serveFiles(srv, map[string][]byte{`E:\d\a`: []byte("a"), `E:\d\b`: []byte("b")})

	stop := errors.New("stop")
	calls := 0
	err := newTestConsole(srv).DownloadDirectory(context.Background(), `E:\d`, func(string, *FileStream) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestUpload(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	uploads := receiveUploads(srv)

	content := bytes.Repeat([]byte{0x00, 0xFF, '\r', '\n'}, 5000)
	err := newTestConsole(srv).Upload(context.Background(), `E:\dir`, "f.bin", int64(len(content)), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := uploads.get(`E:\dir\f.bin`)
	if !ok {
		t.Fatalf("nothing received, commands = %q", srv.Commands())
	}
	if !bytes.Equal(got, content) {
		t.Errorf("received %d bytes, content differs", len(got))
	}
	want := fmt.Sprintf(`sendfile name="E:\dir\f.bin" length=0x%x`, len(content))
	if cmds := srv.Commands(); len(cmds) != 1 || cmds[0] != want {
		t.Errorf("commands = %q, want [%q]", cmds, want)
	}
}

func TestUploadShortSource(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	receiveUploads(srv)

	err := newTestConsole(srv).Upload(context.Background(), `E:\`, "f.bin", 10, strings.NewReader("four"))

	var terr *TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransferError, got %T: %v", err, err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF in chain, got %v", err)
	}
}

func TestUploadRejected(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	srv.Handle("sendfile", func(s *xbdmtest.Session, line string) {
		s.Status(414, "access denied")
	})

	err := newTestConsole(srv).Upload(context.Background(), `E:\`, "f.bin", 4, strings.NewReader("data"))

	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
	if perr.Expected != StatusSendBinaryData {
		t.Errorf("Expected = %v, want %v", perr.Expected, StatusSendBinaryData)
	}
}

func TestUploadDirectory(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	uploads := receiveUploads(srv)
	srv.Handle("mkdir", func(s *xbdmtest.Session, line string) {
		// The top directory already exists on the console.
		if line == `mkdir name="E:\game"` {
			s.Status(410, "file already exists")
			return
		}
		s.Ok("")
	})

	fsys := fstest.MapFS{
		"game/default.xex":    {Data: []byte("xex")},
		"game/maps/level.map": {Data: []byte("level")},
	}
	if err := newTestConsole(srv).UploadDirectory(context.Background(), fsys, "game", `E:\`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		`mkdir name="E:\game"`,
		`sendfile name="E:\game\default.xex" length=0x3`,
		`mkdir name="E:\game\maps"`,
		`sendfile name="E:\game\maps\level.map" length=0x5`,
	}
	if got := srv.Commands(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("commands = %q, want %q", got, want)
	}
	if data, _ := uploads.get(`E:\game\maps\level.map`); string(data) != "level" {
		t.Errorf("level.map = %q", data)
	}
}

func TestScreenshot(t *testing.T) {
	const width, height, pitch, paddedHeight = 40, 50, 256, 64
	fb := tile(width, height, pitch, paddedHeight, gradient)

	srv := xbdmtest.NewServer(t)
	srv.Handle("screenshot", func(s *xbdmtest.Session, line string) {
		s.Status(203, "binary response follows")
		s.WriteLine(fmt.Sprintf(
			"pitch=0x%08x width=0x%08x height=0x%08x format=0x%08x offsetx=0x0 offsety=0x0 framebuffersize=0x%08x",
			pitch, width, height, formatBGRA, len(fb)))
		s.Write(fb)
	})

	img, err := newTestConsole(srv).Screenshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		t.Fatalf("bounds = %v", b)
	}
	for _, p := range [][2]uint32{{0, 0}, {39, 0}, {0, 49}, {39, 49}, {17, 33}} {
		if got, want := img.RGBAAt(int(p[0]), int(p[1])), gradient(p[0], p[1]); got != want {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestScreenshotUnsupportedFormat(t *testing.T) {
	srv := xbdmtest.NewServer(t)
	srv.Handle("screenshot", func(s *xbdmtest.Session, line string) {
		s.Status(203, "binary response follows")
		s.WriteLine("pitch=0x80 width=0x20 height=0x20 format=0x00000006 offsetx=0x0 offsety=0x0 framebuffersize=0x10")
		s.Write(make([]byte, 16))
	})

	_, err := newTestConsole(srv).Screenshot(context.Background())

	var ferr *UnsupportedFormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *UnsupportedFormatError, got %T: %v", err, err)
	}
}
