// =============================================================================
// format.go - Output Formatting and Transfer Progress
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// formatBytes renders n with a binary unit, e.g. "1.5 GiB".
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// timeLayout is used for file modification times in listings.
const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// progressInterval limits how often the progress line is redrawn.
const progressInterval = 100 * time.Millisecond

// progress is an io.Writer that counts the bytes written through it and
// redraws a single status line on a terminal.
type progress struct {
	w       io.Writer
	name    string
	total   int64
	done    int64
	enabled bool
	last    time.Time
}

// newProgress reports on stderr when it is a terminal.
func newProgress(name string, total int64) *progress {
	return &progress{
		w:       os.Stderr,
		name:    name,
		total:   total,
		enabled: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

func (p *progress) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.enabled && time.Since(p.last) >= progressInterval {
		p.last = time.Now()
		p.draw()
	}
	return len(b), nil
}

func (p *progress) draw() {
	pct := 100
	if p.total > 0 {
		pct = int(p.done * 100 / p.total)
	}
	fmt.Fprintf(p.w, "\r%-40.40s %10s / %-10s %3d%%",
		p.name, formatBytes(uint64(p.done)), formatBytes(uint64(p.total)), pct)
}

// finish clears the status line.
func (p *progress) finish() {
	if p.enabled {
		p.draw()
		fmt.Fprintln(p.w)
	}
}
