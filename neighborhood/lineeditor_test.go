// =============================================================================
// lineeditor_test.go - Tests for Line Editor (lineeditor.go)
// =============================================================================
//
// The interactive path needs a real TTY, so these tests exercise the
// scripted path over in-memory readers and a piped stdin.
//
// =============================================================================

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

// TestNewLineEditorNonInteractive verifies a piped stdin selects scripted
// mode.
func TestNewLineEditorNonInteractive(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	w.Close()

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	le := NewLineEditor("")
	defer le.Close()

	if le.IsInteractive() {
		t.Error("editor over a pipe should not be interactive")
	}
	if _, err := le.GetLine(""); !errors.Is(err, io.EOF) {
		t.Errorf("GetLine on closed pipe = %v, want io.EOF", err)
	}
}

func TestGetLineScripted(t *testing.T) {
	var out bytes.Buffer
	le := newScriptedEditor(strings.NewReader("ls HDD:\\\n\n  pwd  \nlast"), &out)

	want := []string{`ls HDD:\`, "", "  pwd  ", "last"}
	for i, w := range want {
		got, err := le.GetLine("> ")
		if err != nil {
			t.Fatalf("line %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("line %d = %q, want %q", i, got, w)
		}
	}

	if _, err := le.GetLine("> "); !errors.Is(err, io.EOF) {
		t.Errorf("after last line err = %v, want io.EOF", err)
	}
	if got := out.String(); got != strings.Repeat("> ", 5) {
		t.Errorf("prompts = %q", got)
	}
}

func TestScriptedEditorOutput(t *testing.T) {
	var out bytes.Buffer
	le := newScriptedEditor(strings.NewReader(""), &out)

	if le.Output() != &out {
		t.Error("Output should return the writer given to the editor")
	}
	if le.IsInteractive() {
		t.Error("scripted editor should not be interactive")
	}

	// Close has nothing to release and may be called twice.
	le.Close()
	le.Close()
}
