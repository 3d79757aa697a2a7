// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The REPL reads its input through a LineEditor that picks one of two modes:
//
//   - Interactive mode: stdin is a terminal. ergochat/readline provides
//     Emacs keybindings, Ctrl-R history search and a persistent history
//     file.
//   - Non-interactive mode: input is piped (scripts, Emacs comint). A
//     bufio.Scanner reads plain lines and the prompt is printed by hand.
//
// Piped mode makes the REPL scriptable:
//
//	printf 'cd HDD:\\\nls\n' | neighborhood -c 192.168.1.20
//
// =============================================================================

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// historySize is the maximum number of history entries to retain.
const historySize = 500

// LineEditor reads REPL input lines.
type LineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
	out         io.Writer
}

// NewLineEditor creates an editor reading from stdin. historyFile is only
// used in interactive mode; an empty path disables persistent history.
func NewLineEditor(historyFile string) *LineEditor {
	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return newScriptedEditor(os.Stdin, os.Stdout)
	}

	if historyFile != "" {
		// readline does not create missing directories.
		os.MkdirAll(filepath.Dir(historyFile), 0o755)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
		Prompt:                 "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return newScriptedEditor(os.Stdin, os.Stdout)
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
		out:         os.Stdout,
	}
}

// newScriptedEditor creates a non-interactive editor over in.
func newScriptedEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{
		interactive: false,
		scanner:     bufio.NewScanner(in),
		out:         out,
	}
}

// GetLine displays prompt and returns the next line. io.EOF signals the end
// of input (Ctrl-D, Ctrl-C at an empty prompt, or end of the pipe).
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Fprint(le.out, prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Output returns the writer REPL output should go to.
func (le *LineEditor) Output() io.Writer {
	return le.out
}

// Close releases the terminal.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether the editor is attached to a terminal.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
