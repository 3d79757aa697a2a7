// =============================================================================
// repl.go - Interactive Command Loop
// =============================================================================
//
// The REPL reads one line at a time, handles the built-ins (help, quit,
// exit) itself and hands everything else to the command table. Each command
// runs under its own interrupt context: Ctrl-C cancels the transfer in
// progress and returns to the prompt instead of exiting.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// prompt shows the selected console and current directory.
func (s *session) prompt() string {
	switch {
	case s.console == nil:
		return "neighborhood> "
	case s.cwd == "":
		return fmt.Sprintf("neighborhood %s> ", s.console.Address())
	default:
		return fmt.Sprintf("neighborhood %s %s> ", s.console.Address(), s.cwd)
	}
}

// interruptible derives a context that is cancelled on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// runREPL reads and runs lines until quit or end of input. Command errors
// are reported and the loop continues.
func runREPL(ctx context.Context, s *session, editor *LineEditor) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := editor.GetLine(s.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		word, rest, _ := strings.Cut(line, " ")
		switch strings.ToLower(word) {
		case "quit", "exit":
			return nil
		case "help", "?":
			if err := printHelp(s.out, strings.TrimSpace(rest)); err != nil {
				printError(s.errOut, err)
			}
			continue
		}

		cmdCtx, stop := interruptible(ctx)
		err = s.execute(cmdCtx, line)
		interrupted := cmdCtx.Err() != nil && ctx.Err() == nil
		stop()

		switch {
		case err == nil:
		case interrupted:
			printError(s.errOut, fmt.Errorf("interrupted: %w", err))
		default:
			s.log.Debug().Err(err).Str("line", line).Msg("command failed")
			printError(s.errOut, err)
		}
	}
}
