// =============================================================================
// help.go - REPL Help
// =============================================================================
//
// `help` prints an overview built from the command table; `help <command>`
// prints the usage line of a single command. REPL-only built-ins (help,
// quit) are listed separately since they are not part of the table.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// builtinHelp documents the commands handled by the REPL loop itself.
var builtinHelp = map[string]string{
	"help": "help [command]      Show help (or help for a specific command)",
	"quit": "quit                Exit the REPL (also 'exit' or Ctrl-D)",
}

// printHelp writes help for topic, or the overview when topic is empty.
func printHelp(w io.Writer, topic string) error {
	if topic == "" {
		printHelpOverview(w)
		return nil
	}

	key := strings.ToLower(topic)
	if key == "exit" {
		key = "quit"
	}
	if text, ok := builtinHelp[key]; ok {
		fmt.Fprintln(w, text)
		return nil
	}

	cmd := lookupCommand(key)
	if cmd == nil {
		return fmt.Errorf("no help for '%s'. Type 'help' to see available commands", topic)
	}
	fmt.Fprintf(w, "%s\n  %s\n", cmd.usage, cmd.summary)
	if len(cmd.aliases) > 0 {
		fmt.Fprintf(w, "  Aliases: %s\n", strings.Join(cmd.aliases, ", "))
	}
	return nil
}

func printHelpOverview(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Commands:")
	for _, c := range commandTable {
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.summary)
	}
	tw.Flush()

	fmt.Fprint(w, `
REPL:
  `+builtinHelp["help"]+`
  `+builtinHelp["quit"]+`

Paths use backslashes (HDD:\Content). Quote paths containing spaces.
`)
}
