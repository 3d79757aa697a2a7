// =============================================================================
// main.go - OpenNeighborhood CLI Entry Point
// =============================================================================
//
// neighborhood talks to Xbox 360 development kits over the debug monitor
// protocol (XBDM). It runs either as a one-shot command or as an interactive
// REPL when no subcommand is given.
//
// Usage:
//
//	neighborhood                               Start the REPL
//	neighborhood discover                      Find consoles on the network
//	neighborhood -c 192.168.1.20 drives        List drives
//	neighborhood -c 192.168.1.20 get HDD:\Games\Foo foo.zip
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ClementDreptin/OpenNeighborhood/xbdm"
)

const (
	appName = "OpenNeighborhood"
	version = "0.1.0"
)

// fullTitle returns the application name with version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// welcomeBanner returns the banner displayed when the REPL starts.
func welcomeBanner() string {
	return fmt.Sprintf(`%s - Xbox 360 development kit manager

Type 'help' for available commands.
Type 'quit' to exit.
`, fullTitle())
}

// printError prints an error message to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

// flagValues holds the raw persistent flag values before they are layered
// over the config file.
type flagValues struct {
	configPath  string
	console     string
	port        int
	logLevel    string
	idleTimeout time.Duration
}

// resolveConfig loads the config file and applies the environment and the
// flags the user actually set.
func resolveConfig(cmd *cobra.Command, fv *flagValues) (Config, error) {
	path, required := fv.configPath, true
	if path == "" {
		path, required = defaultConfigPath(), false
	}
	cfg, err := loadConfig(path, required)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("console") {
		cfg.Console = fv.console
	} else if cfg.Console == "" {
		cfg.Console = os.Getenv(EnvConsole)
	}
	if flags.Changed("port") {
		if fv.port <= 0 || fv.port > 65535 {
			return Config{}, fmt.Errorf("port %d out of range", fv.port)
		}
		cfg.Port = fv.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = fv.idleTimeout
	}

	if cfg.Console != "" {
		if err := xbdm.ValidateAddress(cfg.Console); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// newRootCommand builds the command tree. Output goes to stdout and errors
// and diagnostics to stderr.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		fv   flagValues
		sess *session
	)

	root := &cobra.Command{
		Use:           "neighborhood",
		Short:         "Manage Xbox 360 development kits over XBDM",
		Long:          fullTitle() + "\n\nWithout a subcommand an interactive shell is started.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &fv)
			if err != nil {
				return err
			}
			logger := newLogger(stderr, cfg.LogLevel)
			logger.Debug().
				Str("console", cfg.Console).
				Int("port", cfg.Port).
				Dur("idle_timeout", cfg.IdleTimeout).
				Msg("configuration resolved")
			sess = newSession(cfg, logger, stdout, stderr)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := NewLineEditor(sess.cfg.HistoryFile)
			defer editor.Close()

			sess.out = editor.Output()
			fmt.Fprint(sess.out, welcomeBanner())
			return runREPL(cmd.Context(), sess, editor)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&fv.configPath, "config", "", "config file (default "+defaultConfigPath()+")")
	flags.StringVarP(&fv.console, "console", "c", "", "console IP address (env "+EnvConsole+")")
	flags.IntVar(&fv.port, "port", xbdm.Port, "debug monitor TCP port")
	flags.StringVar(&fv.logLevel, "log-level", "", "log level: trace, debug, info, warn, error or off")
	flags.DurationVar(&fv.idleTimeout, "idle-timeout", xbdm.IdleTimeout, "fail a transfer after this long without data")

	for _, c := range commandTable {
		if c.replOnly {
			continue
		}
		root.AddCommand(newSubcommand(c, &sess))
	}
	return root
}

// newSubcommand wraps a command table entry as a one-shot cobra command.
// sess is filled in by the root's PersistentPreRunE before RunE runs.
func newSubcommand(c *command, sess **session) *cobra.Command {
	return &cobra.Command{
		Use:     c.usage,
		Aliases: c.aliases,
		Short:   c.summary,
		Args:    cobra.RangeArgs(c.minArgs, c.maxArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd.Context())
			defer stop()
			return c.run(ctx, *sess, args)
		},
	}
}

func main() {
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
