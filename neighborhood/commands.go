// =============================================================================
// commands.go - Command Table Shared by Subcommands and the REPL
// =============================================================================
//
// Every console operation is described once in the command table below. The
// table feeds two front ends:
//
//   - One-shot mode: each entry becomes a cobra subcommand, e.g.
//     `neighborhood -c 192.168.1.20 ls HDD:\`.
//   - REPL mode: input lines are split into words and dispatched to the
//     entry with the matching name or alias.
//
// Paths use the console's backslash syntax. In the REPL, relative paths are
// resolved against the current directory set with `cd`; one-shot commands
// have no current directory and need absolute paths such as `HDD:\Games`.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/ClementDreptin/OpenNeighborhood/xbdm"
)

// session is the state shared by the commands of one CLI invocation.
type session struct {
	cfg        Config
	log        zerolog.Logger
	out        io.Writer
	errOut     io.Writer
	console    *xbdm.Console
	cwd        string
	discoverer *xbdm.Discoverer
}

func newSession(cfg Config, log zerolog.Logger, out, errOut io.Writer) *session {
	s := &session{
		cfg:        cfg,
		log:        log,
		out:        out,
		errOut:     errOut,
		discoverer: xbdm.NewDiscoverer(),
	}
	if cfg.Console != "" {
		s.connect(cfg.Console)
	}
	return s
}

// connect points the session at another console and resets the current
// directory.
func (s *session) connect(address string) {
	s.console = xbdm.NewConsole(address,
		xbdm.WithPort(s.cfg.Port),
		xbdm.WithConnectTimeout(s.cfg.ConnectTimeout),
		xbdm.WithIdleTimeout(s.cfg.IdleTimeout),
		xbdm.WithLogger(s.log),
	)
	s.cwd = ""
}

// errNoConsole is returned by console commands before a console is chosen.
var errNoConsole = errors.New("no console selected: use --console, set " + EnvConsole + " or run 'connect <ip>'")

func (s *session) requireConsole() (*xbdm.Console, error) {
	if s.console == nil {
		return nil, errNoConsole
	}
	return s.console, nil
}

// resolve turns p into an absolute console path.
func (s *session) resolve(p string) (string, error) {
	if p == "" {
		if s.cwd == "" {
			return "", errors.New("no current directory: give an absolute path like HDD:\\")
		}
		return s.cwd, nil
	}
	if isAbsolute(p) {
		return xbdm.ConsoleSeparator.Join(p), nil
	}
	if s.cwd == "" {
		return "", fmt.Errorf("relative path %q needs a current directory: use an absolute path like HDD:\\%s", p, p)
	}
	return xbdm.ConsoleSeparator.Join(s.cwd, p), nil
}

// isAbsolute reports whether p starts with a drive designator.
func isAbsolute(p string) bool {
	first, _, _ := strings.Cut(p, `\`)
	return strings.HasSuffix(first, ":") && len(first) > 1
}

// stat returns the directory entry for path by listing its parent. Drive
// roots are reported as directories.
func stat(ctx context.Context, c *xbdm.Console, path string) (xbdm.File, error) {
	parent := xbdm.ConsoleSeparator.Dir(path)
	if parent == "" {
		return xbdm.File{Name: path, IsDirectory: true}, nil
	}

	name := xbdm.ConsoleSeparator.Base(path)
	files, err := c.Files(ctx, parent)
	if err != nil {
		return xbdm.File{}, err
	}
	for _, f := range files {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return xbdm.File{}, fmt.Errorf("%s: no such file or directory", path)
}

// command is one entry of the command table.
type command struct {
	name     string
	aliases  []string
	usage    string
	summary  string
	minArgs  int
	maxArgs  int
	replOnly bool
	run      func(ctx context.Context, s *session, args []string) error
}

// commandTable lists every command in help order.
var commandTable = []*command{
	{name: "connect", usage: "connect <ip>", summary: "Select the console to talk to", minArgs: 1, maxArgs: 1, replOnly: true, run: runConnect},
	{name: "discover", usage: "discover [name]", summary: "Find consoles on the local network", maxArgs: 1, run: runDiscover},
	{name: "info", usage: "info", summary: "Show console name, type and running title", run: runInfo},
	{name: "drives", usage: "drives", summary: "List drives with free space", run: runDrives},
	{name: "cd", usage: "cd <dir>", summary: "Change the current directory", minArgs: 1, maxArgs: 1, replOnly: true, run: runCd},
	{name: "pwd", usage: "pwd", summary: "Print the current directory", replOnly: true, run: runPwd},
	{name: "ls", aliases: []string{"dir"}, usage: "ls [dir]", summary: "List a directory", maxArgs: 1, run: runLs},
	{name: "get", usage: "get <remote> [local]", summary: "Download a file or directory (.zip destination archives it)", minArgs: 1, maxArgs: 2, run: runGet},
	{name: "put", usage: "put <local> [remote-dir]", summary: "Upload a file or directory", minArgs: 1, maxArgs: 2, run: runPut},
	{name: "rm", aliases: []string{"del"}, usage: "rm <path>", summary: "Delete a file or directory tree", minArgs: 1, maxArgs: 1, run: runRm},
	{name: "mv", aliases: []string{"rename"}, usage: "mv <old> <new>", summary: "Rename or move an entry", minArgs: 2, maxArgs: 2, run: runMv},
	{name: "mkdir", usage: "mkdir <path>", summary: "Create a directory", minArgs: 1, maxArgs: 1, run: runMkdir},
	{name: "launch", aliases: []string{"run"}, usage: "launch <xex>", summary: "Launch an executable", minArgs: 1, maxArgs: 1, run: runLaunch},
	{name: "reboot", usage: "reboot [cold]", summary: "Reboot to the dashboard, or cold reboot", maxArgs: 1, run: runReboot},
	{name: "shutdown", usage: "shutdown", summary: "Power the console off", run: runShutdown},
	{name: "synctime", usage: "synctime", summary: "Set the console clock to this machine's time", run: runSyncTime},
	{name: "screenshot", usage: "screenshot [file.png]", summary: "Save the screen as PNG (default <ip>-image.png)", maxArgs: 1, run: runScreenshot},
}

// lookupCommand finds a command by name or alias, case-insensitively.
func lookupCommand(name string) *command {
	name = strings.ToLower(name)
	for _, c := range commandTable {
		if c.name == name {
			return c
		}
		for _, a := range c.aliases {
			if a == name {
				return c
			}
		}
	}
	return nil
}

// checkArgs validates the argument count against the command's arity.
func (c *command) checkArgs(args []string) error {
	if len(args) < c.minArgs || len(args) > c.maxArgs {
		return fmt.Errorf("usage: %s", c.usage)
	}
	return nil
}

// splitArgs splits a REPL line into words. Double quotes group words with
// spaces; backslashes are literal since console paths use them.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		inWord  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			inWord = true
		case (r == ' ' || r == '\t') && !inQuote:
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// execute runs one REPL line.
func (s *session) execute(ctx context.Context, line string) error {
	words, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}

	cmd := lookupCommand(words[0])
	if cmd == nil {
		return fmt.Errorf("unknown command '%s'. Type 'help' for available commands", words[0])
	}
	if err := cmd.checkArgs(words[1:]); err != nil {
		return err
	}
	return cmd.run(ctx, s, words[1:])
}

func runConnect(ctx context.Context, s *session, args []string) error {
	if err := xbdm.ValidateAddress(args[0]); err != nil {
		return err
	}
	s.connect(args[0])
	fmt.Fprintf(s.out, "Using console %s\n", args[0])
	return nil
}

func runDiscover(ctx context.Context, s *session, args []string) error {
	if len(args) == 1 {
		found, err := s.discoverer.Lookup(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s\t%s\n", found.Name, found.Address)
		return nil
	}

	found, err := s.discoverer.Discover(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS")
	for _, c := range found {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Address)
	}
	return tw.Flush()
}

func runInfo(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}

	name, err := c.Name(ctx)
	if err != nil {
		return err
	}
	kind, err := c.Type(ctx)
	if err != nil {
		return err
	}
	title, err := c.RunningTitle(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Address:\t%s\n", c.Address())
	fmt.Fprintf(tw, "Name:\t%s\n", name)
	fmt.Fprintf(tw, "Type:\t%s\n", kind)
	fmt.Fprintf(tw, "Running:\t%s\n", title)
	return tw.Flush()
}

func runDrives(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}

	drives, err := c.Drives(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DRIVE\tLABEL\tFREE\tUSED\tTOTAL")
	for _, d := range drives {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.FriendlyName,
			formatBytes(d.FreeBytesAvailable), formatBytes(d.TotalUsedBytes), formatBytes(d.TotalBytes))
	}
	return tw.Flush()
}

func runCd(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	dir, err := s.resolve(args[0])
	if err != nil {
		return err
	}

	// Listing the directory proves it exists before switching to it.
	if _, err := c.Files(ctx, dir); err != nil {
		return fmt.Errorf("cd %s: %w", dir, err)
	}
	s.cwd = dir
	return nil
}

func runPwd(ctx context.Context, s *session, args []string) error {
	if s.cwd == "" {
		fmt.Fprintln(s.out, "(no current directory)")
		return nil
	}
	fmt.Fprintln(s.out, s.cwd)
	return nil
}

func runLs(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	dir, err := s.resolve(firstArg(args))
	if err != nil {
		return err
	}

	files, err := c.Files(ctx, dir)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, f := range files {
		size := formatBytes(f.Size)
		if f.IsDirectory {
			size = "<DIR>"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", formatTime(f.ModificationTime), size, f.Name)
	}
	return tw.Flush()
}

func runGet(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	remote, err := s.resolve(args[0])
	if err != nil {
		return err
	}

	entry, err := stat(ctx, c, remote)
	if err != nil {
		return err
	}

	local := strings.TrimSuffix(xbdm.ConsoleSeparator.Base(remote), ":")
	if len(args) == 2 {
		local = args[1]
	}

	if !entry.IsDirectory {
		file, err := c.Download(ctx, remote)
		if err != nil {
			return err
		}
		defer file.Close()

		if err := writeFile(local, entry.Name, file); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Downloaded %s to %s (%s)\n", remote, local, formatBytes(uint64(file.Size)))
		return nil
	}

	var count int
	if isZipPath(local) {
		count, err = zipTree(ctx, c, remote, local)
	} else {
		count, err = downloadTree(ctx, c, remote, local)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Downloaded %d files from %s to %s\n", count, remote, local)
	return nil
}

func runPut(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	remoteDir, err := s.resolve(secondArg(args))
	if err != nil {
		return err
	}

	local, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(local)
	if err != nil {
		return err
	}

	if info.IsDir() {
		fsys := os.DirFS(filepath.Dir(local))
		if err := c.UploadDirectory(ctx, fsys, filepath.Base(local), remoteDir); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Uploaded %s to %s\n", local, xbdm.ConsoleSeparator.Join(remoteDir, filepath.Base(local)))
		return nil
	}

	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(local)
	p := newProgress(name, info.Size())
	err = c.Upload(ctx, remoteDir, name, info.Size(), io.TeeReader(f, p))
	p.finish()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Uploaded %s to %s (%s)\n", local, xbdm.ConsoleSeparator.Join(remoteDir, name), formatBytes(uint64(info.Size())))
	return nil
}

func runRm(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	path, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	if xbdm.ConsoleSeparator.Dir(path) == "" {
		return fmt.Errorf("refusing to delete drive root %s", path)
	}

	entry, err := stat(ctx, c, path)
	if err != nil {
		return err
	}
	return c.Delete(ctx, path, entry.IsDirectory)
}

func runMv(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	oldPath, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	newPath, err := s.resolve(args[1])
	if err != nil {
		return err
	}
	return c.Rename(ctx, oldPath, newPath)
}

func runMkdir(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	path, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	return c.CreateDirectory(ctx, xbdm.ConsoleSeparator.Dir(path), xbdm.ConsoleSeparator.Base(path))
}

func runLaunch(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	path, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	return c.Launch(ctx, path)
}

func runReboot(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}

	cold := false
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "cold", "--cold":
			cold = true
		default:
			return fmt.Errorf("usage: reboot [cold]")
		}
	}
	return c.Reboot(ctx, cold)
}

func runShutdown(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	return c.Shutdown(ctx)
}

func runSyncTime(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}
	now := time.Now()
	if err := c.SyncTime(ctx, now); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Console clock set to %s\n", now.Format(time.RFC1123))
	return nil
}

func runScreenshot(ctx context.Context, s *session, args []string) error {
	c, err := s.requireConsole()
	if err != nil {
		return err
	}

	path := firstArg(args)
	if path == "" {
		path = c.Address() + "-image.png"
	}

	img, err := c.Screenshot(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %dx%d screenshot to %s\n", img.Bounds().Dx(), img.Bounds().Dy(), path)
	return nil
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func secondArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}
