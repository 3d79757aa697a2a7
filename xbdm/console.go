package xbdm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Console is the operation-level API for one development console.
//
// Every operation opens its own connection and closes it before returning
// (downloads close when their stream is closed). Operations on the same
// Console may run concurrently, but the console only accepts a handful of
// simultaneous connections.
type Console struct {
	address        string
	port           int
	connectTimeout time.Duration
	idleTimeout    time.Duration
	dial           Dialer
	log            zerolog.Logger
}

// Option configures a Console.
type Option func(*Console)

// WithPort overrides the debug monitor port.
func WithPort(port int) Option {
	return func(c *Console) { c.port = port }
}

// WithConnectTimeout bounds the TCP connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Console) { c.connectTimeout = d }
}

// WithIdleTimeout bounds how long a pending read may see no data.
// Zero disables the check.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Console) { c.idleTimeout = d }
}

// WithDialer replaces the function used to open connections.
func WithDialer(dial Dialer) Option {
	return func(c *Console) { c.dial = dial }
}

// WithLogger sets the logger operations report to.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Console) { c.log = log }
}

// NewConsole creates a Console for the dotted-quad IPv4 address. The
// address is validated by each operation, not here.
func NewConsole(address string, opts ...Option) *Console {
	c := &Console{
		address:        strings.TrimSpace(address),
		port:           Port,
		connectTimeout: ConnectTimeout,
		idleTimeout:    IdleTimeout,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the console's IP address.
func (c *Console) Address() string {
	return c.address
}

// open validates the address, connects and consumes the greeting.
func (c *Console) open(ctx context.Context, op string) (*Conn, error) {
	if err := ValidateAddress(c.address); err != nil {
		return nil, err
	}

	log := c.log.With().
		Str("console", c.address).
		Str("op", op).
		Str("id", uuid.NewString()).
		Logger()

	target := net.JoinHostPort(c.address, strconv.Itoa(c.port))
	conn, err := Dial(ctx, c.dial, target, c.connectTimeout, c.idleTimeout, log)
	if err != nil {
		log.Debug().Err(err).Msg("connect failed")
		return nil, err
	}
	if _, err := conn.ReadHeader(StatusConnected); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// sendCommand runs one text exchange and returns the header payload, or
// the joined records when expect is StatusMultilineResponseFollows.
func (c *Console) sendCommand(ctx context.Context, cmd Command, expect Status) (string, error) {
	lines, header, err := c.exchange(ctx, cmd, expect)
	if err != nil {
		return "", err
	}
	if expect == StatusMultilineResponseFollows {
		return JoinLines(lines), nil
	}
	return header, nil
}

// sendMultiline runs one multiline exchange and returns its records.
func (c *Console) sendMultiline(ctx context.Context, cmd Command) ([]string, error) {
	lines, _, err := c.exchange(ctx, cmd, StatusMultilineResponseFollows)
	return lines, err
}

func (c *Console) exchange(ctx context.Context, cmd Command, expect Status) ([]string, string, error) {
	conn, err := c.open(ctx, cmd.Name())
	if err != nil {
		return nil, "", err
	}
	defer conn.Close()

	if err := conn.WriteCommand(cmd, true); err != nil {
		return nil, "", err
	}
	header, err := conn.ReadHeader(expect)
	if err != nil {
		return nil, "", err
	}

	var lines []string
	if expect == StatusMultilineResponseFollows {
		if lines, err = conn.ReadMultiline(); err != nil {
			return nil, "", err
		}
	}
	if err := conn.ReadBye(); err != nil {
		return nil, "", err
	}
	return lines, header, nil
}

// Name returns the debug name of the console.
func (c *Console) Name(ctx context.Context) (string, error) {
	return c.sendCommand(ctx, NewDbgNameCommand(), StatusOK)
}

// Type returns the console type, e.g. "devkit" or "testkit".
func (c *Console) Type(ctx context.Context) (string, error) {
	return c.sendCommand(ctx, NewConsoleTypeCommand(), StatusOK)
}

// RunningTitle returns the path of the executable currently running.
func (c *Console) RunningTitle(ctx context.Context) (string, error) {
	lines, err := c.sendMultiline(ctx, NewXbeInfoRunningCommand())
	if err != nil {
		return "", err
	}
	return StringProperty(JoinLines(lines), "name")
}

// Drive is one mounted volume with its space accounting.
type Drive struct {
	Name               string // with trailing colon, e.g. "HDD:"
	FriendlyName       string
	FreeBytesAvailable uint64
	TotalBytes         uint64
	TotalFreeBytes     uint64
	TotalUsedBytes     uint64
}

// Drives lists the mounted volumes. Space is queried with one extra
// exchange per drive.
func (c *Console) Drives(ctx context.Context) ([]Drive, error) {
	lines, err := c.sendMultiline(ctx, NewDriveListCommand())
	if err != nil {
		return nil, err
	}

	drives := make([]Drive, 0, len(lines))
	for _, line := range lines {
		name, err := StringProperty(line, "drivename")
		if err != nil {
			return nil, err
		}
		drive, err := c.freeSpace(ctx, name)
		if err != nil {
			return nil, err
		}
		drives = append(drives, drive)
	}
	return drives, nil
}

func (c *Console) freeSpace(ctx context.Context, name string) (Drive, error) {
	response, err := c.sendCommand(ctx, NewDriveFreeSpaceCommand(name), StatusMultilineResponseFollows)
	if err != nil {
		return Drive{}, err
	}

	drive := Drive{Name: name + ":", FriendlyName: DriveFriendlyName(name)}
	fields := []struct {
		property string
		dst      *uint64
	}{
		{"freetocaller", &drive.FreeBytesAvailable},
		{"totalbytes", &drive.TotalBytes},
		{"totalfreebytes", &drive.TotalFreeBytes},
	}
	for _, f := range fields {
		if *f.dst, err = Uint64Property(response, f.property); err != nil {
			return Drive{}, err
		}
	}
	if drive.TotalBytes > drive.FreeBytesAvailable {
		drive.TotalUsedBytes = drive.TotalBytes - drive.FreeBytesAvailable
	}
	return drive, nil
}

// File is one directory entry.
type File struct {
	Name             string
	Size             uint64
	IsDirectory      bool
	IsXex            bool
	CreationTime     time.Time
	ModificationTime time.Time
}

// directoryMarker ends the record of a directory entry.
const directoryMarker = " directory"

// ParseFile parses one dirlist record.
func ParseFile(line string) (File, error) {
	name, err := StringProperty(line, "name")
	if err != nil {
		return File{}, err
	}
	size, err := Uint64Property(line, "size")
	if err != nil {
		return File{}, err
	}
	created, err := Uint64Property(line, "create")
	if err != nil {
		return File{}, err
	}
	changed, err := Uint64Property(line, "change")
	if err != nil {
		return File{}, err
	}

	return File{
		Name:             name,
		Size:             size,
		IsDirectory:      strings.HasSuffix(line, directoryMarker),
		IsXex:            strings.EqualFold(extension(name), ".xex"),
		CreationTime:     FiletimeToTime(created),
		ModificationTime: FiletimeToTime(changed),
	}, nil
}

func extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

// Files lists dirPath, directories first, then by name.
func (c *Console) Files(ctx context.Context, dirPath string) ([]File, error) {
	if dirPath == "" {
		return nil, &ValidationError{Field: "directory path", Message: "path is empty"}
	}

	lines, err := c.sendMultiline(ctx, NewDirListCommand(dirPath))
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(lines))
	for _, line := range lines {
		f, err := ParseFile(line)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsDirectory != files[j].IsDirectory {
			return files[i].IsDirectory
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Delete removes path. Directories are emptied first, depth-first, because
// the console only deletes empty directories; the first failing child
// aborts the whole operation.
func (c *Console) Delete(ctx context.Context, path string, isDirectory bool) error {
	if path == "" {
		return &ValidationError{Field: "path", Message: "path is empty"}
	}
	if err := ValidateAddress(c.address); err != nil {
		return err
	}

	if isDirectory {
		files, err := c.Files(ctx, path)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := c.Delete(ctx, ConsoleSeparator.Join(path, f.Name), f.IsDirectory); err != nil {
				return err
			}
		}
	}

	_, err := c.sendCommand(ctx, NewDeleteCommand(path, isDirectory), StatusOK)
	return err
}

// Rename moves oldPath to newPath.
func (c *Console) Rename(ctx context.Context, oldPath, newPath string) error {
	if oldPath == "" || newPath == "" {
		return &ValidationError{Field: "path", Message: "old and new path are required"}
	}
	_, err := c.sendCommand(ctx, NewRenameCommand(oldPath, newPath), StatusOK)
	return err
}

// CreateDirectory creates name inside parentPath. An existing entry with
// that name yields an error matching ErrAlreadyExists.
func (c *Console) CreateDirectory(ctx context.Context, parentPath, name string) error {
	if name == "" {
		return &ValidationError{Field: "directory name", Message: "name is empty"}
	}

	fullPath := ConsoleSeparator.Join(parentPath, name)
	_, err := c.sendCommand(ctx, NewMkdirCommand(fullPath), StatusOK)

	var perr *ProtocolError
	if errors.As(err, &perr) && perr.Actual == StatusFileAlreadyExists {
		return fmt.Errorf("a file or directory with the name %q already exists: %w", name, ErrAlreadyExists)
	}
	return err
}

// Launch starts the executable at filePath with its parent directory as
// working directory.
func (c *Console) Launch(ctx context.Context, filePath string) error {
	if filePath == "" {
		return &ValidationError{Field: "file path", Message: "path is empty"}
	}
	dir := ConsoleSeparator.Dir(filePath)
	_, err := c.sendCommand(ctx, NewMagicBootCommand(filePath, dir), StatusOK)
	return err
}

// Reboot restarts the console, to the dashboard when cold is false.
func (c *Console) Reboot(ctx context.Context, cold bool) error {
	cmd := NewMagicBootCommand("", "")
	if cold {
		cmd = NewColdRebootCommand()
	}
	return c.powerCommand(ctx, cmd)
}

// Shutdown powers the console off.
func (c *Console) Shutdown(ctx context.Context) error {
	return c.powerCommand(ctx, NewShutdownCommand())
}

// powerCommand treats the console dropping the connection after the
// command went out as the expected outcome of a reboot or shutdown. A drop
// before that is still an error.
func (c *Console) powerCommand(ctx context.Context, cmd Command) error {
	conn, err := c.open(ctx, cmd.Name())
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteCommand(cmd, true); err != nil {
		return err
	}
	if _, err = conn.ReadHeader(StatusOK); err == nil {
		err = conn.ReadBye()
	}
	if errors.Is(err, ErrClosedByRemote) {
		c.log.Info().Str("console", c.address).Str("command", cmd.Format()).
			Msg("console closed the connection")
		return nil
	}
	return err
}

// SyncTime sets the console clock to t.
func (c *Console) SyncTime(ctx context.Context, t time.Time) error {
	_, err := c.sendCommand(ctx, NewSetSysTimeCommand(TimeToFiletime(t)), StatusOK)
	return err
}
