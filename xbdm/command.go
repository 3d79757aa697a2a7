package xbdm

import (
	"fmt"
	"strings"
)

// CommandType represents the type of XBDM command.
type CommandType int

const (
	// Identity
	CmdDbgName CommandType = iota
	CmdConsoleType
	CmdXbeInfoRunning

	// Storage
	CmdDriveList
	CmdDriveFreeSpace
	CmdDirList

	// File transfer
	CmdGetFile
	CmdSendFile

	// File management
	CmdDelete
	CmdRename
	CmdMkdir

	// Power and titles
	CmdMagicBoot
	CmdShutdown

	// Misc
	CmdSetSysTime
	CmdScreenshot
	CmdBye
)

// Command represents one request line sent to the debug monitor.
// Use the constructor functions (NewDirListCommand, NewGetFileCommand, etc.)
// to create Command instances.
type Command struct {
	Type CommandType

	// Fields used by various commands (only relevant fields are populated)
	Path      string // For drivefreespace, dirlist, getfile, sendfile, delete, mkdir, rename
	NewPath   string // For rename
	Directory string // For delete (dir flag) and magicboot
	IsDir     bool   // For delete
	Length    uint64 // For sendfile
	Cold      bool   // For magicboot
	Clock     uint64 // For setsystime, a FILETIME
}

// NewDbgNameCommand creates a command returning the console name.
func NewDbgNameCommand() Command {
	return Command{Type: CmdDbgName}
}

// NewConsoleTypeCommand creates a command returning the console type.
func NewConsoleTypeCommand() Command {
	return Command{Type: CmdConsoleType}
}

// NewXbeInfoRunningCommand creates a command describing the running title.
func NewXbeInfoRunningCommand() Command {
	return Command{Type: CmdXbeInfoRunning}
}

// NewDriveListCommand creates a command listing the mounted volumes.
func NewDriveListCommand() Command {
	return Command{Type: CmdDriveList}
}

// NewDriveFreeSpaceCommand creates a command querying the space of a drive.
// The drive name is given without colon, e.g. "HDD".
func NewDriveFreeSpaceCommand(drive string) Command {
	return Command{Type: CmdDriveFreeSpace, Path: strings.TrimSuffix(drive, ":")}
}

// NewDirListCommand creates a command listing a directory.
func NewDirListCommand(path string) Command {
	return Command{Type: CmdDirList, Path: path}
}

// NewGetFileCommand creates a binary download command.
func NewGetFileCommand(path string) Command {
	return Command{Type: CmdGetFile, Path: path}
}

// NewSendFileCommand creates an upload announcement for length bytes.
func NewSendFileCommand(path string, length uint64) Command {
	return Command{Type: CmdSendFile, Path: path, Length: length}
}

// NewDeleteCommand creates a non-recursive delete command.
func NewDeleteCommand(path string, isDir bool) Command {
	return Command{Type: CmdDelete, Path: path, IsDir: isDir}
}

// NewRenameCommand creates a rename/move command.
func NewRenameCommand(oldPath, newPath string) Command {
	return Command{Type: CmdRename, Path: oldPath, NewPath: newPath}
}

// NewMkdirCommand creates a directory creation command.
func NewMkdirCommand(path string) Command {
	return Command{Type: CmdMkdir, Path: path}
}

// NewMagicBootCommand creates a warm reboot command. When title is not
// empty the console launches it with directory as working directory.
func NewMagicBootCommand(title, directory string) Command {
	return Command{Type: CmdMagicBoot, Path: title, Directory: directory}
}

// NewColdRebootCommand creates a cold reboot command.
func NewColdRebootCommand() Command {
	return Command{Type: CmdMagicBoot, Cold: true}
}

// NewShutdownCommand creates a power-off command.
func NewShutdownCommand() Command {
	return Command{Type: CmdShutdown}
}

// NewSetSysTimeCommand creates a clock command from a FILETIME value.
func NewSetSysTimeCommand(filetime uint64) Command {
	return Command{Type: CmdSetSysTime, Clock: filetime}
}

// NewScreenshotCommand creates a framebuffer capture command.
func NewScreenshotCommand() Command {
	return Command{Type: CmdScreenshot}
}

// NewByeCommand creates the session terminator.
func NewByeCommand() Command {
	return Command{Type: CmdBye}
}

// Format returns the command formatted for transmission over the protocol.
// This does not include the trailing line delimiter.
func (c Command) Format() string {
	switch c.Type {
	case CmdDbgName:
		return "dbgname"
	case CmdConsoleType:
		return "consoletype"
	case CmdXbeInfoRunning:
		return "xbeinfo running"
	case CmdDriveList:
		return "drivelist"
	case CmdDriveFreeSpace:
		return fmt.Sprintf(`drivefreespace name="%s:\"`, c.Path)
	case CmdDirList:
		return fmt.Sprintf(`dirlist name="%s"`, c.Path)
	case CmdGetFile:
		return fmt.Sprintf(`getfile name="%s"`, c.Path)
	case CmdSendFile:
		return fmt.Sprintf(`sendfile name="%s" length=0x%x`, c.Path, c.Length)
	case CmdDelete:
		if c.IsDir {
			return fmt.Sprintf(`delete name="%s" dir`, c.Path)
		}
		return fmt.Sprintf(`delete name="%s"`, c.Path)
	case CmdRename:
		return fmt.Sprintf(`rename name="%s" newname="%s"`, c.Path, c.NewPath)
	case CmdMkdir:
		return fmt.Sprintf(`mkdir name="%s"`, c.Path)
	case CmdMagicBoot:
		if c.Cold {
			return "magicboot COLD"
		}
		if c.Path == "" {
			return "magicboot"
		}
		return fmt.Sprintf(`magicboot title="%s" directory="%s"`, c.Path, c.Directory)
	case CmdShutdown:
		return "shutdown"
	case CmdSetSysTime:
		return fmt.Sprintf("setsystime clockhi=0x%x clocklo=0x%x", uint32(c.Clock>>32), uint32(c.Clock))
	case CmdScreenshot:
		return "screenshot"
	case CmdBye:
		return ByeCommand
	default:
		return ""
	}
}

// FormatLine returns the command with the line delimiter appended.
func (c Command) FormatLine() string {
	return c.Format() + LineDelimiter
}

// Name returns the command word, used for logging.
func (c Command) Name() string {
	line := c.Format()
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}
