package xbdm

import "testing"

func TestCommandFormatting(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected string
	}{
		{"DbgName", NewDbgNameCommand(), "dbgname"},
		{"ConsoleType", NewConsoleTypeCommand(), "consoletype"},
		{"XbeInfoRunning", NewXbeInfoRunningCommand(), "xbeinfo running"},
		{"DriveList", NewDriveListCommand(), "drivelist"},
		{"DriveFreeSpace", NewDriveFreeSpaceCommand("HDD"), `drivefreespace name="HDD:\"`},
		{"DriveFreeSpace with colon", NewDriveFreeSpaceCommand("E:"), `drivefreespace name="E:\"`},
		{"DirList", NewDirListCommand(`HDD:\Content`), `dirlist name="HDD:\Content"`},
		{"GetFile", NewGetFileCommand(`E:\a.bin`), `getfile name="E:\a.bin"`},
		{"SendFile", NewSendFileCommand(`E:\a.bin`, 26), `sendfile name="E:\a.bin" length=0x1a`},
		{"Delete file", NewDeleteCommand(`E:\a.bin`, false), `delete name="E:\a.bin"`},
		{"Delete directory", NewDeleteCommand(`E:\dir`, true), `delete name="E:\dir" dir`},
		{"Rename", NewRenameCommand(`E:\a`, `E:\b`), `rename name="E:\a" newname="E:\b"`},
		{"Mkdir", NewMkdirCommand(`E:\new`), `mkdir name="E:\new"`},
		{"MagicBoot", NewMagicBootCommand("", ""), "magicboot"},
		{"MagicBoot title", NewMagicBootCommand(`E:\g\default.xex`, `E:\g`), `magicboot title="E:\g\default.xex" directory="E:\g"`},
		{"ColdReboot", NewColdRebootCommand(), "magicboot COLD"},
		{"Shutdown", NewShutdownCommand(), "shutdown"},
		{"SetSysTime", NewSetSysTimeCommand(0x01d7c1a2_12345678), "setsystime clockhi=0x1d7c1a2 clocklo=0x12345678"},
		{"Screenshot", NewScreenshotCommand(), "screenshot"},
		{"Bye", NewByeCommand(), "bye"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Format(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
			if got := tt.cmd.FormatLine(); got != tt.expected+"\r\n" {
				t.Errorf("FormatLine = %q", got)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{NewDirListCommand(`E:\`), "dirlist"},
		{NewXbeInfoRunningCommand(), "xbeinfo"},
		{NewShutdownCommand(), "shutdown"},
	}
	for _, tt := range tests {
		if got := tt.cmd.Name(); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.cmd.Format(), got, tt.want)
		}
	}
}
