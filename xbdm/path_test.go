package xbdm

import (
	"strings"
	"testing"
)

func TestConsoleJoin(t *testing.T) {
	tests := []struct {
		name string
		elem []string
		want string
	}{
		{"drive and file", []string{"HDD:", "default.xex"}, `HDD:\default.xex`},
		{"drive with separator", []string{`HDD:\`, "a"}, `HDD:\a`},
		{"drive only", []string{"E:"}, `E:\`},
		{"nested", []string{`E:\Games`, `Halo\maps`, "level.map"}, `E:\Games\Halo\maps\level.map`},
		{"duplicate separators", []string{`E:\\Games\`, `\x`}, `E:\Games\x`},
		{"dot dot", []string{`E:\Games\Halo`, "..", "Gears"}, `E:\Games\Gears`},
		{"dot dot stops at drive", []string{`E:\`, "..", "x"}, `E:\x`},
		{"relative", []string{"a", "b"}, `a\b`},
		{"empty", []string{""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConsoleSeparator.Join(tt.elem...); got != tt.want {
				t.Errorf("Join(%q) = %q, want %q", tt.elem, got, tt.want)
			}
		})
	}
}

func TestConsoleDirBase(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		base string
	}{
		{`HDD:\Content\default.xex`, `HDD:\Content`, "default.xex"},
		{`E:\game.xex`, `E:\`, "game.xex"},
		{`E:\Games\`, `E:\`, "Games"},
		{`E:\`, "", "E:"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ConsoleSeparator.Dir(tt.path); got != tt.dir {
				t.Errorf("Dir = %q, want %q", got, tt.dir)
			}
			if got := ConsoleSeparator.Base(tt.path); got != tt.base {
				t.Errorf("Base = %q, want %q", got, tt.base)
			}
		})
	}
}

func TestRel(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		target string
		want   string
		ok     bool
	}{
		{"child", `E:\Games`, `E:\Games\Halo\default.xex`, `Halo\default.xex`, true},
		{"case insensitive", `e:\games`, `E:\Games\x`, "x", true},
		{"same", `E:\Games`, `E:\Games`, "", true},
		{"outside", `E:\Games`, `E:\Music\x`, "", false},
		{"shorter", `E:\Games\Halo`, `E:\Games`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ConsoleSeparator.Rel(tt.base, tt.target)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Rel = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	if got := HostSeparator.Convert("saves/slot1/data.bin", ConsoleSeparator); got != `saves\slot1\data.bin` {
		t.Errorf("host to console = %q", got)
	}
	if got := ConsoleSeparator.Convert(`Halo\maps`, HostSeparator); got != "Halo/maps" {
		t.Errorf("console to host = %q", got)
	}
	if got := HostSeparator.Convert(".", ConsoleSeparator); got != "" {
		t.Errorf("dot = %q, want empty", got)
	}
}

func TestSplitKeepsDriveDesignators(t *testing.T) {
	got := ConsoleSeparator.Split(`DEVKIT:\a\.\b\..\c`)
	want := []string{"DEVKIT:", "a", "c"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}
