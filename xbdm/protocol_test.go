package xbdm

import (
	"testing"
	"time"
)

func TestProtocolConstants(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"LineDelimiter", LineDelimiter, "\r\n"},
		{"MultilineTerminator", MultilineTerminator, "."},
		{"ByeCommand", ByeCommand, "bye"},
		{"ByePayload", ByePayload, "bye"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}

	if Port != 730 {
		t.Errorf("Port = %d, want 730", Port)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		code   string
		name   string
	}{
		{StatusOK, "200", "Ok"},
		{StatusConnected, "201", "Connected"},
		{StatusMultilineResponseFollows, "202", "MultilineResponseFollows"},
		{StatusBinaryResponseFollows, "203", "BinaryResponseFollows"},
		{StatusSendBinaryData, "204", "SendBinaryData"},
		{StatusFileAlreadyExists, "410", "FileAlreadyExists"},
		{Status(405), "405", "405"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := tt.status.Code(); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
			if got := tt.status.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestFiletime(t *testing.T) {
	epoch := FiletimeToTime(filetimeEpochOffset)
	if !epoch.Equal(time.Unix(0, 0)) {
		t.Errorf("unix epoch = %v", epoch)
	}

	want := time.Date(2021, 9, 14, 12, 30, 45, 123456700, time.UTC)
	got := FiletimeToTime(TimeToFiletime(want))
	if !got.Equal(want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

func TestDriveFriendlyName(t *testing.T) {
	tests := map[string]string{
		"HDD":    "Retail Hard Drive Emulation",
		"HDD:":   "Retail Hard Drive Emulation",
		"E":      "Game Development Volume",
		"DEVKIT": "Game Development Volume",
		"Q":      "Volume",
	}
	for name, want := range tests {
		if got := DriveFriendlyName(name); got != want {
			t.Errorf("DriveFriendlyName(%q) = %q, want %q", name, got, want)
		}
	}
}
