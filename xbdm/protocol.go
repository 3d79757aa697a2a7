package xbdm

import (
	"fmt"
	"strings"
	"time"
)

// Protocol constants.
const (
	// Port is the TCP (and UDP discovery) port the debug monitor listens on.
	Port = 730

	// LineDelimiter terminates every text line in both directions.
	LineDelimiter = "\r\n"

	// MultilineTerminator is the record that ends a multiline response.
	MultilineTerminator = "."

	// ByeCommand is the session terminator sent once per exchange.
	ByeCommand = "bye"

	// ByePayload is the payload of the closing Ok status line.
	ByePayload = "bye"

	// statusPrefixLength is the length of "NNN- " in front of every payload.
	statusPrefixLength = 5

	// MaxLineLength is the maximum length of a protocol line in bytes.
	MaxLineLength = 64 * 1024

	// ConnectTimeout is the default timeout for establishing connections.
	ConnectTimeout = 3 * time.Second

	// IdleTimeout is the default time a pending read may wait without any
	// byte arriving before it fails.
	IdleTimeout = 30 * time.Second

	// HighWaterMark bounds buffered bytes while no read is pending.
	HighWaterMark = 4 * 1024 * 1024
)

// Status is a three digit XBDM status code.
type Status int

// Status codes used by the protocol.
const (
	StatusOK                       Status = 200
	StatusConnected                Status = 201
	StatusMultilineResponseFollows Status = 202
	StatusBinaryResponseFollows    Status = 203
	StatusSendBinaryData           Status = 204
	StatusFileAlreadyExists        Status = 410
)

// String returns the name of well known codes, or the bare number.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Ok"
	case StatusConnected:
		return "Connected"
	case StatusMultilineResponseFollows:
		return "MultilineResponseFollows"
	case StatusBinaryResponseFollows:
		return "BinaryResponseFollows"
	case StatusSendBinaryData:
		return "SendBinaryData"
	case StatusFileAlreadyExists:
		return "FileAlreadyExists"
	default:
		return fmt.Sprintf("%03d", int(s))
	}
}

// Code returns the status formatted as it appears on the wire.
func (s Status) Code() string {
	return fmt.Sprintf("%03d", int(s))
}

// filetimeEpochOffset is the number of 100ns intervals between
// 1601-01-01 and 1970-01-01.
const filetimeEpochOffset = 116_444_736_000_000_000

// FiletimeToTime converts a Windows FILETIME to a time.Time in UTC.
func FiletimeToTime(ft uint64) time.Time {
	ticks := int64(ft) - filetimeEpochOffset
	return time.Unix(ticks/10_000_000, (ticks%10_000_000)*100).UTC()
}

// TimeToFiletime converts t to a Windows FILETIME.
func TimeToFiletime(t time.Time) uint64 {
	return uint64(t.UnixNano()/100 + filetimeEpochOffset)
}

// DriveFriendlyName returns the label the dashboard shows for a volume.
func DriveFriendlyName(driveName string) string {
	switch strings.TrimSuffix(driveName, ":") {
	case "DEVKIT", "E":
		return "Game Development Volume"
	case "HDD":
		return "Retail Hard Drive Emulation"
	case "Y":
		return "Xbox360 Dashboard Volume"
	case "Z":
		return "Devkit Drive"
	case "D", "GAME":
		return "Active Title Media"
	default:
		return "Volume"
	}
}
