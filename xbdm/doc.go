// Package xbdm implements a client for the text/binary protocol spoken by
// the Xbox debug monitor (XBDM) on development consoles.
//
// # Protocol Overview
//
// The debug monitor listens on TCP port 730. Every operation opens its own
// connection, issues one command and closes the connection afterwards.
//
//	Server greeting:          201- connected\r\n
//	Request (client->server): <command> [name="value" | name=value ...]\r\n
//	Status line:              NNN- <payload>\r\n
//	Multiline records:        <record>\r\n ... .\r\n
//	Binary payload:           <u32 little-endian length><raw bytes>
//	Session terminator:       bye\r\n  ->  200- bye\r\n
//
// Example session:
//
//	SRV: 201- connected
//	CLI: drivelist
//	CLI: bye
//	SRV: 202- multiline response follows
//	SRV: drivename="E"
//	SRV: drivename="HDD"
//	SRV: .
//	SRV: 200- bye
//
// # Basic Usage
//
//	console := xbdm.NewConsole("192.168.1.20")
//
//	drives, err := console.Drives(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range drives {
//	    fmt.Printf("%s %d bytes free\n", d.Name, d.FreeBytesAvailable)
//	}
//
// # Transfers
//
// Download returns a stream that must be closed:
//
//	file, err := console.Download(ctx, `HDD:\Content\default.xex`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer file.Close()
//	io.Copy(dst, file)
//
// Upload pushes exactly size bytes from any io.Reader:
//
//	err := console.Upload(ctx, `HDD:\Content`, "default.xex", info.Size(), f)
//
// # Errors
//
// Failures are reported with typed errors that work with errors.Is and
// errors.As: *ValidationError for bad input caught before any traffic,
// *ConnectError, *ProtocolError for an unexpected status code,
// *MalformedResponseError, *TransferError and *UnsupportedFormatError.
// ErrClosedByRemote and ErrIdleTimeout distinguish the two ways a pending
// read can end without data.
//
// # Discovery
//
// Consoles on the local network answer Name Answering Protocol broadcasts:
//
//	found, err := xbdm.NewDiscoverer().Discover(ctx)
package xbdm
