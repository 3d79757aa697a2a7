package xbdm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Name Answering Protocol packet types.
const (
	napLookup   = 0x01 // forward lookup of one name
	napReply    = 0x02
	napWildcard = 0x03 // every console answers
)

// Discovery defaults.
const (
	// DiscoveryRetries is how many broadcasts are sent before giving up.
	DiscoveryRetries = 3

	// DiscoveryWindow is how long replies are collected after a broadcast.
	DiscoveryWindow = 500 * time.Millisecond

	// maxConsoleName is the longest name a NAP packet can carry.
	maxConsoleName = 255
)

// ErrNoConsoleFound indicates no console answered a discovery broadcast.
var ErrNoConsoleFound = errors.New("no console answered")

// DiscoveredConsole is a console that answered a discovery broadcast.
type DiscoveredConsole struct {
	Name    string
	Address string
}

// Discoverer broadcasts Name Answering Protocol requests.
type Discoverer struct {
	// Target is the host:port requests are sent to.
	Target string
	// Retries is the number of broadcasts before ErrNoConsoleFound.
	Retries int
	// Window is how long replies are collected after each broadcast.
	Window time.Duration
}

// NewDiscoverer creates a Discoverer broadcasting on the local network.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		Target:  net.JoinHostPort("255.255.255.255", strconv.Itoa(Port)),
		Retries: DiscoveryRetries,
		Window:  DiscoveryWindow,
	}
}

// Discover returns every console that answers a wildcard request.
func (d *Discoverer) Discover(ctx context.Context) ([]DiscoveredConsole, error) {
	return d.broadcast(ctx, []byte{napWildcard, 0x00}, "")
}

// Lookup returns the address of the console called name.
func (d *Discoverer) Lookup(ctx context.Context, name string) (DiscoveredConsole, error) {
	if name == "" || len(name) > maxConsoleName {
		return DiscoveredConsole{}, &ValidationError{Field: "console name", Value: name, Message: "must be 1 to 255 bytes"}
	}

	packet := append([]byte{napLookup, byte(len(name))}, name...)
	found, err := d.broadcast(ctx, packet, name)
	if err != nil {
		return DiscoveredConsole{}, err
	}
	return found[0], nil
}

// broadcast sends packet up to Retries times and returns the replies of the
// first window that produced any. When want is set only replies carrying
// that name are kept.
func (d *Discoverer) broadcast(ctx context.Context, packet []byte, want string) ([]DiscoveredConsole, error) {
	target, err := net.ResolveUDPAddr("udp4", d.Target)
	if err != nil {
		return nil, &ValidationError{Field: "discovery target", Value: d.Target, Message: err.Error()}
	}

	pc, err := listenDiscovery(ctx)
	if err != nil {
		return nil, err
	}
	defer pc.Close()

	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()

	retries := max(d.Retries, 1)
	for attempt := 0; attempt < retries; attempt++ {
		if _, err := pc.WriteTo(packet, target); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TransferError{Op: "write", Err: err}
		}

		found, err := collectReplies(pc, d.Window, want)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, ErrNoConsoleFound
}

func collectReplies(pc net.PacketConn, window time.Duration, want string) ([]DiscoveredConsole, error) {
	if err := pc.SetReadDeadline(time.Now().Add(window)); err != nil {
		return nil, err
	}

	var found []DiscoveredConsole
	seen := make(map[string]bool)
	buf := make([]byte, 2+maxConsoleName)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return found, nil
			}
			return found, &TransferError{Op: "read", Err: err}
		}

		name, ok := parseReply(buf[:n])
		if !ok || (want != "" && name != want) {
			continue
		}
		addr, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		ip := addr.IP.String()
		if seen[ip] {
			continue
		}
		seen[ip] = true
		found = append(found, DiscoveredConsole{Name: name, Address: ip})
	}
}

// parseReply decodes [0x02][len][name].
func parseReply(p []byte) (string, bool) {
	if len(p) < 2 || p[0] != napReply {
		return "", false
	}
	n := int(p[1])
	if len(p) < 2+n {
		return "", false
	}
	return string(p[2 : 2+n]), true
}

// listenDiscovery opens the socket requests are sent from. The net package
// enables SO_BROADCAST on UDP sockets.
func listenDiscovery(ctx context.Context) (net.PacketConn, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	return pc, nil
}
