//go:build linux || darwin

package xbdm

import (
	"context"
	"net"
	"syscall"
	"testing"
)

func TestListenDiscoveryBroadcast(t *testing.T) {
	pc, err := listenDiscovery(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pc.Close()

	raw, err := pc.(*net.UDPConn).SyscallConn()
	if err != nil {
		t.Fatalf("SyscallConn: %v", err)
	}

	var value int
	var serr error
	if err := raw.Control(func(fd uintptr) {
		value, serr = syscall.GetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST)
	}); err != nil {
		t.Fatalf("Control: %v", err)
	}
	if serr != nil {
		t.Fatalf("getsockopt: %v", serr)
	}
	if value == 0 {
		t.Error("SO_BROADCAST is not set on the discovery socket")
	}
}
