package xbdm

import (
	"net/netip"
	"strings"
)

// ValidateAddress checks that address is a dotted-quad IPv4 string such as
// "192.168.1.20". Host names, IPv6 and ports are rejected.
func ValidateAddress(address string) error {
	if address == "" {
		return &ValidationError{Field: "IP address", Message: "address is empty"}
	}
	if strings.Count(address, ".") != 3 {
		return &ValidationError{Field: "IP address", Value: address, Message: "expected four dot separated segments"}
	}
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return &ValidationError{Field: "IP address", Value: address, Message: "not a valid IPv4 address"}
	}
	return nil
}

// IsValidAddress reports whether address passes ValidateAddress.
func IsValidAddress(address string) bool {
	return ValidateAddress(address) == nil
}
