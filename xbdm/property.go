package xbdm

import (
	"strconv"
	"strings"
)

// Property lines are space separated tokens of the form name="string" or
// name=integer, e.g.
//
//	name="default.xex" sizehi=0x0 sizelo=0x1b000 createhi=0x1d7c1a2 ...

// findProperty returns the index just past name in line. The name must
// start a token; among those occurrences the first one followed by '=' wins.
func findProperty(line, name string) (int, error) {
	if name == "" {
		return 0, newMalformedError(line, "empty property name")
	}

	found := false
	for from := 0; from <= len(line)-len(name); {
		i := strings.Index(line[from:], name)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(name)
		from = start + 1

		if start > 0 && !isSeparator(line[start-1]) {
			continue
		}
		found = true
		if end < len(line) && line[end] == '=' {
			return end, nil
		}
	}

	if found {
		return 0, newMalformedError(line, "expected '=' to be right after the end of %s", name)
	}
	return 0, newMalformedError(line, "property '%s' not found", name)
}

// isSeparator reports whether b can precede a property name or end an
// integer value. Multiline bodies are joined with CRLF, so line breaks count.
func isSeparator(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', ',':
		return true
	}
	return false
}

// StringProperty extracts the quoted value of name="value" from line.
func StringProperty(line, name string) (string, error) {
	end, err := findProperty(line, name)
	if err != nil {
		return "", err
	}

	quote := end + 1
	if quote >= len(line) || line[quote] != '"' {
		return "", newMalformedError(line, "expected first '\"' to be right after '=' of %s", name)
	}
	closing := strings.IndexByte(line[quote+1:], '"')
	if closing < 0 {
		return "", newMalformedError(line, "expected a second '\"' for %s", name)
	}
	return line[quote+1 : quote+1+closing], nil
}

// IntegerProperty extracts the value of name=value from line. The value ends
// at the next whitespace or comma, or at the end of the line. Decimal and
// 0x-prefixed hex are accepted.
func IntegerProperty(line, name string) (uint64, error) {
	end, err := findProperty(line, name)
	if err != nil {
		return 0, err
	}

	rest := line[end+1:]
	if i := strings.IndexFunc(rest, func(r rune) bool {
		return r < 0x80 && isSeparator(byte(r))
	}); i >= 0 {
		rest = rest[:i]
	}

	value, err := parseInteger(rest)
	if err != nil {
		return 0, newMalformedError(line, "couldn't convert '%s' of %s into a number", rest, name)
	}
	return value, nil
}

// Uint32Property is IntegerProperty restricted to 32 bit values.
func Uint32Property(line, name string) (uint32, error) {
	value, err := IntegerProperty(line, name)
	if err != nil {
		return 0, err
	}
	if value > 0xFFFFFFFF {
		return 0, newMalformedError(line, "%s does not fit in 32 bits", name)
	}
	return uint32(value), nil
}

// Uint64Property combines the 32 bit halves <name>hi and <name>lo.
func Uint64Property(line, name string) (uint64, error) {
	hi, err := Uint32Property(line, name+"hi")
	if err != nil {
		return 0, err
	}
	lo, err := Uint32Property(line, name+"lo")
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

func parseInteger(s string) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
