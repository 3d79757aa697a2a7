package xbdm

import "strings"

// Separator selects the path flavour handled by the path helpers.
type Separator byte

const (
	// ConsoleSeparator separates components of paths on the console,
	// e.g. `HDD:\Content\default.xex`.
	ConsoleSeparator Separator = '\\'

	// HostSeparator separates components of slash-style relative paths,
	// such as those produced by io/fs walks of a local directory.
	HostSeparator Separator = '/'
)

func (s Separator) String() string {
	return string(rune(s))
}

// Split returns the non-empty components of p. "." components are dropped
// and ".." removes the previous component.
func (s Separator) Split(p string) []string {
	raw := strings.Split(p, s.String())
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		switch part {
		case "", ".":
		case "..":
			if len(parts) > 0 && !isDrive(parts[len(parts)-1]) {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}
	return parts
}

// Join joins path elements. A leading drive component ("E:", "DEVKIT:") is
// always followed by a separator, so Join("HDD:", "a") is `HDD:\a`.
func (s Separator) Join(elem ...string) string {
	parts := s.Split(strings.Join(elem, s.String()))
	if len(parts) == 0 {
		return ""
	}
	if isDrive(parts[0]) {
		return parts[0] + s.String() + strings.Join(parts[1:], s.String())
	}
	return strings.Join(parts, s.String())
}

// Dir returns all but the last component of p. The parent of a top level
// entry is its drive root, e.g. Dir(`E:\game.xex`) is `E:\`.
func (s Separator) Dir(p string) string {
	parts := s.Split(p)
	if len(parts) == 0 {
		return ""
	}
	return s.Join(parts[:len(parts)-1]...)
}

// Base returns the last component of p.
func (s Separator) Base(p string) string {
	parts := s.Split(p)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Rel returns target relative to base when target lies below base.
func (s Separator) Rel(base, target string) (string, bool) {
	b := s.Split(base)
	t := s.Split(target)
	if len(t) < len(b) {
		return "", false
	}
	for i := range b {
		if !strings.EqualFold(b[i], t[i]) {
			return "", false
		}
	}
	return strings.Join(t[len(b):], s.String()), true
}

// Convert rewrites p from separator s to separator to.
func (s Separator) Convert(p string, to Separator) string {
	return strings.Join(s.Split(p), to.String())
}

// isDrive reports whether part is a drive designator such as "E:" or "HDD:".
func isDrive(part string) bool {
	if len(part) < 2 || part[len(part)-1] != ':' {
		return false
	}
	for _, r := range part[:len(part)-1] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
