// Package tileid classifies and decomposes WRS-2 path/row and MGRS 100 km tile identifiers.
package tileid

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the tiling scheme an identifier belongs to.
type Kind int

// Tile identifier kinds.
const (
	KindUnknown Kind = iota
	KindWRS
	KindMGRS
)

// String returns the short scheme name used in exports and API responses.
func (k Kind) String() string {
	switch k {
	case KindWRS:
		return "wrs"
	case KindMGRS:
		return "mgrs"
	default:
		return "unknown"
	}
}

// ErrInvalid is returned by the Parse functions for strings that match no scheme.
var ErrInvalid = eris.New("tileid: invalid tile identifier")

var (
	// Zone 01-60, latitude band C-X without I/O, column A-Z without I/O, row A-V without I/O.
	mgrsPattern = regexp.MustCompile(`^(0[1-9]|[1-5]\d|60)([C-HJ-NP-X])([A-HJ-NP-Z])([A-HJ-NP-V])$`)
	wrsPattern  = regexp.MustCompile(`^(\d{3})(\d{3})$`)
)

// Classify returns the scheme of s. MGRS is tested before WRS.
func Classify(s string) Kind {
	s = strings.TrimSpace(s)
	switch {
	case mgrsPattern.MatchString(s):
		return KindMGRS
	case wrsPattern.MatchString(s):
		return KindWRS
	default:
		return KindUnknown
	}
}

// WrsTile is a WRS-2 path/row.
type WrsTile struct {
	Path string
	Row  string
}

// String returns the 6-digit path/row.
func (t WrsTile) String() string {
	return t.Path + t.Row
}

// MgrsTile is an MGRS 100 km square within a grid zone.
type MgrsTile struct {
	GZD    string // e.g. 11U
	Square string // e.g. NU
}

// String returns the 5-character MGRS id.
func (t MgrsTile) String() string {
	return t.GZD + t.Square
}

// Zone returns the grid zone designator, which names the per-zone reference archive.
func (t MgrsTile) Zone() string {
	return t.GZD
}

// ParseWRS decomposes a 6-digit path/row.
func ParseWRS(s string) (WrsTile, error) {
	m := wrsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return WrsTile{}, eris.Wrapf(ErrInvalid, "not a WRS path/row: %q", s)
	}
	return WrsTile{Path: m[1], Row: m[2]}, nil
}

// ParseMGRS decomposes a 5-character MGRS 100 km id.
func ParseMGRS(s string) (MgrsTile, error) {
	m := mgrsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return MgrsTile{}, eris.Wrapf(ErrInvalid, "not an MGRS 100km id: %q", s)
	}
	return MgrsTile{GZD: m[1] + m[2], Square: m[3] + m[4]}, nil
}

// IsZone reports whether s is a bare grid zone designator such as "11U".
func IsZone(s string) bool {
	if len(s) != 3 {
		return false
	}
	return mgrsPattern.MatchString(s + "AA")
}

// NormalizePathRow zero-pads numeric PR values (some WRS-2 distributions store PR as a
// number, which drops the leading zero of paths below 100).
func NormalizePathRow(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) >= 6 {
		return v
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return v
	}
	s := strconv.Itoa(n)
	return strings.Repeat("0", 6-len(s)) + s
}
