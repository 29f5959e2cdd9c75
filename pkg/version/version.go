// Package version parses and orders package versions of the form [epoch:]version[-release].
//
// Ordering is defined block by block rather than by string equality, so differently written
// versions such as "1", "01" and "1-" compare equal. Hash is consistent with that equality.
package version

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultEpoch is the epoch of versions without an explicit one.
const DefaultEpoch = "0"

// Version is a parsed package version.
type Version struct {
	Epoch      string
	Version    string
	Release    string
	HasRelease bool

	raw string
}

// Parse splits s into epoch, version and release. The epoch is a leading run of digits
// followed by ':'; the release is whatever follows the last '-'.
func Parse(s string) Version {
	v := Version{Epoch: DefaultEpoch, raw: s}
	rest := s

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(rest) && rest[digits] == ':' {
		v.Epoch = rest[:digits]
		rest = rest[digits+1:]
	}

	if idx := strings.LastIndexByte(rest, '-'); idx >= 0 {
		v.Release = rest[idx+1:]
		v.HasRelease = true
		rest = rest[:idx]
	}
	v.Version = rest
	return v
}

// String returns the text the version was parsed from.
func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	var sb strings.Builder
	if v.Epoch != "" && v.Epoch != DefaultEpoch {
		sb.WriteString(v.Epoch)
		sb.WriteByte(':')
	}
	sb.WriteString(v.Version)
	if v.HasRelease {
		sb.WriteByte('-')
		sb.WriteString(v.Release)
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	*v = Parse(string(text))
	return nil
}

// Compare orders a and b by epoch, then version, then release. Releases only take part when
// both versions have one, so "1-1" and "1" are equal.
//
// Because of that rule equality is not transitive: "1-1" == "1" == "1-2" but "1-1" < "1-2".
func Compare(a, b Version) int {
	if c := CompareSegments(a.Epoch, b.Epoch); c != 0 {
		return c
	}
	if c := CompareSegments(a.Version, b.Version); c != 0 {
		return c
	}
	if a.HasRelease && b.HasRelease {
		return CompareSegments(a.Release, b.Release)
	}
	return 0
}

// CompareStrings parses and compares two version strings.
func CompareStrings(a, b string) int {
	return Compare(Parse(a), Parse(b))
}

// Compare returns Compare(v, other).
func (v Version) Compare(other Version) int {
	return Compare(v, other)
}

// Equal reports whether v and other compare equal.
func (v Version) Equal(other Version) bool {
	return Compare(v, other) == 0
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	return Compare(v, other) < 0
}

// Hash returns a hash consistent with Equal.
func (v Version) Hash() uint64 {
	d := xxhash.New()
	v.HashTo(d)
	return d.Sum64()
}

// HashTo feeds the significant parts of the epoch and version into d: alpha blocks, numeric
// blocks without leading zeros and the length of every non-trailing separator. The release
// is left out because it only sometimes takes part in comparisons.
func (v Version) HashTo(d *xxhash.Digest) {
	hashSegment(d, v.Epoch)
	_, _ = d.Write([]byte{0xff})
	hashSegment(d, v.Version)
}

func hashSegment(d *xxhash.Digest, s string) {
	it := blocks{s: s}
	for {
		b, ok := it.next()
		if !ok {
			return
		}
		switch b.kind {
		case blockSeparator:
			if it.done() {
				return
			}
			n := len(b.text)
			_, _ = d.Write([]byte{'s', byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
		case blockNumeric:
			_, _ = d.Write([]byte{'n'})
			_, _ = d.WriteString(stripZeros(b.text))
		case blockAlpha:
			_, _ = d.Write([]byte{'a'})
			_, _ = d.WriteString(b.text)
		}
	}
}

// Sort orders versions from oldest to newest. Equal versions keep their relative order.
func Sort(vs []Version) {
	slices.SortStableFunc(vs, Compare)
}

// Max returns the newest of vs. It reports false when vs is empty.
func Max(vs ...Version) (Version, bool) {
	if len(vs) == 0 {
		return Version{}, false
	}
	return slices.MaxFunc(vs, Compare), true
}
