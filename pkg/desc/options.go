package desc

import (
	"fmt"
	"runtime"
	"strings"
)

// LineEnding selects the record framing used by the codec.
type LineEnding int

const (
	// LineEndingUnix frames records with "\n" and "\n\n".
	LineEndingUnix LineEnding = iota
	// LineEndingWindows frames records with "\r\n" and "\r\n\r\n".
	LineEndingWindows
)

// DefaultLineEnding returns the line ending native to the running platform.
func DefaultLineEnding() LineEnding {
	if runtime.GOOS == "windows" {
		return LineEndingWindows
	}
	return LineEndingUnix
}

// ParseLineEnding maps "unix" or "windows" (any case) to a LineEnding. The empty string
// yields DefaultLineEnding.
func ParseLineEnding(s string) (LineEnding, error) {
	switch strings.ToLower(s) {
	case "":
		return DefaultLineEnding(), nil
	case "unix", "lf":
		return LineEndingUnix, nil
	case "windows", "crlf":
		return LineEndingWindows, nil
	default:
		return 0, fmt.Errorf("unknown line ending %q", s)
	}
}

// Newline returns the single line terminator.
func (l LineEnding) Newline() string {
	if l == LineEndingWindows {
		return "\r\n"
	}
	return "\n"
}

// Separator returns the doubled terminator that ends a record.
func (l LineEnding) Separator() string {
	return l.Newline() + l.Newline()
}

func (l LineEnding) String() string {
	if l == LineEndingWindows {
		return "windows"
	}
	return "unix"
}

type options struct {
	lineEnding LineEnding
}

// Option configures an Encoder or Decoder.
type Option func(*options)

// WithLineEnding overrides the platform default line ending.
func WithLineEnding(l LineEnding) Option {
	return func(o *options) {
		o.lineEnding = l
	}
}

func newOptions(opts []Option) options {
	o := options{lineEnding: DefaultLineEnding()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
