package desc

import (
	"fmt"
)

// ErrorKind identifies the class of a codec failure.
type ErrorKind int

// Codec error kinds.
const (
	KindUnsupported ErrorKind = iota + 1
	KindExpectedKey
	KindExpectedBool
	KindExpectedByte
	KindExpectedUnsigned
	KindExpectedSigned
	KindExpectedFloat
	KindExpectedChar
	KindExpectedEmpty
	KindCustom
)

var kindNames = map[ErrorKind]string{
	KindUnsupported:      "unsupported",
	KindExpectedKey:      "expected key",
	KindExpectedBool:     "expected bool",
	KindExpectedByte:     "expected byte",
	KindExpectedUnsigned: "expected unsigned integer",
	KindExpectedSigned:   "expected signed integer",
	KindExpectedFloat:    "expected float",
	KindExpectedChar:     "expected char",
	KindExpectedEmpty:    "expected empty value",
	KindCustom:           "custom",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("desc error kind %d", int(k))
}

// Error is returned for every codec failure. Key names the record being processed, if any.
type Error struct {
	Kind ErrorKind
	Key  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := "desc: " + e.Kind.String()
	if e.Key != "" {
		msg += " in %" + e.Key + "%"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrExpectedKey      = &Error{Kind: KindExpectedKey}
	ErrExpectedBool     = &Error{Kind: KindExpectedBool}
	ErrExpectedByte     = &Error{Kind: KindExpectedByte}
	ErrExpectedUnsigned = &Error{Kind: KindExpectedUnsigned}
	ErrExpectedSigned   = &Error{Kind: KindExpectedSigned}
	ErrExpectedFloat    = &Error{Kind: KindExpectedFloat}
	ErrExpectedChar     = &Error{Kind: KindExpectedChar}
	ErrExpectedEmpty    = &Error{Kind: KindExpectedEmpty}
	ErrCustom           = &Error{Kind: KindCustom}
)

// Custom builds a KindCustom error. Record types use it to report their own validation failures.
func Custom(format string, args ...interface{}) error {
	return &Error{Kind: KindCustom, Msg: fmt.Sprintf(format, args...)}
}

func unsupported(key, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupported, Key: key, Msg: fmt.Sprintf(format, args...)}
}

func expected(kind ErrorKind, key, got string) *Error {
	return &Error{Kind: kind, Key: key, Msg: fmt.Sprintf("got %q", got)}
}

// withKey attaches key to err. Errors that are not *Error become KindCustom.
func withKey(err error, key string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Key == "" {
			c := *e
			c.Key = key
			return &c
		}
		return e
	}
	return &Error{Kind: KindCustom, Key: key, Err: err}
}
