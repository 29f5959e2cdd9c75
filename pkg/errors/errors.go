package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies what a layer was trying to do when an error occurred.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota

	// Configuration and path errors.
	KindBadRootPath
	KindBadDatabasePath
	KindBadSyncDatabaseExt
	KindBadSyncDatabasePath
	KindInvalidDatabaseName

	// Lifecycle and concurrency errors.
	KindCannotAcquireLock
	KindLockAlreadyExists
	KindCannotReleaseLock
	KindUseAfterDrop

	// Database errors.
	KindDatabaseAlreadyExists
	KindDatabaseNotFound
	KindCannotCreateDatabase
	KindCannotQueryDatabase
	KindCannotAddServerToDatabase
	KindDatabaseVersion
	KindInvalidLocalPackage
	KindInvalidSyncPackage
	KindPackageNotFound
	KindDuplicatePackage

	// Signature errors.
	KindSignatureMissing
	KindSignatureIncorrect
	KindUnexpectedSignature

	// Generic wrapped errors.
	KindUnexpectedIO
	KindUnexpectedHTTP
)

var kindText = map[Kind]string{
	KindUnknown:                   "unknown error",
	KindBadRootPath:               "root path does not point to a valid directory",
	KindBadDatabasePath:           "database path does not point to a valid directory",
	KindBadSyncDatabaseExt:        "invalid sync database extension",
	KindBadSyncDatabasePath:       "sync database path does not point to a valid directory",
	KindInvalidDatabaseName:       "invalid database name",
	KindCannotAcquireLock:         "cannot create lockfile",
	KindLockAlreadyExists:         "lockfile already exists, remove it if no other instance is running",
	KindCannotReleaseLock:         "cannot release lockfile",
	KindUseAfterDrop:              "no operations are possible after the handle has been closed",
	KindDatabaseAlreadyExists:     "database already exists",
	KindDatabaseNotFound:          "database not found",
	KindCannotCreateDatabase:      "cannot create database",
	KindCannotQueryDatabase:       "cannot query database",
	KindCannotAddServerToDatabase: "cannot add server to database",
	KindDatabaseVersion:           "unexpected error getting or updating database version",
	KindInvalidLocalPackage:       "invalid local package",
	KindInvalidSyncPackage:        "invalid sync package",
	KindPackageNotFound:           "package not found",
	KindDuplicatePackage:          "duplicate package in database",
	KindSignatureMissing:          "a signature was missing",
	KindSignatureIncorrect:        "a signature did not match",
	KindUnexpectedSignature:       "unexpected error processing signature",
	KindUnexpectedIO:              "unexpected i/o error",
	KindUnexpectedHTTP:            "unexpected http error",
}

// String returns a human readable description of the kind.
func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error is an error of a known kind with an optional subject (a path, a database or package
// name) and an optional underlying cause.
type Error struct {
	Kind    Kind
	Subject string
	Cause   error
}

// New creates an error of the given kind about subject.
func New(kind Kind, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}

// Newf creates an error of the given kind whose cause is a formatted message.
func Newf(kind Kind, subject string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Subject: subject, Cause: fmt.Errorf(format, args...)}
}

// From creates an error of the given kind caused by err.
func From(kind Kind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Cause: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Subject != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Subject)
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. A target with a subject must
// also match the subject.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Subject == "" || t.Subject == e.Subject
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinels for errors.Is checks.
var (
	ErrBadRootPath               = &Error{Kind: KindBadRootPath}
	ErrBadDatabasePath           = &Error{Kind: KindBadDatabasePath}
	ErrBadSyncDatabaseExt        = &Error{Kind: KindBadSyncDatabaseExt}
	ErrBadSyncDatabasePath       = &Error{Kind: KindBadSyncDatabasePath}
	ErrInvalidDatabaseName       = &Error{Kind: KindInvalidDatabaseName}
	ErrCannotAcquireLock         = &Error{Kind: KindCannotAcquireLock}
	ErrLockAlreadyExists         = &Error{Kind: KindLockAlreadyExists}
	ErrCannotReleaseLock         = &Error{Kind: KindCannotReleaseLock}
	ErrUseAfterDrop              = &Error{Kind: KindUseAfterDrop}
	ErrDatabaseAlreadyExists     = &Error{Kind: KindDatabaseAlreadyExists}
	ErrDatabaseNotFound          = &Error{Kind: KindDatabaseNotFound}
	ErrCannotCreateDatabase      = &Error{Kind: KindCannotCreateDatabase}
	ErrCannotQueryDatabase       = &Error{Kind: KindCannotQueryDatabase}
	ErrCannotAddServerToDatabase = &Error{Kind: KindCannotAddServerToDatabase}
	ErrDatabaseVersion           = &Error{Kind: KindDatabaseVersion}
	ErrInvalidLocalPackage       = &Error{Kind: KindInvalidLocalPackage}
	ErrInvalidSyncPackage        = &Error{Kind: KindInvalidSyncPackage}
	ErrPackageNotFound           = &Error{Kind: KindPackageNotFound}
	ErrDuplicatePackage          = &Error{Kind: KindDuplicatePackage}
	ErrSignatureMissing          = &Error{Kind: KindSignatureMissing}
	ErrSignatureIncorrect        = &Error{Kind: KindSignatureIncorrect}
	ErrUnexpectedSignature       = &Error{Kind: KindUnexpectedSignature}
	ErrUnexpectedIO              = &Error{Kind: KindUnexpectedIO}
	ErrUnexpectedHTTP            = &Error{Kind: KindUnexpectedHTTP}
)

// Config errors.
var (
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is is a shortcut for the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a shortcut for the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
