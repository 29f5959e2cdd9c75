// Package signing describes signature trust levels and evaluates verifier results against them.
package signing

import (
	"fmt"
	"os"
	"strings"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/errors"
)

// SigExt is appended to a file name to find its detached signature.
const SigExt = ".sig"

// Level is how strictly signatures are checked.
type Level int

const (
	// LevelInherit defers to the enclosing level (the handle's, for a database).
	LevelInherit Level = iota
	// LevelRequired needs at least one signature, all fully trusted.
	LevelRequired
	// LevelOptional accepts unsigned files but checks signatures that are present.
	LevelOptional
	// LevelMarginalOK also accepts keys with marginal trust.
	LevelMarginalOK
	// LevelUnknownOK also accepts keys with unknown or marginal trust.
	LevelUnknownOK
	// LevelNever skips signature checks.
	LevelNever
)

var levelNames = map[Level]string{
	LevelInherit:    "inherit",
	LevelRequired:   "required",
	LevelOptional:   "optional",
	LevelMarginalOK: "marginal-ok",
	LevelUnknownOK:  "unknown-ok",
	LevelNever:      "never",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel parses a level name as written in configuration. The empty string is Inherit.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return LevelInherit, nil
	}
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return LevelInherit, fmt.Errorf("unknown signature level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if _, ok := levelNames[l]; !ok {
		return nil, fmt.Errorf("unknown signature level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Resolve replaces Inherit with parent. An inherited Inherit becomes Required.
func (l Level) Resolve(parent Level) Level {
	if l != LevelInherit {
		return l
	}
	if parent == LevelInherit {
		return LevelRequired
	}
	return parent
}

// Status is the verdict on a single signature.
type Status int

const (
	StatusValid Status = iota
	StatusKeyExpired
	StatusSignatureExpired
	StatusKeyUnknown
	StatusKeyDisabled
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusKeyExpired:
		return "key expired"
	case StatusSignatureExpired:
		return "signature expired"
	case StatusKeyUnknown:
		return "key unknown"
	case StatusKeyDisabled:
		return "key disabled"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Validity is the trust placed in the signing key.
type Validity int

const (
	ValidityFull Validity = iota
	ValidityMarginal
	ValidityNever
	ValidityUnknown
)

func (v Validity) String() string {
	switch v {
	case ValidityFull:
		return "full"
	case ValidityMarginal:
		return "marginal"
	case ValidityNever:
		return "never"
	case ValidityUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("validity(%d)", int(v))
	}
}

// Result is what a Verifier reports for one signature.
type Result struct {
	KeyID    string
	Status   Status
	Validity Validity
}

// SigPath returns the path of the detached signature for path.
func SigPath(path string) string {
	return path + SigExt
}

// ReadSignature reads the detached signature of path. A missing signature file is reported as
// UnexpectedSignature.
func ReadSignature(path string) ([]byte, error) {
	sigPath := SigPath(path)
	data, err := os.ReadFile(sigPath)
	if err != nil {
		return nil, errors.From(errors.KindUnexpectedSignature, sigPath, err)
	}
	return data, nil
}

// Evaluate checks verifier results against level. subject names the signed file in errors.
// Inherit is evaluated as Required; callers resolve it first when a parent level exists.
func Evaluate(subject string, results []Result, level Level) error {
	level = level.Resolve(LevelRequired)
	if level == LevelNever {
		return nil
	}
	if len(results) == 0 {
		if level == LevelOptional {
			logger.Debug("accepting unsigned file", logger.Fields{"file": subject})
			return nil
		}
		return errors.New(errors.KindSignatureMissing, subject)
	}
	for _, r := range results {
		if err := check(r, level); err != nil {
			return errors.From(errors.KindSignatureIncorrect, subject, err)
		}
	}
	return nil
}

func check(r Result, level Level) error {
	switch r.Status {
	case StatusValid:
	case StatusKeyUnknown:
		if level != LevelUnknownOK {
			return fmt.Errorf("key %s: %s", r.KeyID, r.Status)
		}
		return nil
	default:
		return fmt.Errorf("key %s: %s", r.KeyID, r.Status)
	}

	switch r.Validity {
	case ValidityFull:
		return nil
	case ValidityMarginal:
		if level == LevelMarginalOK || level == LevelUnknownOK {
			return nil
		}
	case ValidityUnknown:
		if level == LevelUnknownOK {
			return nil
		}
	}
	return fmt.Errorf("key %s: %s trust", r.KeyID, r.Validity)
}
