package db

import (
	"fmt"
	"strings"

	"github.com/glorpus-work/alpmdb/pkg/version"
)

// Reason records why a package was installed.
type Reason int

const (
	// ReasonExplicit marks a package the user asked for.
	ReasonExplicit Reason = iota
	// ReasonDepend marks a package pulled in as a dependency.
	ReasonDepend
)

func (r Reason) String() string {
	switch r {
	case ReasonExplicit:
		return "explicit"
	case ReasonDepend:
		return "dependency"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler using the on-disk codes "0" and "1".
func (r Reason) MarshalText() ([]byte, error) {
	switch r {
	case ReasonExplicit:
		return []byte("0"), nil
	case ReasonDepend:
		return []byte("1"), nil
	default:
		return nil, fmt.Errorf("unknown install reason %d", int(r))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(text []byte) error {
	switch string(text) {
	case "0":
		*r = ReasonExplicit
	case "1":
		*r = ReasonDepend
	default:
		return fmt.Errorf("unknown install reason %q", text)
	}
	return nil
}

// Validation is a method that was used to check a package when it was installed.
type Validation int

const (
	ValidationNone Validation = iota
	ValidationMD5
	ValidationSHA256
	ValidationPGP
)

var validationNames = [...]string{
	ValidationNone:   "none",
	ValidationMD5:    "md5",
	ValidationSHA256: "sha256",
	ValidationPGP:    "pgp",
}

func (v Validation) String() string {
	if v >= 0 && int(v) < len(validationNames) {
		return validationNames[v]
	}
	return fmt.Sprintf("validation(%d)", int(v))
}

// MarshalText implements encoding.TextMarshaler.
func (v Validation) MarshalText() ([]byte, error) {
	if v < 0 || int(v) >= len(validationNames) {
		return nil, fmt.Errorf("unknown validation %d", int(v))
	}
	return []byte(validationNames[v]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Validation) UnmarshalText(text []byte) error {
	for i, name := range validationNames {
		if name == string(text) {
			*v = Validation(i)
			return nil
		}
	}
	return fmt.Errorf("unknown validation %q", text)
}

// LocalDescription is the desc member of an installed package.
type LocalDescription struct {
	Name            string              `desc:"NAME"`
	Version         version.Version     `desc:"VERSION"`
	Base            string              `desc:"BASE,omitempty"`
	Description     string              `desc:"DESC"`
	Groups          []string            `desc:"GROUPS,omitempty"`
	URL             string              `desc:"URL"`
	License         []string            `desc:"LICENSE,omitempty"`
	Arch            string              `desc:"ARCH"`
	BuildDate       int64               `desc:"BUILDDATE"`
	InstallDate     int64               `desc:"INSTALLDATE"`
	Packager        string              `desc:"PACKAGER"`
	Reason          *Reason             `desc:"REASON,omitempty"`
	Validation      []Validation        `desc:"VALIDATION"`
	Size            uint64              `desc:"SIZE"`
	Replaces        []string            `desc:"REPLACES,omitempty"`
	Depends         []string            `desc:"DEPENDS,omitempty"`
	OptionalDepends []string            `desc:"OPTDEPENDS,omitempty"`
	Conflicts       []string            `desc:"CONFLICTS,omitempty"`
	Provides        []string            `desc:"PROVIDES,omitempty"`
	Extra           map[string][]string `desc:",extra"`
}

// filesMember is the files member of an installed package.
type filesMember struct {
	Files  []string `desc:"FILES"`
	Backup []string `desc:"BACKUP,omitempty"`
}

// BackupEntry is a configuration file whose local changes are preserved on upgrade.
type BackupEntry struct {
	Path string
	Hash string
}

func parseBackup(lines []string) []BackupEntry {
	if len(lines) == 0 {
		return nil
	}
	out := make([]BackupEntry, 0, len(lines))
	for _, line := range lines {
		path, hash, _ := strings.Cut(line, "\t")
		out = append(out, BackupEntry{Path: path, Hash: hash})
	}
	return out
}
