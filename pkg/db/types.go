package db

import (
	"fmt"
	"strings"

	"github.com/glorpus-work/alpmdb/pkg/errors"
)

const (
	// LocalDatabaseName is the reserved name of the local database.
	LocalDatabaseName = "local"
	// SyncDatabaseDir is the directory under the database path holding sync archives.
	SyncDatabaseDir = "sync"
	// DefaultSyncExtension is the file extension of sync archives.
	DefaultSyncExtension = "db"
	// LocalDatabaseVersion is the schema version written to the local database marker.
	LocalDatabaseVersion = 9
	// LocalVersionFile marks the local database schema version.
	LocalVersionFile = "ALPM_DB_VERSION"
	// LockSuffix names the file next to a sync archive that writers flock.
	LockSuffix = ".lck"
)

// Status is the on-disk state of a database.
type Status int

const (
	StatusMissing Status = iota
	StatusInvalid
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusInvalid:
		return "invalid"
	case StatusValid:
		return "valid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Usage is the set of operations a database takes part in.
type Usage uint8

const (
	UsageSync Usage = 1 << iota
	UsageSearch
	UsageInstall
	UsageUpgrade

	UsageAll = UsageSync | UsageSearch | UsageInstall | UsageUpgrade
)

var usageNames = []struct {
	usage Usage
	name  string
}{
	{UsageSync, "sync"},
	{UsageSearch, "search"},
	{UsageInstall, "install"},
	{UsageUpgrade, "upgrade"},
}

// Has reports whether every flag of other is set in u.
func (u Usage) Has(other Usage) bool {
	return u&other == other
}

func (u Usage) String() string {
	if u == UsageAll {
		return "all"
	}
	if u == 0 {
		return "none"
	}
	var parts []string
	for _, n := range usageNames {
		if u.Has(n.usage) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseUsage combines usage names ("sync", "search", "install", "upgrade", "all"). No names
// means UsageAll.
func ParseUsage(names []string) (Usage, error) {
	if len(names) == 0 {
		return UsageAll, nil
	}
	var u Usage
outer:
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "all" {
			u |= UsageAll
			continue
		}
		for _, n := range usageNames {
			if n.name == name {
				u |= n.usage
				continue outer
			}
		}
		return 0, fmt.Errorf("unknown database usage %q", raw)
	}
	return u, nil
}

// ValidateSyncName checks that name can be used for a sync database: non-empty, not the local
// database name, and free of '.', '/' and '\'.
func ValidateSyncName(name string) error {
	if name == "" || name == LocalDatabaseName || strings.ContainsAny(name, `./\`) {
		return errors.New(errors.KindInvalidDatabaseName, name)
	}
	return nil
}

// SplitPackageDirname splits a "name-version-release" directory name at its second to last
// hyphen.
func SplitPackageDirname(dirname string) (name, version string, ok bool) {
	last := strings.LastIndexByte(dirname, '-')
	if last <= 0 {
		return "", "", false
	}
	second := strings.LastIndexByte(dirname[:last], '-')
	if second <= 0 {
		return "", "", false
	}
	return dirname[:second], dirname[second+1:], true
}
