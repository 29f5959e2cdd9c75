package db

import (
	"time"

	"github.com/glorpus-work/alpmdb/pkg/signing"
	"github.com/glorpus-work/alpmdb/pkg/version"
)

// Package is the metadata common to local and sync packages.
type Package interface {
	Name() string
	Version() version.Version
	Base() string
	Description() string
	URL() string
	Arch() string
	Packager() string
	Licenses() []string
	Groups() []string
	BuildDate() time.Time
	Replaces() []string
	Depends() []string
	OptionalDepends() []string
	Conflicts() []string
	Provides() []string
}

// Database is the behaviour shared by the local and sync databases.
type Database interface {
	Name() string
	Path() string
	Status() (Status, error)
	Usage() Usage
	SetUsage(Usage)
	SignatureLevel() signing.Level
	Count() (int, error)
	// Lookup returns the newest version of the named package.
	Lookup(name string) (Package, error)
	// Each calls fn for every package, in name order.
	Each(fn func(Package) error) error
	AddServer(raw string) error
}

var (
	_ Database = (*LocalDatabase)(nil)
	_ Database = (*SyncDatabase)(nil)
	_ Package  = (*LocalPackage)(nil)
	_ Package  = (*SyncPackage)(nil)
)

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
