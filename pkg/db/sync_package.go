package db

import (
	"time"

	"github.com/glorpus-work/alpmdb/pkg/version"
)

// SyncDescription is the desc entry of a package in a sync archive.
type SyncDescription struct {
	Filename        string              `desc:"FILENAME"`
	Name            string              `desc:"NAME"`
	Base            string              `desc:"BASE,omitempty"`
	Version         version.Version     `desc:"VERSION"`
	Description     string              `desc:"DESC"`
	Groups          []string            `desc:"GROUPS,omitempty"`
	CompressedSize  uint64              `desc:"CSIZE"`
	InstalledSize   uint64              `desc:"ISIZE"`
	MD5Sum          []byte              `desc:"MD5SUM,omitempty"`
	SHA256Sum       []byte              `desc:"SHA256SUM,omitempty"`
	PGPSignature    string              `desc:"PGPSIG,omitempty"`
	URL             string              `desc:"URL,omitempty"`
	License         []string            `desc:"LICENSE,omitempty"`
	Arch            string              `desc:"ARCH"`
	BuildDate       int64               `desc:"BUILDDATE"`
	Packager        string              `desc:"PACKAGER"`
	Replaces        []string            `desc:"REPLACES,omitempty"`
	Depends         []string            `desc:"DEPENDS,omitempty"`
	OptionalDepends []string            `desc:"OPTDEPENDS,omitempty"`
	MakeDepends     []string            `desc:"MAKEDEPENDS,omitempty"`
	CheckDepends    []string            `desc:"CHECKDEPENDS,omitempty"`
	Conflicts       []string            `desc:"CONFLICTS,omitempty"`
	Provides        []string            `desc:"PROVIDES,omitempty"`
	Extra           map[string][]string `desc:",extra"`
}

// SyncPackage is a package available from a sync database.
type SyncPackage struct {
	database string
	desc     SyncDescription
}

// Database returns the name of the sync database the package came from.
func (p *SyncPackage) Database() string { return p.database }

// Desc returns a copy of the parsed desc entry.
func (p *SyncPackage) Desc() SyncDescription { return p.desc }

func (p *SyncPackage) Name() string              { return p.desc.Name }
func (p *SyncPackage) Version() version.Version  { return p.desc.Version }
func (p *SyncPackage) Filename() string          { return p.desc.Filename }
func (p *SyncPackage) Base() string              { return p.desc.Base }
func (p *SyncPackage) Description() string       { return p.desc.Description }
func (p *SyncPackage) Groups() []string          { return p.desc.Groups }
func (p *SyncPackage) CompressedSize() uint64    { return p.desc.CompressedSize }
func (p *SyncPackage) InstalledSize() uint64     { return p.desc.InstalledSize }
func (p *SyncPackage) MD5Sum() []byte            { return p.desc.MD5Sum }
func (p *SyncPackage) SHA256Sum() []byte         { return p.desc.SHA256Sum }
func (p *SyncPackage) PGPSignature() string      { return p.desc.PGPSignature }
func (p *SyncPackage) URL() string               { return p.desc.URL }
func (p *SyncPackage) Licenses() []string        { return p.desc.License }
func (p *SyncPackage) Arch() string              { return p.desc.Arch }
func (p *SyncPackage) BuildDate() time.Time      { return unixTime(p.desc.BuildDate) }
func (p *SyncPackage) Packager() string          { return p.desc.Packager }
func (p *SyncPackage) Replaces() []string        { return p.desc.Replaces }
func (p *SyncPackage) Depends() []string         { return p.desc.Depends }
func (p *SyncPackage) OptionalDepends() []string { return p.desc.OptionalDepends }
func (p *SyncPackage) MakeDepends() []string     { return p.desc.MakeDepends }
func (p *SyncPackage) CheckDepends() []string    { return p.desc.CheckDepends }
func (p *SyncPackage) Conflicts() []string       { return p.desc.Conflicts }
func (p *SyncPackage) Provides() []string        { return p.desc.Provides }
