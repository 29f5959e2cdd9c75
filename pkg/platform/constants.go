package platform

// Architecture names as used by package databases and mirror URLs.
const (
	ArchX86_64  = "x86_64"
	ArchI686    = "i686"
	ArchAarch64 = "aarch64"
	ArchArmv7h  = "armv7h"
	// ArchAny marks packages that run on every architecture.
	ArchAny = "any"
	// ArchAuto selects the architecture of the running system.
	ArchAuto = "auto"
)

// Placeholders expanded in server URLs.
const (
	RepoVariable = "$repo"
	ArchVariable = "$arch"
)
