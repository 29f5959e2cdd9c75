// Package platform maps the running system to package architecture names and expands the
// placeholders of mirror URLs.
package platform

import (
	"runtime"
	"strings"
)

// CurrentArch returns the architecture of the running system.
func CurrentArch() string {
	goarch := runtime.GOARCH
	if goarch == "" {
		goarch = "unknown"
	}
	return NormalizeArch(goarch)
}

// NormalizeArch maps common architecture spellings to package architecture names.
func NormalizeArch(arch string) string {
	arch = strings.ToLower(arch)
	switch arch {
	case "amd64", "x64", "x86_64":
		return ArchX86_64
	case "386", "x86", "i386", "i686":
		return ArchI686
	case "arm64", "aarch64":
		return ArchAarch64
	case "arm", "armv7", "armv7h", "armv7l":
		return ArchArmv7h
	default:
		return arch
	}
}

// ResolveArch returns the architecture to use for a configured value. Empty and "auto" mean
// the running system.
func ResolveArch(configured string) string {
	if configured == "" || strings.EqualFold(configured, ArchAuto) {
		return CurrentArch()
	}
	return NormalizeArch(configured)
}

// Compatible reports whether a package built for pkgArch runs on arch.
func Compatible(pkgArch, arch string) bool {
	return pkgArch == ArchAny || NormalizeArch(pkgArch) == NormalizeArch(arch)
}

// ExpandServer replaces $repo and $arch in a mirror URL template.
func ExpandServer(template, repo, arch string) string {
	return strings.NewReplacer(RepoVariable, repo, ArchVariable, arch).Replace(template)
}
