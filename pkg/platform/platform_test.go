package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"amd64", ArchX86_64},
		{"X86_64", ArchX86_64},
		{"386", ArchI686},
		{"i686", ArchI686},
		{"arm64", ArchAarch64},
		{"aarch64", ArchAarch64},
		{"arm", ArchArmv7h},
		{"armv7h", ArchArmv7h},
		{"riscv64", "riscv64"},
		{"any", ArchAny},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeArch(tt.input))
		})
	}
}

func TestResolveArch(t *testing.T) {
	current := NormalizeArch(runtime.GOARCH)
	assert.Equal(t, current, CurrentArch())
	assert.Equal(t, current, ResolveArch(""))
	assert.Equal(t, current, ResolveArch("Auto"))
	assert.Equal(t, ArchAarch64, ResolveArch("arm64"))
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(ArchAny, ArchI686))
	assert.True(t, Compatible("x86_64", "amd64"))
	assert.False(t, Compatible(ArchAarch64, ArchX86_64))
}

func TestExpandServer(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "both placeholders",
			template: "https://mirror.example.org/$repo/os/$arch",
			expected: "https://mirror.example.org/core/os/x86_64",
		},
		{
			name:     "repeated placeholder",
			template: "https://$repo.example.org/$repo",
			expected: "https://core.example.org/core",
		},
		{
			name:     "no placeholders",
			template: "file:///srv/repo",
			expected: "file:///srv/repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandServer(tt.template, "core", ArchX86_64))
		})
	}
}
