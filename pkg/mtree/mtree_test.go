package mtree

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pacmanManifest = `#mtree
/set type=file uid=0 gid=0 mode=644
./.BUILDINFO time=1700000000.0 size=5185 md5digest=0123 sha256digest=abcd
./.PKGINFO time=1700000000.0 size=620
./usr time=1700000000.0 mode=755 type=dir
./usr/bin time=1700000000.0 mode=755 type=dir
./usr/bin/bash time=1700000000.500000000 mode=755 size=1112320 sha256digest=beef
./usr/bin/sh time=1700000000.0 mode=777 type=link link=bash
./usr/share/doc/my\040file time=1700000000.0 size=3
/unset mode
./usr/share/nomode time=1700000000.0 size=0
`

func TestParse_FullPaths(t *testing.T) {
	entries, err := Parse(strings.NewReader(pacmanManifest))
	require.NoError(t, err)
	require.Len(t, entries, 8)

	info := entries[0]
	assert.Equal(t, "./.BUILDINFO", info.Path)
	assert.Equal(t, TypeFile, info.Type)
	assert.True(t, info.HasSize)
	assert.Equal(t, uint64(5185), info.Size)
	assert.Equal(t, uint32(0o644), info.Mode)
	assert.Equal(t, "0123", info.MD5)
	assert.Equal(t, "abcd", info.SHA256)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), info.Time)

	usr := entries[2]
	assert.Equal(t, "./usr", usr.Path)
	assert.Equal(t, TypeDir, usr.Type)
	assert.False(t, usr.HasSize)
	assert.Equal(t, uint32(0o755), usr.Mode)

	bash := entries[4]
	assert.Equal(t, "./usr/bin/bash", bash.Path)
	assert.Equal(t, uint64(1112320), bash.Size)
	assert.Equal(t, time.Unix(1700000000, 500000000).UTC(), bash.Time)

	sh := entries[5]
	assert.Equal(t, TypeLink, sh.Type)
	assert.Equal(t, "bash", sh.Link)

	assert.Equal(t, "./usr/share/doc/my file", entries[6].Path)

	noMode := entries[7]
	assert.False(t, noMode.HasMode)
	assert.Equal(t, "0", noMode.Keywords["uid"])
	_, hasMode := noMode.Keywords["mode"]
	assert.False(t, hasMode)
	assert.True(t, noMode.HasSize)
	assert.Zero(t, noMode.Size)
}

func TestParse_RelativeEntries(t *testing.T) {
	manifest := `
/set type=file
. type=dir
    etc type=dir
        hostname size=10
        ssh type=dir
            sshd_config size=20
        ..
        passwd \
            size=30
    ..
    README size=40
..
`
	entries, err := Parse(strings.NewReader(manifest))
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{
		".",
		"./etc",
		"./etc/hostname",
		"./etc/ssh",
		"./etc/ssh/sshd_config",
		"./etc/passwd",
		"./README",
	}, paths)
	assert.Equal(t, uint64(30), entries[5].Size)
}

func TestParse_UnsetAll(t *testing.T) {
	manifest := "/set type=dir uid=1\n/unset all\nfile size=1\n"
	entries, err := Parse(strings.NewReader(manifest))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TypeNone, entries[0].Type)
	assert.Empty(t, entries[0].Keywords["uid"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		line     int
	}{
		{name: "unknown type", manifest: "#mtree\n./a type=door\n", line: 2},
		{name: "bad size", manifest: "./a size=big\n", line: 1},
		{name: "bad mode", manifest: "./a mode=999\n", line: 1},
		{name: "pop above top", manifest: "..\n", line: 1},
		{name: "unknown command", manifest: "/frobnicate x\n", line: 1},
		{name: "bad escape", manifest: "./a\\q size=1\n", line: 1},
		{name: "octal escape out of range", manifest: "#mtree\n./a\\777 size=1\n", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.manifest))
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestParseGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(pacmanManifest))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	entries, err := ParseGzip(&buf)
	require.NoError(t, err)
	assert.Len(t, entries, 8)

	_, err = ParseGzip(strings.NewReader("not gzip"))
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	tests := map[string]string{
		"plain":        "plain",
		`a\040b`:       "a b",
		`back\\slash`:  `back\slash`,
		`tab\tsep`:     "tab\tsep",
		`hash\#`:       "hash#",
		`\303\244.txt`: "ä.txt",
	}
	for in, want := range tests {
		got, err := unescape(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{`\777`, `x\400`, `link\q`} {
		_, err := unescape(in)
		assert.Error(t, err, in)
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "dir", TypeDir.String())
	assert.Equal(t, "none", TypeNone.String())
	typ, err := ParseType("socket")
	require.NoError(t, err)
	assert.Equal(t, TypeSocket, typ)
}
