// Package mtree reads mtree(5) manifests such as the .MTREE files shipped in packages.
package mtree

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Type is the file type recorded for an entry.
type Type int

// File types. TypeNone means the manifest did not record a type.
const (
	TypeNone Type = iota
	TypeFile
	TypeDir
	TypeLink
	TypeBlock
	TypeChar
	TypeFifo
	TypeSocket
)

var typeNames = map[string]Type{
	"file":   TypeFile,
	"dir":    TypeDir,
	"link":   TypeLink,
	"block":  TypeBlock,
	"char":   TypeChar,
	"fifo":   TypeFifo,
	"socket": TypeSocket,
}

func (t Type) String() string {
	for name, typ := range typeNames {
		if typ == t {
			return name
		}
	}
	return "none"
}

// ParseType maps an mtree type keyword value to a Type.
func ParseType(s string) (Type, error) {
	if t, ok := typeNames[s]; ok {
		return t, nil
	}
	return TypeNone, fmt.Errorf("unknown file type %q", s)
}

// Entry is one file of the manifest with the keywords in effect for it.
type Entry struct {
	Path     string
	Type     Type
	Size     uint64
	HasSize  bool
	Mode     uint32
	HasMode  bool
	UID      int
	GID      int
	Time     time.Time
	Link     string
	MD5      string
	SHA256   string
	Keywords map[string]string
}

// ParseError reports a malformed manifest line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mtree: line %d: %s", e.Line, e.Msg)
}

// ParseGzip reads a gzip compressed manifest.
func ParseGzip(r io.Reader) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("mtree: %w", err)
	}
	defer gz.Close()
	return Parse(gz)
}

// Parse reads an uncompressed manifest and returns its entries in file order.
func Parse(r io.Reader) ([]Entry, error) {
	p := &parser{defaults: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var pending strings.Builder
	lineNo, startLine := 0, 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if pending.Len() == 0 {
			startLine = lineNo
		}
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)
		full := pending.String()
		pending.Reset()

		if err := p.line(full); err != nil {
			return nil, &ParseError{Line: startLine, Msg: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mtree: %w", err)
	}
	if pending.Len() > 0 {
		if err := p.line(pending.String()); err != nil {
			return nil, &ParseError{Line: startLine, Msg: err.Error()}
		}
	}
	return p.entries, nil
}

type parser struct {
	defaults map[string]string
	dirs     []string
	entries  []Entry
}

func (p *parser) line(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	fields := strings.Fields(line)

	switch fields[0] {
	case "/set":
		for _, kw := range fields[1:] {
			key, value, _ := strings.Cut(kw, "=")
			p.defaults[key] = value
		}
		return nil
	case "/unset":
		for _, key := range fields[1:] {
			if key == "all" {
				clear(p.defaults)
				continue
			}
			delete(p.defaults, key)
		}
		return nil
	case "..":
		if len(p.dirs) == 0 {
			return fmt.Errorf("\"..\" above the top directory")
		}
		p.dirs = p.dirs[:len(p.dirs)-1]
		return nil
	}
	if strings.HasPrefix(fields[0], "/") {
		return fmt.Errorf("unknown special command %q", fields[0])
	}

	name, err := unescape(fields[0])
	if err != nil {
		return err
	}

	keywords := make(map[string]string, len(p.defaults)+len(fields)-1)
	for k, v := range p.defaults {
		keywords[k] = v
	}
	for _, kw := range fields[1:] {
		key, value, _ := strings.Cut(kw, "=")
		keywords[key] = value
	}

	entry, err := newEntry(keywords)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if strings.Contains(name, "/") {
		entry.Path = strings.TrimSuffix(name, "/")
	} else {
		entry.Path = strings.Join(append(p.dirs[:len(p.dirs):len(p.dirs)], name), "/")
		if entry.Type == TypeDir {
			p.dirs = append(p.dirs, name)
		}
	}
	p.entries = append(p.entries, entry)
	return nil
}

func newEntry(keywords map[string]string) (Entry, error) {
	e := Entry{Keywords: keywords}
	for key, value := range keywords {
		var err error
		switch key {
		case "type":
			e.Type, err = ParseType(value)
		case "size":
			e.Size, err = strconv.ParseUint(value, 10, 64)
			e.HasSize = err == nil
		case "mode":
			var mode uint64
			mode, err = strconv.ParseUint(value, 8, 32)
			e.Mode, e.HasMode = uint32(mode), err == nil
		case "uid":
			e.UID, err = strconv.Atoi(value)
		case "gid":
			e.GID, err = strconv.Atoi(value)
		case "time":
			e.Time, err = parseTime(value)
		case "link":
			e.Link, err = unescape(value)
		case "md5", "md5digest":
			e.MD5 = value
		case "sha256", "sha256digest":
			e.SHA256 = value
		}
		if err != nil {
			return Entry{}, fmt.Errorf("keyword %s=%q: %w", key, value, err)
		}
	}
	return e, nil
}

// parseTime reads "seconds.nanoseconds".
func parseTime(s string) (time.Time, error) {
	secStr, nsecStr, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	var nsec int64
	if nsecStr != "" {
		if nsec, err = strconv.ParseInt(nsecStr, 10, 64); err != nil {
			return time.Time{}, err
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

var simpleEscapes = map[byte]byte{
	'\\': '\\',
	's':  ' ',
	't':  '\t',
	'n':  '\n',
	'r':  '\r',
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'v':  '\v',
	'#':  '#',
}

// unescape decodes octal (\040) and backslash escapes in a path.
func unescape(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			n, err := strconv.ParseUint(s[i+1:i+4], 8, 8)
			if err != nil {
				return "", fmt.Errorf("invalid escape %q in %q", s[i:i+4], s)
			}
			sb.WriteByte(byte(n))
			i += 3
			continue
		}
		if i+1 < len(s) {
			if r, ok := simpleEscapes[s[i+1]]; ok {
				sb.WriteByte(r)
				i++
				continue
			}
		}
		return "", fmt.Errorf("invalid escape in %q", s)
	}
	return sb.String(), nil
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
