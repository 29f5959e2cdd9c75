package desc

import (
	"bytes"
	"encoding"
	"encoding/hex"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/glorpus-work/alpmdb/internal/logger"
)

// Unmarshal parses the desc document in data into v.
func Unmarshal(data []byte, v any, opts ...Option) error {
	return NewDecoder(bytes.NewReader(data), opts...).Decode(v)
}

// Decoder reads a desc document from an input stream.
type Decoder struct {
	r    io.Reader
	opts options
}

// NewDecoder returns a decoder that reads from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{r: r, opts: newOptions(opts)}
}

// Decode reads the whole input and stores the records in v.
//
// v must implement Fields, or be a non-nil pointer to a struct or to a map with string keys.
// Keys are matched case-insensitively. Keys without a matching field go to the struct's
// extra field when there is one and are skipped otherwise.
func (d *Decoder) Decode(v any) error {
	data, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}
	records, err := parseRecords(string(data), d.opts.lineEnding.Newline())
	if err != nil {
		return err
	}

	if f, ok := v.(Fields); ok {
		return decodeFields(f, records)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return unsupported("", "decode target must be a non-nil pointer, got %T", v)
	}
	rv = rv.Elem()
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}

	switch {
	case rv.Kind() == reflect.Struct && rv.Type() != emptyType:
		return decodeStruct(rv, records)
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		return decodeMap(rv, records)
	default:
		return unsupported("", "root of type %s must be a struct or a map with string keys", rv.Type())
	}
}

type rawRecord struct {
	key   string
	lines []string
}

// parseRecords splits a document into records. A value block ends at the first empty line;
// blank lines between records are skipped and trailing whitespace ends the document.
func parseRecords(data, nl string) ([]rawRecord, error) {
	var records []rawRecord
	rest := data
	for {
		for strings.HasPrefix(rest, nl) {
			rest = rest[len(nl):]
		}
		if strings.TrimSpace(rest) == "" {
			return records, nil
		}

		var line string
		line, rest = nextLine(rest, nl)
		key, ok := parseKey(line)
		if !ok {
			return nil, expected(KindExpectedKey, "", line)
		}

		rec := rawRecord{key: key}
		for rest != "" {
			line, rest = nextLine(rest, nl)
			if line == "" {
				break
			}
			rec.lines = append(rec.lines, line)
		}
		records = append(records, rec)
	}
}

func nextLine(s, nl string) (string, string) {
	idx := strings.Index(s, nl)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+len(nl):]
}

func parseKey(line string) (string, bool) {
	if len(line) < 3 || line[0] != '%' || line[len(line)-1] != '%' {
		return "", false
	}
	return line[1 : len(line)-1], true
}

func decodeFields(f Fields, records []rawRecord) error {
	byUpper, err := checkNames(f.FieldNames())
	if err != nil {
		return err
	}
	for _, rec := range records {
		upper := strings.ToUpper(rec.key)
		name, ok := byUpper[upper]
		if !ok {
			logger.Debug("ignoring unknown desc key", logger.Fields{"key": rec.key})
			continue
		}
		if err := f.SetField(name, Value{key: rec.key, lines: rec.lines}); err != nil {
			return withKey(err, upper)
		}
	}
	return nil
}

func decodeStruct(rv reflect.Value, records []rawRecord) error {
	s, err := schemaFor(rv.Type())
	if err != nil {
		return err
	}
	for _, rec := range records {
		idx, ok := s.byName[strings.ToUpper(rec.key)]
		if !ok {
			if s.extra != nil {
				extra := rv.FieldByIndex(s.extra)
				if extra.IsNil() {
					extra.Set(reflect.MakeMap(extra.Type()))
				}
				extra.SetMapIndex(reflect.ValueOf(rec.key), reflect.ValueOf(rec.lines))
				continue
			}
			logger.Debug("ignoring unknown desc key", logger.Fields{"key": rec.key})
			continue
		}
		f := s.fields[idx]
		if err := decodeValue(f.name, rec.lines, rv.FieldByIndex(f.index)); err != nil {
			return err
		}
	}
	return nil
}

func decodeMap(rv reflect.Value, records []rawRecord) error {
	t := rv.Type()
	if err := checkType(t.Elem(), false); err != nil {
		return err
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMap(t))
	}
	for _, rec := range records {
		elem := reflect.New(t.Elem()).Elem()
		if err := decodeValue(strings.ToUpper(rec.key), rec.lines, elem); err != nil {
			return err
		}
		rv.SetMapIndex(reflect.ValueOf(rec.key).Convert(t.Key()), elem)
	}
	return nil
}

func decodeInto(key string, lines []string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return unsupported(key, "decode target must be a non-nil pointer, got %T", target)
	}
	if err := checkType(rv.Elem().Type(), false); err != nil {
		return withKey(err, key)
	}
	return decodeValue(key, lines, rv.Elem())
}

// decodeValue stores a block in dst. An empty block is a nil optional, a nil list, or the
// empty line for scalars.
func decodeValue(key string, lines []string, dst reflect.Value) error {
	t := dst.Type()
	switch {
	case t.Kind() == reflect.Pointer:
		if len(lines) == 0 {
			dst.Set(reflect.Zero(t))
			return nil
		}
		p := reflect.New(t.Elem())
		if err := decodeValue(key, lines, p.Elem()); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case t == emptyType:
		if len(lines) != 0 {
			return expected(KindExpectedEmpty, key, lines[0])
		}
		return nil
	case t.Kind() == reflect.Interface:
		return unsupported(key, "cannot decode into interface %s", t)
	case t.Kind() == reflect.Slice && !isByteSlice(t) && !isTextType(t):
		if len(lines) == 0 {
			dst.Set(reflect.Zero(t))
			return nil
		}
		out := reflect.MakeSlice(t, len(lines), len(lines))
		for i, line := range lines {
			if err := decodeScalar(key, line, out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	}

	line := ""
	if len(lines) > 0 {
		line = lines[0]
	}
	return decodeScalar(key, line, dst)
}

func decodeScalar(key, line string, dst reflect.Value) error {
	t := dst.Type()
	if t == charType {
		r, size := utf8.DecodeRuneInString(line)
		if size == 0 {
			return expected(KindExpectedChar, key, line)
		}
		dst.SetInt(int64(r))
		return nil
	}
	if dst.CanAddr() && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		u := dst.Addr().Interface().(encoding.TextUnmarshaler)
		if err := u.UnmarshalText([]byte(line)); err != nil {
			return withKey(err, key)
		}
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		dst.SetString(line)
	case reflect.Bool:
		switch line {
		case "true":
			dst.SetBool(true)
		case "false":
			dst.SetBool(false)
		default:
			return expected(KindExpectedBool, key, line)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(line, 10, t.Bits())
		if err != nil {
			return expected(KindExpectedSigned, key, line)
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(line, 10, t.Bits())
		if err != nil {
			return expected(KindExpectedUnsigned, key, line)
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		// No exponent notation, no inf or nan.
		if line == "" || strings.Trim(line, "+-0123456789.") != "" {
			return expected(KindExpectedFloat, key, line)
		}
		f, err := strconv.ParseFloat(line, t.Bits())
		if err != nil {
			return expected(KindExpectedFloat, key, line)
		}
		dst.SetFloat(f)
	case reflect.Slice:
		if !isByteSlice(t) {
			return unsupported(key, "value of type %s", t)
		}
		if line == "" {
			dst.Set(reflect.Zero(t))
			return nil
		}
		b, err := hex.DecodeString(line)
		if err != nil {
			return expected(KindExpectedByte, key, line)
		}
		dst.SetBytes(b)
	default:
		return unsupported(key, "value of type %s", t)
	}
	return nil
}
