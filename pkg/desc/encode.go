package desc

import (
	"bytes"
	"encoding"
	"encoding/hex"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Marshal returns the desc encoding of v.
func Marshal(v any, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, opts...).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encoder writes desc documents to an output stream.
type Encoder struct {
	w    io.Writer
	opts options
}

// NewEncoder returns an encoder that writes to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: newOptions(opts)}
}

// Encode writes the desc encoding of v. Nothing is written if v cannot be encoded.
//
// v must be a Record, a struct, a map with string keys, or a pointer to one of them.
func (e *Encoder) Encode(v any) error {
	out := &docWriter{nl: e.opts.lineEnding.Newline()}

	if rec, ok := v.(Record); ok {
		if err := encodeRecord(out, rec); err != nil {
			return err
		}
		_, err := e.w.Write(out.buf.Bytes())
		return err
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return unsupported("", "nil root")
		}
		rv = rv.Elem()
	}

	var err error
	switch {
	case rv.Kind() == reflect.Struct && rv.Type() != emptyType:
		err = encodeStruct(out, rv)
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		err = encodeMap(out, rv)
	case !rv.IsValid():
		err = unsupported("", "nil root")
	default:
		err = unsupported("", "root of type %s must be a struct or a map with string keys", rv.Type())
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write(out.buf.Bytes())
	return err
}

type docWriter struct {
	buf bytes.Buffer
	nl  string
}

func (d *docWriter) record(key string, lines []string) error {
	for _, line := range lines {
		if strings.ContainsAny(line, "\r\n") {
			return unsupported(key, "value contains a line break")
		}
	}
	d.buf.WriteString("%" + key + "%" + d.nl)
	for _, line := range lines {
		d.buf.WriteString(line + d.nl)
	}
	d.buf.WriteString(d.nl)
	return nil
}

func encodeRecord(out *docWriter, rec Record) error {
	seen := make(map[string]string)
	return rec.ForEachField(func(name string, value any) error {
		key := strings.ToUpper(name)
		if prev, ok := seen[key]; ok {
			return unsupported(key, "field %q conflicts with %q", name, prev)
		}
		seen[key] = name
		lines, err := encodeValue(key, reflect.ValueOf(value))
		if err != nil {
			return err
		}
		return out.record(key, lines)
	})
}

func encodeStruct(out *docWriter, rv reflect.Value) error {
	s, err := schemaFor(rv.Type())
	if err != nil {
		return err
	}
	for _, f := range s.fields {
		fv := rv.FieldByIndex(f.index)
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		lines, err := encodeValue(f.name, fv)
		if err != nil {
			return err
		}
		if err := out.record(f.name, lines); err != nil {
			return err
		}
	}
	if s.extra == nil {
		return nil
	}

	extra := rv.FieldByIndex(s.extra).Interface().(map[string][]string)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := strings.ToUpper(k)
		if _, known := s.byName[key]; known {
			return unsupported(key, "extra key shadows a declared field")
		}
		if err := out.record(key, extra[k]); err != nil {
			return err
		}
	}
	return nil
}

func encodeMap(out *docWriter, rv reflect.Value) error {
	keys := make([]string, 0, rv.Len())
	byUpper := make(map[string]string, rv.Len())
	for _, k := range rv.MapKeys() {
		name := k.String()
		upper := strings.ToUpper(name)
		if prev, ok := byUpper[upper]; ok {
			return unsupported(upper, "map keys %q and %q differ only in case", prev, name)
		}
		byUpper[upper] = name
		keys = append(keys, name)
	}
	sort.Strings(keys)

	for _, name := range keys {
		key := strings.ToUpper(name)
		lines, err := encodeValue(key, rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key())))
		if err != nil {
			return err
		}
		if err := out.record(key, lines); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map, reflect.String:
		return v.Len() == 0
	default:
		return false
	}
}

// encodeValue renders a field value as the lines of its block. A nil result is an empty block.
func encodeValue(key string, v reflect.Value) ([]string, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if err := checkType(v.Type(), false); err != nil {
		return nil, withKey(err, key)
	}

	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		return encodeValue(key, v.Elem())
	}
	if v.Type() == emptyType {
		return nil, nil
	}
	if v.Kind() == reflect.Slice && !isByteSlice(v.Type()) && !isTextType(v.Type()) {
		lines := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() == reflect.Interface && !elem.IsNil() {
				elem = elem.Elem()
				if err := checkType(elem.Type(), true); err != nil {
					return nil, withKey(err, key)
				}
			}
			line, err := encodeScalar(key, elem)
			if err != nil {
				return nil, err
			}
			if line == "" {
				return nil, unsupported(key, "list element %d is empty", i)
			}
			lines = append(lines, line)
		}
		return lines, nil
	}

	line, err := encodeScalar(key, v)
	if err != nil {
		return nil, err
	}
	return []string{line}, nil
}

func encodeScalar(key string, v reflect.Value) (string, error) {
	if v.Type() == charType {
		return string(rune(v.Int())), nil
	}
	if m, ok := textMarshaler(v); ok {
		text, err := m.MarshalText()
		if err != nil {
			return "", withKey(err, key)
		}
		return string(text), nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), nil
	case reflect.Slice:
		if isByteSlice(v.Type()) {
			return hex.EncodeToString(v.Bytes()), nil
		}
	}
	return "", unsupported(key, "value of type %s", v.Type())
}

func textMarshaler(v reflect.Value) (encoding.TextMarshaler, bool) {
	if v.Type().Implements(textMarshalerType) {
		if v.Kind() == reflect.Interface && v.IsNil() {
			return nil, false
		}
		return v.Interface().(encoding.TextMarshaler), true
	}
	if reflect.PointerTo(v.Type()).Implements(textMarshalerType) {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		return ptr.Interface().(encoding.TextMarshaler), true
	}
	return nil, false
}
