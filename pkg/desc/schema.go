package desc

import (
	"encoding"
	"reflect"
	"strings"
	"sync"
)

const tagName = "desc"

var (
	charType            = reflect.TypeFor[Char]()
	emptyType           = reflect.TypeFor[Empty]()
	extraType           = reflect.TypeFor[map[string][]string]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

type field struct {
	name      string
	index     []int
	typ       reflect.Type
	omitEmpty bool
}

type schema struct {
	fields []field
	byName map[string]int
	extra  []int
}

type schemaResult struct {
	schema *schema
	err    error
}

var schemaCache sync.Map // map[reflect.Type]schemaResult

// schemaFor returns the cached field layout of struct type t.
func schemaFor(t reflect.Type) (*schema, error) {
	if cached, ok := schemaCache.Load(t); ok {
		res := cached.(schemaResult)
		return res.schema, res.err
	}
	s, err := buildSchema(t)
	schemaCache.Store(t, schemaResult{schema: s, err: err})
	return s, err
}

func buildSchema(t reflect.Type) (*schema, error) {
	s := &schema{byName: make(map[string]int)}
	declared := make(map[string]string)

	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() {
			continue
		}
		if sf.Anonymous {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
				return nil, unsupported("", "embedded pointer %s in %s", ft, t)
			}
			if ft.Kind() == reflect.Struct && ft != emptyType {
				// Promoted fields follow in the VisibleFields order.
				continue
			}
		}

		tag := sf.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToUpper(sf.Name)
		}

		if hasOption(opts, "extra") {
			if sf.Type != extraType {
				return nil, unsupported(name, "extra field %s must be map[string][]string", sf.Name)
			}
			if s.extra != nil {
				return nil, unsupported(name, "more than one extra field in %s", t)
			}
			s.extra = sf.Index
			continue
		}

		upper := strings.ToUpper(name)
		if prev, ok := declared[upper]; ok {
			if prev == name {
				return nil, unsupported(name, "duplicate field name in %s", t)
			}
			return nil, unsupported(name, "field names %q and %q in %s differ only in case", prev, name, t)
		}
		if err := checkType(sf.Type, false); err != nil {
			return nil, withKey(err, upper)
		}
		declared[upper] = name
		s.byName[upper] = len(s.fields)
		s.fields = append(s.fields, field{
			name:      upper,
			index:     sf.Index,
			typ:       sf.Type,
			omitEmpty: hasOption(opts, "omitempty"),
		})
	}
	return s, nil
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

// checkNames rejects name sets that are ambiguous when matched case-insensitively.
func checkNames(names []string) (map[string]string, error) {
	byUpper := make(map[string]string, len(names))
	for _, name := range names {
		upper := strings.ToUpper(name)
		if prev, ok := byUpper[upper]; ok {
			if prev == name {
				return nil, unsupported(name, "duplicate field name")
			}
			return nil, unsupported(name, "field names %q and %q differ only in case", prev, name)
		}
		byUpper[upper] = name
	}
	return byUpper, nil
}

func isTextType(t reflect.Type) bool {
	return t.Implements(textMarshalerType) || t.Implements(textUnmarshalerType) ||
		reflect.PointerTo(t).Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

// checkType reports whether values of type t can be represented in a value block.
func checkType(t reflect.Type, inList bool) error {
	switch {
	case t.Kind() == reflect.Pointer:
		if inList {
			return unsupported("", "optional list element %s", t)
		}
		if t.Elem().Kind() == reflect.Pointer {
			return unsupported("", "nested optional %s", t)
		}
		return checkType(t.Elem(), false)
	case t == charType:
		return nil
	case t == emptyType:
		if inList {
			return unsupported("", "list of empty values")
		}
		return nil
	case isTextType(t):
		return nil
	}

	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Interface:
		return nil
	case reflect.Slice:
		if isByteSlice(t) {
			if inList {
				return unsupported("", "list of byte sequences")
			}
			return nil
		}
		if inList {
			return unsupported("", "sequence of sequences")
		}
		return checkType(t.Elem(), true)
	case reflect.Struct:
		return unsupported("", "nested struct %s", t)
	case reflect.Map:
		return unsupported("", "nested map %s", t)
	default:
		return unsupported("", "type %s", t)
	}
}
