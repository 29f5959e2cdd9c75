package desc

// Char is a single character value. It is written as the character itself and read back
// from the first character of the line.
type Char rune

// Empty is a value without content. Its block is always empty.
type Empty struct{}

// Record lets a type enumerate its own fields when it is the root of Marshal. Fields are
// emitted in callback order.
type Record interface {
	ForEachField(fn func(name string, value any) error) error
}

// Fields lets a type receive records when it is the root of Unmarshal. FieldNames declares
// the known keys; SetField is called once per matching record with the declared name.
type Fields interface {
	FieldNames() []string
	SetField(name string, value Value) error
}

// Value is the undecoded block of one record handed to Fields.SetField.
type Value struct {
	key   string
	lines []string
}

// Key returns the key as it appeared in the input.
func (v Value) Key() string {
	return v.key
}

// Lines returns the raw lines of the block.
func (v Value) Lines() []string {
	return v.lines
}

// IsEmpty reports whether the block has no lines.
func (v Value) IsEmpty() bool {
	return len(v.lines) == 0
}

// Decode parses the block into target, which must be a non-nil pointer, with the same rules
// used for struct fields.
func (v Value) Decode(target any) error {
	return decodeInto(v.key, v.lines, target)
}
