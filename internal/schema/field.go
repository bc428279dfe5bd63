// Package schema declares the structured records the LLM is asked to
// produce and parses raw completions against them.
package schema

// Kind is the JSON type of a declared field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Field describes one member of an object. Elem is set for arrays and
// Fields for objects.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Optional    bool
	Elem        *Field
	Fields      []Field
}

func Str(name, desc string) Field   { return Field{Name: name, Kind: KindString, Description: desc} }
func Int(name, desc string) Field   { return Field{Name: name, Kind: KindInt, Description: desc} }
func Float(name, desc string) Field { return Field{Name: name, Kind: KindFloat, Description: desc} }
func Bool(name, desc string) Field  { return Field{Name: name, Kind: KindBool, Description: desc} }

// Obj declares a nested object.
func Obj(name, desc string, fields ...Field) Field {
	return Field{Name: name, Kind: KindObject, Description: desc, Fields: fields}
}

// Strs declares a list of strings.
func Strs(name, desc string) Field {
	return Field{Name: name, Kind: KindArray, Description: desc, Elem: &Field{Kind: KindString}}
}

// Floats declares a list of numbers.
func Floats(name, desc string) Field {
	return Field{Name: name, Kind: KindArray, Description: desc, Elem: &Field{Kind: KindFloat}}
}

// Objects declares a list of objects sharing one shape.
func Objects(name, desc string, fields ...Field) Field {
	return Field{Name: name, Kind: KindArray, Description: desc, Elem: &Field{Kind: KindObject, Fields: fields}}
}

// Optional marks f as not required. An absent or null optional field
// decodes to its zero value.
func Optional(f Field) Field {
	f.Optional = true
	return f
}
