package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// Schema binds a declared record shape to its Go decoder.
type Schema[T any] struct {
	Name   string
	Fields []Field
	Decode func(*Object) T
}

// ValidationError reports a completion that does not match its schema.
type ValidationError struct {
	Schema string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema %s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("schema %s: field %s: %s", e.Schema, e.Path, e.Reason)
}

// Parse validates raw against s and decodes it. Either every declared
// required field is present and type-correct or an error is returned;
// there are no partial results.
func Parse[T any](raw string, s Schema[T]) (T, error) {
	var zero T

	doc, ok := extractJSON(raw)
	if !ok {
		return zero, &ValidationError{Schema: s.Name, Reason: "completion is not valid JSON"}
	}
	root := gjson.Parse(doc)
	if !root.IsObject() {
		return zero, &ValidationError{Schema: s.Name, Reason: "completion is not a JSON object"}
	}

	obj, err := validateObject(s.Name, "", root, s.Fields)
	if err != nil {
		return zero, err
	}
	return s.Decode(obj), nil
}

// extractJSON strips a surrounding markdown code fence and, failing that,
// falls back to the outermost braces.
func extractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "```"); start >= 0 {
		inner := text[start+3:]
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		inner = strings.TrimPrefix(inner, "json")
		text = strings.TrimSpace(inner)
	}
	if gjson.Valid(text) {
		return text, true
	}
	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first >= 0 && last > first && gjson.Valid(text[first:last+1]) {
		return text[first : last+1], true
	}
	return "", false
}

func validateObject(name, path string, r gjson.Result, fields []Field) (*Object, error) {
	obj := &Object{values: make(map[string]any, len(fields))}
	members := r.Map()
	for _, f := range fields {
		fieldPath := joinPath(path, f.Name)
		v, ok := members[f.Name]
		if !ok || v.Type == gjson.Null {
			if f.Optional {
				continue
			}
			return nil, &ValidationError{Schema: name, Path: fieldPath, Reason: "required field missing"}
		}
		val, err := validateValue(name, fieldPath, v, f)
		if err != nil {
			return nil, err
		}
		obj.values[f.Name] = val
	}
	return obj, nil
}

func validateValue(name, path string, v gjson.Result, f Field) (any, error) {
	mismatch := func() error {
		return &ValidationError{Schema: name, Path: path, Reason: fmt.Sprintf("expected %s, got %s", f.Kind, describe(v))}
	}

	switch f.Kind {
	case KindString:
		if v.Type != gjson.String {
			return nil, mismatch()
		}
		return v.Str, nil

	case KindInt:
		n, ok := coerceInt(v)
		if !ok {
			return nil, mismatch()
		}
		return n, nil

	case KindFloat:
		switch v.Type {
		case gjson.Number:
			return v.Num, nil
		case gjson.String:
			if fv, ok := parseFloat(v.Str); ok {
				return fv, nil
			}
		}
		return nil, mismatch()

	case KindBool:
		switch v.Type {
		case gjson.True, gjson.False:
			return v.Bool(), nil
		case gjson.Number:
			if v.Num == 0 || v.Num == 1 {
				return v.Num == 1, nil
			}
		case gjson.String:
			if b, err := cast.ToBoolE(strings.TrimSpace(v.Str)); err == nil {
				return b, nil
			}
		}
		return nil, mismatch()

	case KindObject:
		if !v.IsObject() {
			return nil, mismatch()
		}
		return validateObject(name, path, v, f.Fields)

	case KindArray:
		if !v.IsArray() {
			return nil, mismatch()
		}
		items := v.Array()
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := path + "[" + strconv.Itoa(i) + "]"
			if item.Type == gjson.Null {
				return nil, &ValidationError{Schema: name, Path: itemPath, Reason: "null list element"}
			}
			val, err := validateValue(name, itemPath, item, *f.Elem)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	return nil, mismatch()
}

// coerceInt accepts integral numbers and base-10 numeric strings holding
// an integral value. Fractions, booleans and values outside the int range
// are rejected.
func coerceInt(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return integral(v.Num)
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if n, err := strconv.ParseInt(s, 10, 0); err == nil {
			return int(n), true
		}
		f, ok := parseFloat(s)
		if !ok {
			return 0, false
		}
		return integral(f)
	}
	return 0, false
}

func integral(f float64) (int, bool) {
	if f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return 0, false
	}
	return int(f), true
}

// parseFloat parses a finite decimal number. NaN and infinities are
// rejected since they cannot be encoded as JSON.
func parseFloat(s string) (float64, bool) {
	f, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func describe(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "object"
	case v.IsArray():
		return "array"
	case v.Type == gjson.String:
		return strconv.Quote(v.Str)
	default:
		return v.Raw
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
