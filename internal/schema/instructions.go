package schema

import (
	"encoding/json"
	"strings"
)

const instructionsHeader = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

As an example, for the schema {"properties": {"foo": {"title": "Foo", "description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}
the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.

Respond with the JSON object only, without markdown or commentary.

Here is the output schema:
`

// Instructions renders the format instructions injected into prompts.
// The output is deterministic for a given schema.
func (s Schema[T]) Instructions() string {
	root := objectSchema(s.Fields)
	root["title"] = s.Name

	// maps, slices and strings only; marshalling cannot fail
	b, _ := json.MarshalIndent(root, "", "  ")

	var sb strings.Builder
	sb.WriteString(instructionsHeader)
	sb.WriteString("```\n")
	sb.Write(b)
	sb.WriteString("\n```")
	return sb.String()
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldSchema(f Field) map[string]any {
	var out map[string]any
	switch f.Kind {
	case KindObject:
		out = objectSchema(f.Fields)
	case KindArray:
		out = map[string]any{"type": "array", "items": fieldSchema(*f.Elem)}
	default:
		out = map[string]any{"type": f.Kind.String()}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}
