package util

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// ValidationError reports the first tool parameter that does not match the
// tool's schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives an object schema from the exported fields of a struct.
// Field names follow the json tag, the description tag is copied, and an
// enum tag ("a|b|c") restricts string values. Fields without omitempty that
// are not pointers are required.
func CreateSchema(structType any) map[string]any {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}

	t := reflect.TypeOf(structType)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	props := schema["properties"].(map[string]any)

	var required []string

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}

		name, optional, skip := jsonField(f)
		if skip {
			continue
		}

		prop := map[string]any{"type": jsonKind(f.Type)}
		if d := f.Tag.Get("description"); d != "" {
			prop["description"] = d
		}

		if e := f.Tag.Get("enum"); e != "" {
			prop["enum"] = strings.Split(e, "|")
		}

		props[name] = prop

		if !optional && f.Type.Kind() != reflect.Pointer {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func jsonField(f reflect.StructField) (name string, optional, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}

	for opt := range strings.SplitSeq(opts, ",") {
		if strings.TrimSpace(opt) == "omitempty" {
			optional = true
		}
	}

	return name, optional, false
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonKind(t.Elem())
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// ValidateParameters checks params against an object schema: required
// fields must be present and non-nil, known fields must match their type and
// enum. Unknown fields pass through. Schemas may come from Go literals or
// from decoded JSON, so both []string and []any lists are accepted.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range stringList(schema["required"]) {
		if params[name] == nil {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	props, _ := schema["properties"].(map[string]any)

	for name, value := range params {
		prop, ok := props[name].(map[string]any)
		if !ok || value == nil {
			continue
		}

		want, _ := prop["type"].(string)
		if !matchesKind(value, want) {
			return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("expected type %s, got %T", want, value)}
		}

		if enum := stringList(prop["enum"]); len(enum) > 0 && !slices.Contains(enum, fmt.Sprint(value)) {
			return &ValidationError{Field: name, Value: value, Message: "must be one of " + strings.Join(enum, ", ")}
		}
	}

	return nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, x := range l {
			out = append(out, fmt.Sprint(x))
		}

		return out
	default:
		return nil
	}
}

func matchesKind(v any, kind string) bool {
	rv := reflect.ValueOf(v)

	switch kind {
	case "string":
		return rv.Kind() == reflect.String
	case "boolean":
		return rv.Kind() == reflect.Bool
	case "integer":
		switch {
		case rv.CanInt(), rv.CanUint():
			return true
		case rv.CanFloat():
			// Decoded JSON numbers arrive as float64.
			f := rv.Float()
			return f == math.Trunc(f)
		}

		return false
	case "number":
		return rv.CanInt() || rv.CanUint() || rv.CanFloat()
	case "array":
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case "object":
		return rv.Kind() == reflect.Map
	default:
		return true
	}
}
