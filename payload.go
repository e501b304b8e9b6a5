package athina

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// maxSanitizeDepth bounds nesting so a pathological value cannot exhaust
// the stack.
const maxSanitizeDepth = 64

// sanitize converts v into a JSON-safe tree of maps, slices and scalars.
// Nil map values and nil slice elements are dropped. Values that cannot be
// encoded are replaced by a string placeholder instead of failing the whole
// payload, and a value that contains itself becomes "<cycle>".
func sanitize(v any) any {
	w := &sanitizer{seen: map[visit]struct{}{}}
	return w.value(v)
}

// visit identifies a reference value on the current path.
type visit struct {
	ptr  uintptr
	kind reflect.Kind
}

type sanitizer struct {
	seen  map[visit]struct{}
	depth int
}

// enter records rv on the current path. It reports false for a cycle or
// when the depth limit is reached; the caller must call leave otherwise.
func (w *sanitizer) enter(rv reflect.Value) (placeholder string, ok bool) {
	if w.depth >= maxSanitizeDepth {
		return "<max depth>", false
	}
	key := visit{ptr: rv.Pointer(), kind: rv.Kind()}
	if _, dup := w.seen[key]; dup {
		return "<cycle>", false
	}
	w.seen[key] = struct{}{}
	w.depth++
	return "", true
}

func (w *sanitizer) leave(rv reflect.Value) {
	delete(w.seen, visit{ptr: rv.Pointer(), kind: rv.Kind()})
	w.depth--
}

func (w *sanitizer) value(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return sanitizeFloat(float64(x))
	case float64:
		return sanitizeFloat(x)
	case time.Time:
		return FormatTime(x)
	case Time:
		if x.IsZero() {
			return nil
		}
		return FormatTime(x.Time)
	case time.Duration:
		return x.Milliseconds()
	case error:
		return x.Error()
	case Message:
		return w.value(x.asMap())
	case []Message:
		return w.value(normalizePrompt(x))
	case Attributes:
		return w.stringMap(x)
	case map[string]any:
		return w.stringMap(x)
	case []any:
		return w.slice(x)
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(x, &out); err != nil {
			return string(x)
		}
		return w.value(out)
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return nil
	}
	switch v.(type) {
	case json.Marshaler, encoding.TextMarshaler:
		return w.viaJSON(v)
	}
	return w.reflectValue(rv)
}

func sanitizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}

func (w *sanitizer) stringMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	rv := reflect.ValueOf(m)
	if p, ok := w.enter(rv); !ok {
		return p
	}
	defer w.leave(rv)
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sv := w.value(v); sv != nil {
			out[k] = sv
		}
	}
	return out
}

func (w *sanitizer) slice(s []any) any {
	if s == nil {
		return []any{}
	}
	rv := reflect.ValueOf(s)
	if p, ok := w.enter(rv); !ok {
		return p
	}
	defer w.leave(rv)
	out := make([]any, 0, len(s))
	for _, v := range s {
		if sv := w.value(v); sv != nil {
			out = append(out, sv)
		}
	}
	return out
}

func (w *sanitizer) reflectValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if p, ok := w.enter(rv); !ok {
			return p
		}
		defer w.leave(rv)
		return w.value(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return w.value(rv.Elem().Interface())
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("<%s>", rv.Type())
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return w.viaJSON(rv.Interface())
		}
		if p, ok := w.enter(rv); !ok {
			return p
		}
		defer w.leave(rv)
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if sv := w.value(iter.Value().Interface()); sv != nil {
				out[iter.Key().String()] = sv
			}
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		if p, ok := w.enter(rv); !ok {
			return p
		}
		defer w.leave(rv)
		return w.elements(rv)
	case reflect.Array:
		return w.elements(rv)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return sanitizeFloat(rv.Float())
	}
	return w.viaJSON(rv.Interface())
}

func (w *sanitizer) elements(rv reflect.Value) []any {
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if sv := w.value(rv.Index(i).Interface()); sv != nil {
			out = append(out, sv)
		}
	}
	return out
}

// viaJSON round-trips v through encoding/json so structs honour their tags.
func (w *sanitizer) viaJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unserializable %T>", v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprintf("<unserializable %T>", v)
	}
	return w.value(out)
}

// compact removes nil values from m in place and returns it.
func compact(m map[string]any) map[string]any {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
	return m
}

// RemoveNil returns a copy of v with nil map values and nil slice elements
// removed at every depth.
func RemoveNil(v any) any {
	return sanitize(v)
}
