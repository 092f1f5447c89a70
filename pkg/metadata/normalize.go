// Package metadata flattens arbitrary document metadata into a map of
// primitives and primitive lists that every vector backend can persist.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/papercomputeco/vellum/pkg/document"
)

// MaxDepth bounds how deep nested values are walked before they are
// stringified.
const MaxDepth = 32

// Normalize converts metadata into a storage safe map. Values JSON cannot
// carry are stringified, nested maps are flattened into dotted keys and the
// result is re-parsed into plain primitives. If the JSON round trip fails the
// map falls back to per-key stringification. source_type and source_authority
// are never dropped or renamed.
func Normalize(md map[string]any) map[string]any {
	out, err := roundTrip(md)
	if err != nil {
		out = Stringify(md)
	}

	// An emergency stringified authority is still numeric text; keep it an int.
	if v, ok := md[document.KeySourceAuthority]; ok {
		if tier, ok := integral(v); ok {
			out[document.KeySourceAuthority] = tier
		}
	}
	if v, ok := md[document.KeySourceType]; ok {
		if _, present := out[document.KeySourceType]; !present {
			out[document.KeySourceType] = safeString(v)
		}
	}
	return out
}

// Stringify is the emergency path: every key and value is rendered with a
// cycle safe formatter.
func Stringify(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = safeString(v)
	}
	return out
}

func roundTrip(md map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("normalizing metadata: %v", r)
		}
	}()

	prepared := make(map[string]any, len(md))
	for k, v := range md {
		prepared[k] = prepare(reflect.ValueOf(v), 0, map[uintptr]bool{})
	}

	raw, err := json.Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	out = make(map[string]any, len(parsed))
	flatten("", parsed, out)
	return out, nil
}

// prepare is the string fallback converter: it replaces anything encoding/json
// would reject with its string form.
func prepare(rv reflect.Value, depth int, path map[uintptr]bool) any {
	if !rv.IsValid() {
		return nil
	}
	if depth > MaxDepth {
		return safeString(rv.Interface())
	}

	if rv.CanInterface() {
		if _, ok := rv.Interface().(json.Marshaler); ok {
			return rv.Interface()
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.String:
		return rv.String()
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return prepare(rv.Elem(), depth, path)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if path[ptr] {
			return cycleMarker(rv)
		}
		path[ptr] = true
		defer delete(path, ptr)
		return prepare(rv.Elem(), depth+1, path)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if path[ptr] {
			return cycleMarker(rv)
		}
		path[ptr] = true
		defer delete(path, ptr)

		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[keyString(iter.Key())] = prepare(iter.Value(), depth+1, path)
		}
		return m
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		ptr := rv.Pointer()
		if rv.Len() > 0 && path[ptr] {
			return cycleMarker(rv)
		}
		if rv.Len() > 0 {
			path[ptr] = true
			defer delete(path, ptr)
		}
		return prepareList(rv, depth, path)
	case reflect.Array:
		return prepareList(rv, depth, path)
	case reflect.Struct:
		// Structs go through encoding/json as is; unsupported fields make the
		// round trip fail and trigger Stringify.
		if rv.CanInterface() {
			return rv.Interface()
		}
		return safeString(nil)
	default:
		// func, chan, complex, unsafe pointer
		if rv.CanInterface() {
			return safeString(rv.Interface())
		}
		return rv.Kind().String()
	}
}

func prepareList(rv reflect.Value, depth int, path map[uintptr]bool) []any {
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = prepare(rv.Index(i), depth+1, path)
	}
	return list
}

func cycleMarker(rv reflect.Value) string {
	return fmt.Sprintf("<cycle %s>", rv.Type())
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		return safeString(k.Interface())
	}
	return k.Kind().String()
}

// flatten writes nested maps into dst using dotted keys and turns every list
// into a list of primitives.
func flatten(prefix string, src map[string]any, dst map[string]any) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			if len(val) == 0 {
				dst[key] = "{}"
				continue
			}
			flatten(key, val, dst)
		case []any:
			list := make([]any, len(val))
			for i, item := range val {
				list[i] = primitive(item)
			}
			dst[key] = list
		default:
			dst[key] = primitive(val)
		}
	}
}

func primitive(v any) any {
	switch val := v.(type) {
	case nil, string, bool:
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	default:
		// nested map or list inside a list
		raw, err := json.Marshal(val)
		if err != nil {
			return safeString(val)
		}
		return string(raw)
	}
}

func integral(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case float32:
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// safeString formats any value without following cycles.
func safeString(v any) string {
	var b strings.Builder
	describe(&b, reflect.ValueOf(v), 0, map[uintptr]bool{})
	return b.String()
}

func describe(b *strings.Builder, rv reflect.Value, depth int, path map[uintptr]bool) {
	if !rv.IsValid() {
		b.WriteString("<nil>")
		return
	}
	if depth > MaxDepth {
		b.WriteString("...")
		return
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			b.WriteString("<nil>")
			return
		}
		describe(b, rv.Elem(), depth, path)
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			b.WriteString("<nil>")
			return
		}
		ptr := rv.Pointer()
		if path[ptr] && (rv.Kind() != reflect.Slice || rv.Len() > 0) {
			fmt.Fprintf(b, "<cycle %s>", rv.Type())
			return
		}
		path[ptr] = true
		defer delete(path, ptr)

		switch rv.Kind() {
		case reflect.Pointer:
			b.WriteString("&")
			describe(b, rv.Elem(), depth+1, path)
		case reflect.Map:
			keys := rv.MapKeys()
			sort.Slice(keys, func(i, j int) bool {
				return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
			})
			b.WriteString("map[")
			for i, k := range keys {
				if i > 0 {
					b.WriteString(" ")
				}
				describe(b, k, depth+1, path)
				b.WriteString(":")
				describe(b, rv.MapIndex(k), depth+1, path)
			}
			b.WriteString("]")
		case reflect.Slice:
			describeList(b, rv, depth, path)
		}
	case reflect.Array:
		describeList(b, rv, depth, path)
	case reflect.Struct:
		fmt.Fprintf(b, "%s{", rv.Type())
		for i := 0; i < rv.NumField(); i++ {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(rv.Type().Field(i).Name)
			b.WriteString(":")
			describe(b, rv.Field(i), depth+1, path)
		}
		b.WriteString("}")
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		fmt.Fprintf(b, "<%s>", rv.Type())
	default:
		if rv.CanInterface() {
			fmt.Fprint(b, rv.Interface())
			return
		}
		fmt.Fprintf(b, "<%s>", rv.Kind())
	}
}

func describeList(b *strings.Builder, rv reflect.Value, depth int, path map[uintptr]bool) {
	b.WriteString("[")
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		describe(b, rv.Index(i), depth+1, path)
	}
	b.WriteString("]")
}

// IsCyclic reports whether v refers back to itself through maps, slices or
// pointers, or nests deeper than MaxDepth.
func IsCyclic(v any) bool {
	return cyclic(reflect.ValueOf(v), 0, map[uintptr]bool{})
}

func cyclic(rv reflect.Value, depth int, path map[uintptr]bool) bool {
	if !rv.IsValid() {
		return false
	}
	if depth > MaxDepth {
		return true
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return cyclic(rv.Elem(), depth, path)
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return false
		}
		if rv.Kind() == reflect.Slice && rv.Len() == 0 {
			return false
		}
		ptr := rv.Pointer()
		if path[ptr] {
			return true
		}
		path[ptr] = true
		defer delete(path, ptr)

		switch rv.Kind() {
		case reflect.Pointer:
			return cyclic(rv.Elem(), depth+1, path)
		case reflect.Map:
			iter := rv.MapRange()
			for iter.Next() {
				if cyclic(iter.Value(), depth+1, path) {
					return true
				}
			}
		case reflect.Slice:
			for i := 0; i < rv.Len(); i++ {
				if cyclic(rv.Index(i), depth+1, path) {
					return true
				}
			}
		}
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if cyclic(rv.Index(i), depth+1, path) {
				return true
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if cyclic(rv.Field(i), depth+1, path) {
				return true
			}
		}
	}
	return false
}
