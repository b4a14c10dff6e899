package buildconfig

import "reflect"

// Merge returns a new Configuration combining base and overlay.
//
// For every key: when both values are slices the overlay's elements are
// appended after the base's; when both are mappings they are merged
// recursively; otherwise the overlay value replaces the base value. Keys
// present on one side only are copied through. Neither input is modified and
// the result shares no map or slice with them.
func Merge(base, overlay Configuration) Configuration {
	return Configuration(mergeMaps(base, overlay))
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = clone(v)
	}
	for k, ov := range overlay {
		bv, ok := base[k]
		if !ok {
			out[k] = clone(ov)
			continue
		}
		out[k] = mergeValue(bv, ov)
	}
	return out
}

func mergeValue(base, overlay any) any {
	if bm, ok := asMap(base); ok {
		if om, ok := asMap(overlay); ok {
			merged := mergeMaps(bm, om)
			if _, isConfig := base.(Configuration); isConfig {
				return Configuration(merged)
			}
			return merged
		}
	}

	if isSlice(base) && isSlice(overlay) {
		return concat(base, overlay)
	}

	return clone(overlay)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Configuration:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

func isSlice(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Slice
}

// concat keeps the slice type when both sides share it and falls back to
// []any when they differ.
func concat(base, overlay any) any {
	bv := reflect.ValueOf(base)
	ov := reflect.ValueOf(overlay)

	if bv.Type() == ov.Type() {
		out := reflect.MakeSlice(bv.Type(), 0, bv.Len()+ov.Len())
		out = appendCloned(out, bv)
		out = appendCloned(out, ov)
		return out.Interface()
	}

	out := make([]any, 0, bv.Len()+ov.Len())
	for _, v := range []reflect.Value{bv, ov} {
		for i := range v.Len() {
			out = append(out, clone(v.Index(i).Interface()))
		}
	}
	return out
}

func appendCloned(dst, src reflect.Value) reflect.Value {
	for i := range src.Len() {
		dst = reflect.Append(dst, clonedElem(src.Index(i), dst.Type().Elem()))
	}
	return dst
}

func clonedElem(v reflect.Value, elemType reflect.Type) reflect.Value {
	c := clone(v.Interface())
	if c == nil {
		return reflect.Zero(elemType)
	}
	return reflect.ValueOf(c)
}

// clone deep-copies maps and slices. Everything else, handles included, is
// returned as is.
func clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Configuration:
		return Configuration(cloneMap(t))
	case map[string]any:
		return cloneMap(t)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}

	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	for i := range rv.Len() {
		out.Index(i).Set(clonedElem(rv.Index(i), rv.Type().Elem()))
	}
	return out.Interface()
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}
