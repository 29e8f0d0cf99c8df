// Package layering deep-clones and merges configuration values ordered from
// strongest to weakest. Nil maps, slices, pointers and interfaces count as
// unset and fall through to weaker layers.
package layering

import (
	"fmt"
	"reflect"
)

// Layer is a named snapshot in a stack, e.g. {"host", cfg}.
type Layer[T any] struct {
	Source string
	Value  T
}

// Origins maps dotted key paths ("viewport.width") to the Source of the
// layer that supplied the merged value. Slices and values without exported
// fields are leaves.
type Origins map[string]string

// Clone returns a deep copy of value. Maps, slices, arrays, pointers and
// exported struct fields are copied recursively; other values are copied
// as-is.
func Clone[T any](value T) T {
	var zero T
	cloned := cloneValue(reflect.ValueOf(value))
	if !cloned.IsValid() {
		return zero
	}
	if result, ok := cloned.Interface().(T); ok {
		return result
	}
	return zero
}

// MergeLayers composes snapshots ordered from strongest to weakest. Set
// values in stronger layers win; unset ones are filled from weaker layers.
// No layer is modified.
func MergeLayers[T any](layers ...T) T {
	named := make([]Layer[T], len(layers))
	for i, value := range layers {
		named[i] = Layer[T]{Value: value}
	}
	merged, _ := merge(named, false)
	return merged
}

// MergeNamed merges like MergeLayers and reports which layer supplied each
// leaf of the result.
func MergeNamed[T any](layers ...Layer[T]) (T, Origins) {
	return merge(layers, true)
}

func merge[T any](layers []Layer[T], trace bool) (T, Origins) {
	var zero T
	if len(layers) == 0 {
		return zero, Origins{}
	}

	var origins Origins
	if trace {
		origins = Origins{}
	}

	// Walk from the weakest layer up so stronger sources overwrite origins.
	weakest := layers[len(layers)-1]
	merged := cloneValue(reflect.ValueOf(weakest.Value))
	origins.record(reflect.ValueOf(weakest.Value), "", weakest.Source)
	for i := len(layers) - 2; i >= 0; i-- {
		strong := reflect.ValueOf(layers[i].Value)
		merged = mergeValue(strong, merged)
		origins.record(strong, "", layers[i].Source)
	}

	if !merged.IsValid() {
		return zero, origins
	}
	target := reflect.TypeOf(zero)
	if merged.Type() != target {
		result := reflect.New(target).Elem()
		result.Set(merged.Convert(target))
		return result.Interface().(T), origins
	}
	return merged.Interface().(T), origins
}

// record notes source for every set leaf under v. It mirrors mergeValue:
// anything mergeValue lets fall through is skipped here.
func (o Origins) record(v reflect.Value, path, source string) {
	if o == nil || !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		o.record(v.Elem(), path, source)
	case reflect.Map:
		if v.IsNil() {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			o.record(iter.Value(), joinPath(path, fmt.Sprint(iter.Key().Interface())), source)
		}
	case reflect.Struct:
		if !hasExportedFields(v.Type()) {
			o[path] = source
			return
		}
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if field.IsExported() {
				o.record(v.Field(i), joinPath(path, field.Name), source)
			}
		}
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		o[path] = source
	default:
		o[path] = source
	}
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// mergeValue returns strong with its unset parts filled from weak. Slices
// replace wholesale; maps and structs merge per key or field.
func mergeValue(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var inner reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
			inner = weak.Elem()
		}
		result := reflect.New(strong.Type().Elem())
		result.Elem().Set(mergeValue(strong.Elem(), inner))
		return result
	case reflect.Interface:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var inner reflect.Value
		if weak.IsValid() && !weak.IsNil() {
			inner = weak.Elem()
		}
		return mergeValue(strong.Elem(), inner).Convert(strong.Type())
	case reflect.Struct:
		result := reflect.New(strong.Type()).Elem()
		result.Set(strong)
		sameType := weak.IsValid() && weak.Type() == strong.Type()
		for i := 0; i < strong.NumField(); i++ {
			field := result.Field(i)
			if !field.CanSet() {
				continue
			}
			var inner reflect.Value
			if sameType {
				inner = weak.Field(i)
			}
			field.Set(mergeValue(strong.Field(i), inner))
		}
		return result
	case reflect.Map:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		result := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
			iter := weak.MapRange()
			for iter.Next() {
				result.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
			}
		}
		iter := strong.MapRange()
		for iter.Next() {
			key := iter.Key()
			if existing := result.MapIndex(key); existing.IsValid() {
				result.SetMapIndex(key, mergeValue(iter.Value(), existing))
				continue
			}
			result.SetMapIndex(key, cloneValue(iter.Value()))
		}
		return result
	case reflect.Slice:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	case reflect.Array:
		result := reflect.New(strong.Type()).Elem()
		for i := 0; i < strong.Len(); i++ {
			var inner reflect.Value
			if weak.IsValid() && weak.Kind() == reflect.Array && weak.Len() > i {
				inner = weak.Index(i)
			}
			result.Index(i).Set(mergeValue(strong.Index(i), inner))
		}
		return result
	default:
		return cloneValue(strong)
	}
}

func cloneValue(v reflect.Value) reflect.Value {
	return (&cloner{seen: map[visit]reflect.Value{}}).clone(v)
}

// visit identifies a map, pointer or slice already being copied, so cyclic
// values keep their shape instead of recursing forever.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type cloner struct {
	seen map[visit]reflect.Value
}

func (c *cloner) clone(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if done, ok := c.seen[key]; ok {
			return done
		}
		clone := reflect.New(v.Type().Elem())
		c.seen[key] = clone
		clone.Elem().Set(c.clone(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := c.clone(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		// unexported fields (time.Time and friends) are copied shallowly
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if field := clone.Field(i); field.CanSet() {
				field.Set(c.clone(v.Field(i)))
			}
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if done, ok := c.seen[key]; ok {
			return done
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = clone
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), c.clone(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
		if done, ok := c.seen[key]; ok {
			return done
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = clone
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(c.clone(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(c.clone(v.Index(i)))
		}
		return clone
	default:
		return reflect.ValueOf(v.Interface())
	}
}
