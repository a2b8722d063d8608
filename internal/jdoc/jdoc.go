// Package jdoc models a loosely-typed JSON document tree and serializes it
// canonically, so that writing the same tree twice produces byte-identical
// output.
//
// The tree is the plain encoding/json shape (map[string]any, []any) with
// numbers kept as json.Number to avoid float64 precision loss on large
// timestamps. The aliases Object and Array exist for readability; type
// assertions against the underlying map and slice types keep working.
package jdoc

import (
	"encoding/json"
	"fmt"
	"io"
)

// Object is a JSON object node.
type Object = map[string]any

// Array is a JSON array node.
type Array = []any

// Decode parses a JSON document whose root is an object. Numbers are
// preserved as json.Number.
func Decode(r io.Reader) (Object, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("document root is %T, want object", v)
	}
	return obj, nil
}

// Obj returns v as an Object, or nil if it is not one.
func Obj(v any) Object {
	obj, _ := v.(Object)
	return obj
}

// Arr returns v as an Array, or nil if it is not one.
func Arr(v any) Array {
	arr, _ := v.(Array)
	return arr
}

// ObjAt returns the object stored under key, or nil.
func ObjAt(o Object, key string) Object {
	return Obj(o[key])
}

// ArrAt returns the array stored under key, or nil.
func ArrAt(o Object, key string) Array {
	return Arr(o[key])
}

// Str returns the string stored under key, or "" when absent or not a
// string.
func Str(o Object, key string) string {
	s, _ := o[key].(string)
	return s
}

// Int returns the integer stored under key. Numbers decoded by Decode
// arrive as json.Number; fractional values are truncated.
func Int(o Object, key string) (int64, bool) {
	return asInt(o[key])
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
