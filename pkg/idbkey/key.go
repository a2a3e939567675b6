package idbkey

import (
	"math"
	"reflect"
	"time"

	"github.com/cuemby/idbstore/pkg/idberrors"
)

// Kind is the tag of a Key's type, in comparison rank order: lower Kind
// values sort before higher ones regardless of value.
type Kind int

const (
	KindNumber Kind = iota
	KindDate
	KindString
	KindBinary
	KindArray
)

// Key is a valid IndexedDB key: a finite number, a finite-time date, a
// string, a binary blob, or a non-recursive array of keys.
type Key struct {
	kind Kind
	num  float64  // Number and Date (Date as Unix milliseconds)
	str  string   // String
	bin  []byte   // Binary
	arr  []Key    // Array
}

func (k Key) Kind() Kind { return k.kind }

// Number builds a number key. The value must be finite.
func Number(v float64) (Key, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Key{}, idberrors.New(idberrors.DataError, "number key must be finite")
	}
	return Key{kind: KindNumber, num: v}, nil
}

// Date builds a date key from a finite-time time.Time.
func Date(t time.Time) (Key, error) {
	ms := float64(t.UnixNano()) / 1e6
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return Key{}, idberrors.New(idberrors.DataError, "date key must be finite")
	}
	return Key{kind: KindDate, num: ms}, nil
}

// DateValue returns the Unix-millisecond value of a KindDate key.
func (k Key) DateValue() float64 { return k.num }

// NumberValue returns the numeric value of a KindNumber key.
func (k Key) NumberValue() float64 { return k.num }

// String builds a string key.
func String(s string) Key {
	return Key{kind: KindString, str: s}
}

// StringValue returns the string value of a KindString key.
func (k Key) StringValue() string { return k.str }

// Binary builds a binary key from a copy of b's referenced bytes (spec:
// typed-array views are canonicalised to a copy of the underlying range).
func Binary(b []byte) Key {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Key{kind: KindBinary, bin: cp}
}

// BinaryValue returns the byte value of a KindBinary key.
func (k Key) BinaryValue() []byte { return k.bin }

// Array builds an array key. Elements must already be valid keys; arrays
// are rejected if they are self-referential once constructed from Go
// values via ValueOf (Array itself trusts the caller, since a []Key built
// by hand in Go cannot reference itself without unsafe tricks).
func Array(elems []Key) Key {
	cp := make([]Key, len(elems))
	copy(cp, elems)
	return Key{kind: KindArray, arr: cp}
}

// ArrayValue returns the element keys of a KindArray key.
func (k Key) ArrayValue() []Key { return k.arr }

// ValueOf validates an arbitrary Go value as a key per spec §4.1,
// rejecting NaN/infinite numbers, invalid times, unsupported types, and
// sparse/recursive/invalid-element arrays. Typed-array-like inputs
// ([]byte, and anything convertible to one via reflection over a byte
// slice) are canonicalised to a binary key.
func ValueOf(v any) (Key, error) {
	return valueOf(v, map[uintptr]bool{})
}

func valueOf(v any, seen map[uintptr]bool) (Key, error) {
	switch x := v.(type) {
	case nil:
		return Key{}, idberrors.New(idberrors.DataError, "undefined is not a valid key")
	case Key:
		return x, nil
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case time.Time:
		return Date(x)
	case string:
		return String(x), nil
	case []byte:
		return Binary(x), nil
	case []any:
		return arrayValueOf(x, seen)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return Binary(b), nil
		}
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return arrayValueOf(elems, seen)
	}

	return Key{}, idberrors.Newf(idberrors.DataError, "value of type %T is not a valid key", v)
}

func arrayValueOf(elems []any, seen map[uintptr]bool) (Key, error) {
	ptr := sliceDataPtr(elems)
	if ptr != 0 {
		if seen[ptr] {
			return Key{}, idberrors.New(idberrors.DataError, "recursive array is not a valid key")
		}
		seen = cloneSeen(seen)
		seen[ptr] = true
	}

	out := make([]Key, len(elems))
	for i, e := range elems {
		k, err := valueOf(e, seen)
		if err != nil {
			return Key{}, idberrors.Newf(idberrors.DataError, "invalid key at array index %d: %v", i, err)
		}
		out[i] = k
	}
	return Key{kind: KindArray, arr: out}, nil
}

func cloneSeen(m map[uintptr]bool) map[uintptr]bool {
	cp := make(map[uintptr]bool, len(m)+1)
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func sliceDataPtr(s []any) uintptr {
	if s == nil {
		return 0
	}
	return reflect.ValueOf(s).Pointer()
}
