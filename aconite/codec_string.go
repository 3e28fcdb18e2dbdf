// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"encoding"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

var (
	durationType        = reflect.TypeFor[time.Duration]()
	timeType            = reflect.TypeFor[time.Time]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// CastStrings handles strings, booleans, numbers, durations, timestamps,
// encoding.TextUnmarshaler implementations and pointers to any of these.
func CastStrings() StringSerializerFactory {
	return StringSerializerFactoryFunc(func(_ Metadata, t reflect.Type) StringSerializer {
		if !castable(t) {
			return nil
		}
		return castSerializer{t: t}
	})
}

func castable(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		if t.Kind() == reflect.Pointer {
			return false
		}
	}
	if t == durationType || t == timeType || reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Interface:
		return t.NumMethod() == 0
	}
	return false
}

type castSerializer struct {
	t reflect.Type
}

func (c castSerializer) Serialize(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return "", false
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	switch x := rv.Interface().(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	s, err := cast.ToStringE(rv.Interface())
	if err != nil {
		return fmt.Sprint(rv.Interface()), true
	}
	return s, true
}

func (c castSerializer) Deserialize(s string) (any, error) {
	t := c.t
	if t.Kind() == reflect.Pointer {
		v, err := castValue(t.Elem(), s)
		if err != nil {
			return nil, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p.Interface(), nil
	}
	v, err := castValue(t, s)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// castValue parses s into a value of exactly type t.
func castValue(t reflect.Type, s string) (reflect.Value, error) {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	switch t {
	case durationType:
		d, err := cast.ToDurationE(s)
		return reflect.ValueOf(d), err
	case timeType:
		ts, err := cast.ToTimeE(s)
		return reflect.ValueOf(ts), err
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Interface:
		v.Set(reflect.ValueOf(s))
	case reflect.Bool:
		b, err := cast.ToBoolE(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(s)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%s overflows %v", s, t)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(s)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%s overflows %v", s, t)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%s overflows %v", s, t)
		}
		v.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("cannot parse %v", t)
	}
	return v, nil
}
