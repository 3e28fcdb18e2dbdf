// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Kind classifies a Type.
type Kind int

const (
	// KindConcrete is a plain Go type with no type arguments.
	KindConcrete Kind = iota
	// KindParameterized is a list, map, optional, generic data type or API
	// interface applied to type arguments.
	KindParameterized
	// KindVariable is a reference to a type parameter.
	KindVariable
)

// Instantiator builds the Go type of a parameterized data type from the Go
// types of its resolved arguments. It reports false when it has no
// instantiation for the given arguments.
type Instantiator func(args []reflect.Type) (reflect.Type, bool)

// Type is a recursive type descriptor. Types are immutable; resolution
// returns new values.
type Type struct {
	kind   Kind
	name   string
	goType reflect.Type // KindConcrete
	inst   Instantiator // KindParameterized data types
	iface  *Interface   // KindParameterized API interfaces
	args   []*Type
	owner  *Interface // KindVariable; nil for method-level variables
}

var anyType = reflect.TypeFor[any]()

const (
	nameList     = "[]"
	nameMap      = "map"
	nameOptional = "*"
)

// Of returns the concrete descriptor of T.
func Of[T any]() *Type {
	return TypeOf(reflect.TypeFor[T]())
}

// TypeOf returns the concrete descriptor of a Go type.
func TypeOf(t reflect.Type) *Type {
	if t == nil {
		panic("aconite: TypeOf(nil)")
	}
	return &Type{kind: KindConcrete, name: t.String(), goType: t}
}

// ListOf describes a slice of elem.
func ListOf(elem *Type) *Type {
	return &Type{kind: KindParameterized, name: nameList, args: []*Type{elem},
		inst: func(a []reflect.Type) (reflect.Type, bool) { return reflect.SliceOf(a[0]), true }}
}

// MapOf describes a map from key to value.
func MapOf(key, value *Type) *Type {
	return &Type{kind: KindParameterized, name: nameMap, args: []*Type{key, value},
		inst: func(a []reflect.Type) (reflect.Type, bool) {
			if !a[0].Comparable() {
				return nil, false
			}
			return reflect.MapOf(a[0], a[1]), true
		}}
}

// OptionalOf describes a nullable elem, carried as a Go pointer.
func OptionalOf(elem *Type) *Type {
	return &Type{kind: KindParameterized, name: nameOptional, args: []*Type{elem},
		inst: func(a []reflect.Type) (reflect.Type, bool) {
			if a[0].Kind() == reflect.Pointer {
				return a[0], true
			}
			return reflect.PointerTo(a[0]), true
		}}
}

// Generic describes a user-defined generic data type. Go cannot instantiate
// generic types at run time, so inst maps resolved arguments to the matching
// instantiation.
func Generic(name string, inst Instantiator, args ...*Type) *Type {
	return &Type{kind: KindParameterized, name: name, inst: inst, args: args}
}

// MethodVar is a type variable declared by a single method. It can never be
// resolved from a module binding and always degrades to any.
func MethodVar(name string) *Type {
	return &Type{kind: KindVariable, name: name}
}

// Kind returns the descriptor kind.
func (t *Type) Kind() Kind { return t.kind }

// Name returns the type name without arguments.
func (t *Type) Name() string { return t.name }

// Args returns the type arguments.
func (t *Type) Args() []*Type { return slices.Clone(t.args) }

// Interface returns the API interface for module types, or nil.
func (t *Type) Interface() *Interface { return t.iface }

// IsModule reports whether t is an API interface type.
func (t *Type) IsModule() bool { return t != nil && t.iface != nil }

// Resolved reports whether t contains no type variables.
func (t *Type) Resolved() bool {
	if t.kind == KindVariable {
		return false
	}
	for _, a := range t.args {
		if !a.Resolved() {
			return false
		}
	}
	return true
}

// Nullable reports whether values of t may be absent.
func (t *Type) Nullable() bool {
	switch t.kind {
	case KindConcrete:
		return t.goType.Kind() == reflect.Pointer
	case KindParameterized:
		return t.name == nameOptional
	}
	return false
}

// GoType returns the Go type carrying values of t. Unresolved variables
// degrade to any. It returns nil for API interfaces and for generic types
// whose instantiator has no match.
func (t *Type) GoType() reflect.Type {
	switch t.kind {
	case KindConcrete:
		return t.goType
	case KindVariable:
		return anyType
	}
	if t.iface != nil || t.inst == nil {
		return nil
	}
	args := make([]reflect.Type, len(t.args))
	for i, a := range t.args {
		if args[i] = a.GoType(); args[i] == nil {
			return nil
		}
	}
	gt, ok := t.inst(args)
	if !ok {
		return nil
	}
	return gt
}

// String returns the canonical form of t.
func (t *Type) String() string {
	switch t.kind {
	case KindConcrete:
		return t.name
	case KindVariable:
		if t.owner != nil {
			return t.owner.Name + "." + t.name
		}
		return t.name
	}
	switch t.name {
	case nameList:
		return "[]" + t.args[0].String()
	case nameOptional:
		return "*" + t.args[0].String()
	case nameMap:
		return fmt.Sprintf("map[%s]%s", t.args[0], t.args[1])
	}
	if len(t.args) == 0 {
		return t.name
	}
	parts := make([]string, len(t.args))
	for i, a := range t.args {
		parts[i] = a.String()
	}
	return t.name + "[" + strings.Join(parts, ", ") + "]"
}

// key identifies t for memoization. Unlike String it tells apart
// interfaces and Go types that share a display name.
func (t *Type) key() string {
	var b strings.Builder
	t.writeKey(&b)
	return b.String()
}

func (t *Type) writeKey(b *strings.Builder) {
	switch {
	case t.kind == KindConcrete:
		fmt.Fprintf(b, "%s@%p", t.name, t.goType)
		return
	case t.kind == KindVariable:
		fmt.Fprintf(b, "%s@%p", t.name, t.owner)
		return
	case t.iface != nil:
		fmt.Fprintf(b, "%s@%p", t.name, t.iface)
	default:
		if gt := t.GoType(); gt != nil {
			fmt.Fprintf(b, "%s@%p", t.name, gt)
			return
		}
		b.WriteString(t.name)
	}
	if len(t.args) == 0 {
		return
	}
	b.WriteByte('[')
	for i, a := range t.args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.writeKey(b)
	}
	b.WriteByte(']')
}

// withArgs returns a copy of a parameterized type with new arguments.
func (t *Type) withArgs(args []*Type) *Type {
	c := *t
	c.args = args
	return &c
}

// ordinal returns the position of a variable among its owner's type
// parameters, or -1.
func (t *Type) ordinal() int {
	if t.owner == nil {
		return -1
	}
	return slices.Index(t.owner.TypeParams, t.name)
}
