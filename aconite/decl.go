// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"fmt"
	"slices"
)

// Metadata answers declarative tag queries for a method or parameter.
// reflect.StructTag satisfies it.
type Metadata interface {
	Lookup(key string) (value string, ok bool)
}

// Tags is a map-backed Metadata.
type Tags map[string]string

// Lookup implements Metadata.
func (t Tags) Lookup(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Interface declares an API: a named set of methods, optionally generic
// over TypeParams and extending other (possibly parameterized) interfaces.
// Interfaces are declarations only; build descriptors from a bound type
// obtained with Of.
type Interface struct {
	Name       string
	TypeParams []string
	// Extends lists parent interfaces, bound with this interface's own
	// variables or with concrete types.
	Extends []*Type
	Methods []Method
}

// Method declares one API method. Name is the Go method name invoked on
// server implementations and the identity used by clients.
type Method struct {
	Name   string
	Tag    Metadata
	Params []Param
	// Result is nil for methods without a result.
	Result *Type
}

// Param declares one method parameter.
type Param struct {
	Name string
	Tag  Metadata
	Type *Type
}

// Of binds the interface's type parameters. The number of arguments must
// match TypeParams.
func (i *Interface) Of(args ...*Type) *Type {
	if len(args) != len(i.TypeParams) {
		panic(fmt.Sprintf("aconite: interface %s takes %d type arguments, got %d", i.Name, len(i.TypeParams), len(args)))
	}
	return &Type{kind: KindParameterized, name: i.Name, iface: i, args: args}
}

// Var references one of the interface's type parameters.
func (i *Interface) Var(name string) *Type {
	if !slices.Contains(i.TypeParams, name) {
		panic(fmt.Sprintf("aconite: interface %s has no type parameter %q", i.Name, name))
	}
	return &Type{kind: KindVariable, name: name, owner: i}
}
