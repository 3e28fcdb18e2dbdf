// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"net/http"
	"reflect"
	"strings"
)

// ArgumentKind says where an argument travels in a request.
type ArgumentKind int

const (
	ArgumentBody ArgumentKind = iota
	ArgumentHeader
	ArgumentPath
	ArgumentQuery
)

func (k ArgumentKind) String() string {
	switch k {
	case ArgumentBody:
		return TagBody
	case ArgumentHeader:
		return TagHeader
	case ArgumentPath:
		return TagPath
	case ArgumentQuery:
		return TagQuery
	}
	return "unknown"
}

// ArgumentDescriptor describes one method parameter.
type ArgumentDescriptor struct {
	Kind ArgumentKind
	// Name is the wire name: header, path parameter or query key.
	Name     string
	Param    string
	Optional bool
	Type     *Type

	goType  reflect.Type
	strings StringSerializer // header, path and query arguments
	body    BodySerializer   // body arguments
}

// GoType returns the Go type handlers receive for this argument.
func (a *ArgumentDescriptor) GoType() reflect.Type { return a.goType }

// present reports whether req carries the argument.
func (a *ArgumentDescriptor) present(req Request) bool {
	switch a.Kind {
	case ArgumentBody:
		return req.Body != nil
	case ArgumentHeader:
		_, ok := req.Headers[http.CanonicalHeaderKey(a.Name)]
		return ok
	case ArgumentPath:
		_, ok := req.PathParams[a.Name]
		return ok
	case ArgumentQuery:
		return req.Query.Has(a.Name)
	}
	return false
}

// ResponseField is one header or body field of a composite response.
type ResponseField struct {
	Kind  ArgumentKind // ArgumentHeader or ArgumentBody
	Name  string
	Field string
	Type  *Type

	index   []int
	strings StringSerializer
	body    BodySerializer
}

// ResponseDescriptor describes a method result. Simple responses are encoded
// whole as the body; composite responses are split across fields.
type ResponseDescriptor struct {
	Type   *Type
	Fields []ResponseField

	goType reflect.Type
	body   BodySerializer // simple responses
}

// Composite reports whether the response is split across header and body
// fields.
func (r *ResponseDescriptor) Composite() bool { return r.Fields != nil }

// GoType returns the Go type of the result.
func (r *ResponseDescriptor) GoType() reflect.Type { return r.goType }

// MethodDescriptor describes one leaf method or module accessor.
type MethodDescriptor struct {
	Name      string
	Template  *UrlTemplate
	Verb      Verb
	Arguments []*ArgumentDescriptor
	// Response is nil for void methods and module accessors.
	Response *ResponseDescriptor
	// Module is set for module accessors.
	Module *ModuleDescriptor
}

// IsModule reports whether m is a module accessor.
func (m *MethodDescriptor) IsModule() bool { return m.Verb == VerbModule }

// RequiredArguments counts the arguments that must be present.
func (m *MethodDescriptor) RequiredArguments() int {
	n := 0
	for _, a := range m.Arguments {
		if !a.Optional {
			n++
		}
	}
	return n
}

// Route returns a readable "VERB /pattern" form.
func (m *MethodDescriptor) Route() string {
	var b strings.Builder
	b.WriteString(string(m.Verb))
	b.WriteByte(' ')
	if p := m.Template.String(); p != "" {
		b.WriteString(p)
	} else {
		b.WriteByte('/')
	}
	return b.String()
}

// ModuleDescriptor is the immutable descriptor tree of one resolved API
// type. Methods are ordered most specific first, then by verb.
type ModuleDescriptor struct {
	Type    *Type
	Methods []*MethodDescriptor

	byName map[string]*MethodDescriptor
}

// Method returns the method with the given Go name.
func (m *ModuleDescriptor) Method(name string) (*MethodDescriptor, bool) {
	d, ok := m.byName[name]
	return d, ok
}

// Composite is embedded in result structs whose fields are split between
// response headers and the body:
//
//	type Page struct {
//		aconite.Composite
//		Next  string `header:"X-Next"`
//		Items []Item `body:""`
//	}
type Composite struct{}

var compositeType = reflect.TypeFor[Composite]()

// isComposite reports whether t is a struct, or pointer to one, embedding
// Composite.
func isComposite(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous && f.Type == compositeType {
			return true
		}
	}
	return false
}
