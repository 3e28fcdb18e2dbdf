// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Builder builds and memoizes module descriptors. Descriptors are a pure
// function of the resolved type, so concurrent first builds of the same type
// are harmless: one result wins and the rest are discarded.
type Builder struct {
	serializers *Serializers
	cache       sync.Map // Type.key() -> *ModuleDescriptor
}

// NewBuilder returns a builder drawing serializers from s.
func NewBuilder(s *Serializers) *Builder {
	if s == nil {
		s = DefaultSerializers()
	}
	return &Builder{serializers: s}
}

var defaultBuilder = sync.OnceValue(func() *Builder {
	return NewBuilder(DefaultSerializers())
})

// DefaultBuilder returns the process-wide builder using DefaultSerializers.
func DefaultBuilder() *Builder {
	return defaultBuilder()
}

// Serializers returns the builder's serializer registry.
func (b *Builder) Serializers() *Serializers {
	return b.serializers
}

// Module returns the descriptor tree of an API type, building it on first
// use. All declaration errors of the tree, nested modules included, are
// reported here as *BuildError.
func (b *Builder) Module(t *Type) (*ModuleDescriptor, error) {
	if !t.IsModule() {
		return nil, &BuildError{Interface: t.String(), Err: errors.New("not an API interface type")}
	}
	if d, ok := b.cache.Load(t.key()); ok {
		return d.(*ModuleDescriptor), nil
	}
	session := &buildSession{builder: b, building: make(map[string]*ModuleDescriptor)}
	d, err := session.module(t)
	if err != nil {
		return nil, err
	}
	for key, built := range session.building {
		b.cache.LoadOrStore(key, built)
	}
	actual, _ := b.cache.LoadOrStore(t.key(), d)
	return actual.(*ModuleDescriptor), nil
}

// buildSession tracks the modules of one build so recursive APIs terminate.
type buildSession struct {
	builder  *Builder
	building map[string]*ModuleDescriptor
}

func (s *buildSession) module(t *Type) (*ModuleDescriptor, error) {
	key := t.key()
	if d, ok := s.builder.cache.Load(key); ok {
		return d.(*ModuleDescriptor), nil
	}
	if d, ok := s.building[key]; ok {
		return d, nil
	}
	d := &ModuleDescriptor{Type: t, byName: make(map[string]*MethodDescriptor)}
	s.building[key] = d

	for _, bm := range collectMethods(t) {
		md, err := s.method(bm)
		if err != nil {
			return nil, err
		}
		d.Methods = append(d.Methods, md)
		d.byName[md.Name] = md
	}
	slices.SortStableFunc(d.Methods, func(a, b *MethodDescriptor) int {
		if c := b.Template.Compare(a.Template); c != 0 {
			return c
		}
		return cmp.Compare(a.Verb, b.Verb)
	})
	return d, nil
}

// boundMethod is a declared method paired with the binding its types
// resolve against.
type boundMethod struct {
	Method
	binding *Type
}

// collectMethods gathers the methods of t and its ancestors. A method
// redeclared by an inheriting interface hides the inherited one.
func collectMethods(t *Type) []boundMethod {
	var out []boundMethod
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	var walk func(bound *Type, depth int)
	walk = func(bound *Type, depth int) {
		if bound == nil || !bound.IsModule() || visited[bound.key()] || depth > maxResolveDepth {
			return
		}
		visited[bound.key()] = true
		for _, m := range bound.iface.Methods {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			out = append(out, boundMethod{Method: m, binding: bound})
		}
		for _, parent := range bound.iface.Extends {
			walk(Resolve(bound, parent), depth+1)
		}
	}
	walk(t, 0)
	return out
}

func (s *buildSession) method(bm boundMethod) (*MethodDescriptor, error) {
	fail := func(param string, err error) error {
		return &BuildError{Interface: bm.binding.String(), Method: bm.Name, Param: param, Err: err}
	}

	verb, pattern, err := parseRoute(bm.Tag)
	if err != nil {
		return nil, fail("", err)
	}
	tmpl, err := NewUrlTemplate(pattern)
	if err != nil {
		return nil, fail("", err)
	}
	md := &MethodDescriptor{Name: bm.Name, Template: tmpl, Verb: verb}

	bodies := 0
	for _, p := range bm.Params {
		arg, err := s.argument(bm.binding, p)
		if err != nil {
			return nil, fail(p.Name, err)
		}
		if arg.Kind == ArgumentBody {
			if bodies++; bodies > 1 {
				return nil, fail(p.Name, errors.New("more than one body argument"))
			}
		}
		md.Arguments = append(md.Arguments, arg)
	}

	var result *Type
	if bm.Result != nil {
		result = Resolve(bm.binding, bm.Result)
	}
	if verb == VerbModule {
		if !result.IsModule() {
			return nil, fail("", errors.New("module accessor must return an API interface type"))
		}
		child, err := s.module(result)
		if err != nil {
			return nil, err
		}
		md.Module = child
		return md, nil
	}
	if result.IsModule() {
		return nil, fail("", fmt.Errorf("%s returns API type %s; tag it as a module", verb, result))
	}
	if result != nil {
		if md.Response, err = s.response(result); err != nil {
			return nil, fail("", err)
		}
	}
	return md, nil
}

func (s *buildSession) argument(binding *Type, p Param) (*ArgumentDescriptor, error) {
	kind, name, err := parseArgument(p.Tag, p.Name)
	if err != nil {
		return nil, err
	}
	if p.Type == nil {
		return nil, errors.New("missing type")
	}
	t := Resolve(binding, p.Type)
	gt := t.GoType()
	if gt == nil {
		return nil, fmt.Errorf("no Go type for %s", t)
	}
	arg := &ArgumentDescriptor{Kind: kind, Name: name, Param: p.Name, Optional: t.Nullable(), Type: t, goType: gt}
	ser := s.builder.serializers
	if kind == ArgumentBody {
		arg.body, err = ser.Body(p.Tag, gt)
	} else {
		arg.strings, err = ser.String(p.Tag, gt)
	}
	if err != nil {
		return nil, err
	}
	return arg, nil
}

func (s *buildSession) response(t *Type) (*ResponseDescriptor, error) {
	gt := t.GoType()
	if gt == nil {
		return nil, fmt.Errorf("no Go type for result %s", t)
	}
	rd := &ResponseDescriptor{Type: t, goType: gt}
	ser := s.builder.serializers
	if !isComposite(gt) {
		var err error
		rd.body, err = ser.Body(nil, gt)
		return rd, err
	}

	st := gt
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	rd.Fields = []ResponseField{}
	bodies := 0
	for i := range st.NumField() {
		f := st.Field(i)
		if f.Type == compositeType {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("composite field %s: unexported fields cannot carry response data", f.Name)
		}
		kind, name, err := parseArgument(f.Tag, f.Name)
		if err != nil {
			return nil, fmt.Errorf("composite field %s: %w", f.Name, err)
		}
		rf := ResponseField{Kind: kind, Name: name, Field: f.Name, Type: TypeOf(f.Type), index: f.Index}
		switch kind {
		case ArgumentHeader:
			rf.strings, err = ser.String(f.Tag, f.Type)
		case ArgumentBody:
			if bodies++; bodies > 1 {
				return nil, fmt.Errorf("composite field %s: more than one body field", f.Name)
			}
			rf.body, err = ser.Body(f.Tag, f.Type)
		default:
			err = fmt.Errorf("%s fields are not allowed in responses", kind)
		}
		if err != nil {
			return nil, fmt.Errorf("composite field %s: %w", f.Name, err)
		}
		rd.Fields = append(rd.Fields, rf)
	}
	return rd, nil
}
