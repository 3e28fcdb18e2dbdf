// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"sync"
)

type dataA struct {
	Name string `json:"name" validate:"required"`
}

type dataB struct {
	N int `json:"n"`
}

type dataC struct {
	V int `json:"v"`
}

type second[A, B any] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

type tagged[E any] struct {
	Composite
	Layer string `header:"X-Layer"`
	Value E      `body:""`
}

type page struct {
	Composite
	Total int     `header:"X-Total"`
	Items []dataA `body:""`
}

func secondOf(a, b *Type) *Type {
	return Generic("second", func(args []reflect.Type) (reflect.Type, bool) {
		switch {
		case args[0] == reflect.TypeFor[dataC]() && args[1] == reflect.TypeFor[dataA]():
			return reflect.TypeFor[second[dataC, dataA]](), true
		case args[0] == reflect.TypeFor[dataC]() && args[1] == reflect.TypeFor[dataB]():
			return reflect.TypeFor[second[dataC, dataB]](), true
		}
		return nil, false
	}, a, b)
}

func taggedOf(e *Type) *Type {
	return Generic("tagged", func(args []reflect.Type) (reflect.Type, bool) {
		switch args[0] {
		case reflect.TypeFor[dataA]():
			return reflect.TypeFor[tagged[dataA]](), true
		case reflect.TypeFor[dataB]():
			return reflect.TypeFor[tagged[dataB]](), true
		}
		return nil, false
	}, e)
}

var (
	testReader   = &Interface{Name: "Reader", TypeParams: []string{"E"}}
	testModule   = &Interface{Name: "Module", TypeParams: []string{"T"}}
	testSequence = &Interface{Name: "Sequence", TypeParams: []string{"E"}}
	testRoot     = &Interface{Name: "Root"}

	errBoom = errors.New("boom")
)

func init() {
	testReader.Methods = []Method{
		{Name: "Get", Tag: Tags{TagGet: "/value"}, Result: testReader.Var("E")},
	}

	t := testModule.Var("T")
	testModule.Extends = []*Type{testReader.Of(t)}
	testModule.Methods = []Method{
		{Name: "Inner", Tag: Tags{TagGet: "/inner"}, Result: secondOf(Of[dataC](), t)},
		{Name: "Items", Tag: Tags{TagModule: "/items"}, Result: testSequence.Of(t)},
	}

	e := testSequence.Var("E")
	testSequence.Methods = []Method{
		{Name: "Len", Tag: Tags{TagGet: ""}, Result: Of[int]()},
		{Name: "At", Tag: Tags{TagGet: "/items/{k}"},
			Params: []Param{{Name: "k", Tag: Tags{TagPath: ""}, Type: Of[int]()}},
			Result: e},
		{Name: "Append", Tag: Tags{TagPost: "/items"},
			Params: []Param{{Name: "value", Tag: Tags{TagBody: ""}, Type: e}},
			Result: Of[int]()},
		{Name: "Tagged", Tag: Tags{TagGet: "/tagged"}, Result: taggedOf(e)},
	}

	testRoot.Methods = []Method{
		{Name: "GetX", Tag: Tags{TagGet: "/x"}, Result: Of[string]()},
		{Name: "PostX", Tag: Tags{TagPost: "/x"}, Result: Of[string]()},
		{Name: "Find", Tag: Tags{TagGet: "/find"},
			Params: []Param{{Name: "q", Tag: Tags{TagQuery: ""}, Type: Of[string]()}},
			Result: Of[string]()},
		{Name: "FindAll", Tag: Tags{TagGet: "/find"}, Result: Of[string]()},
		{Name: "Search", Tag: Tags{TagGet: "/search"},
			Params: []Param{
				{Name: "q", Tag: Tags{TagQuery: ""}, Type: Of[string]()},
				{Name: "limit", Tag: Tags{TagQuery: ""}, Type: OptionalOf(Of[int]())},
			},
			Result: Of[string]()},
		{Name: "Remove", Tag: Tags{TagDelete: "/things/{id}"},
			Params: []Param{{Name: "id", Tag: Tags{TagPath: ""}, Type: Of[int]()}}},
		{Name: "Page", Tag: Tags{TagGet: "/page"},
			Params: []Param{{Name: "empty", Tag: Tags{TagQuery: ""}, Type: Of[*bool]()}},
			Result: Of[*page]()},
		{Name: "Fail", Tag: Tags{TagGet: "/fail"}, Result: Of[string]()},
		{Name: "Echo", Tag: Tags{TagPost: "/echo"},
			Params: []Param{{Name: "data", Tag: Tags{TagBody: ""}, Type: Of[dataA]()}},
			Result: Of[dataA]()},
		{Name: "Whoami", Tag: Tags{TagGet: "/whoami"},
			Params: []Param{{Name: "user", Tag: Tags{TagHeader: "X-User"}, Type: Of[string]()}},
			Result: Of[string]()},
		{Name: "Wild", Tag: Tags{TagGet: "/{any}/z"},
			Params: []Param{{Name: "any", Tag: Tags{TagPath: ""}, Type: Of[string]()}},
			Result: Of[string]()},
		{Name: "Alpha", Tag: Tags{TagModule: "/alpha"}, Result: testModule.Of(Of[dataA]())},
		{Name: "Beta", Tag: Tags{TagModule: "/beta"}, Result: testModule.Of(Of[dataB]())},
		{Name: "Seq", Tag: Tags{TagModule: "/seq/{n}"},
			Params: []Param{{Name: "n", Tag: Tags{TagPath: ""}, Type: Of[int]()}},
			Result: testSequence.Of(Of[dataA]())},
		{Name: "Branch", Tag: Tags{TagModule: "/m"}, Result: testSequence.Of(Of[dataA]())},
	}
}

var testAPI = testRoot.Of()

// rootImpl implements testRoot and counts handler invocations.
type rootImpl struct {
	mu    sync.Mutex
	calls map[string]int
	alpha *moduleImpl[dataA]
	beta  *moduleImpl[dataB]
	seq   *sequenceImpl[dataA]
}

func newRootImpl() *rootImpl {
	return &rootImpl{
		calls: make(map[string]int),
		alpha: &moduleImpl[dataA]{value: dataA{Name: "a"}, items: &sequenceImpl[dataA]{}},
		beta:  &moduleImpl[dataB]{value: dataB{N: 2}, items: &sequenceImpl[dataB]{}},
		seq:   &sequenceImpl[dataA]{values: []dataA{{Name: "zero"}, {Name: "one"}}},
	}
}

func (r *rootImpl) called(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
}

func (r *rootImpl) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *rootImpl) GetX(context.Context) (string, error) {
	r.called("GetX")
	return "get", nil
}

func (r *rootImpl) PostX(context.Context) (string, error) {
	r.called("PostX")
	return "post", nil
}

func (r *rootImpl) Find(_ context.Context, q string) (string, error) {
	r.called("Find")
	return "find:" + q, nil
}

func (r *rootImpl) FindAll(context.Context) (string, error) {
	r.called("FindAll")
	return "all", nil
}

func (r *rootImpl) Search(_ context.Context, q string, limit *int) (string, error) {
	r.called("Search")
	if limit != nil {
		return q + ":" + strconv.Itoa(*limit), nil
	}
	return q, nil
}

func (r *rootImpl) Remove(ctx context.Context, id int) error {
	r.called("Remove")
	return nil
}

func (r *rootImpl) Page(_ context.Context, empty *bool) (*page, error) {
	r.called("Page")
	if empty != nil && *empty {
		return nil, nil
	}
	return &page{Total: 2, Items: []dataA{{Name: "p1"}, {Name: "p2"}}}, nil
}

func (r *rootImpl) Fail(context.Context) (string, error) {
	r.called("Fail")
	return "", errBoom
}

func (r *rootImpl) Echo(ctx context.Context, data dataA) (dataA, error) {
	r.called("Echo")
	return data, nil
}

func (r *rootImpl) Whoami(_ context.Context, user string) (string, error) {
	return user, nil
}

func (r *rootImpl) Wild(_ context.Context, anything string) (string, error) {
	r.called("Wild")
	return "wild:" + anything, nil
}

func (r *rootImpl) Alpha(context.Context) (*moduleImpl[dataA], error) {
	return r.alpha, nil
}

func (r *rootImpl) Beta(context.Context) (*moduleImpl[dataB], error) {
	return r.beta, nil
}

func (r *rootImpl) Seq(ctx context.Context, n int) (*sequenceImpl[dataA], error) {
	cc := CallContextFrom(ctx)
	cc.SetHeader("X-Seq", strconv.Itoa(n))
	cc.SetHeader("X-Layer", "outer")
	return r.seq, nil
}

func (r *rootImpl) Branch(ctx context.Context) (*sequenceImpl[dataA], error) {
	CallContextFrom(ctx).SetHeader("X-Branch", "m")
	return r.seq, nil
}

type moduleImpl[T any] struct {
	value T
	items *sequenceImpl[T]
}

func (m *moduleImpl[T]) Get(context.Context) (T, error) {
	return m.value, nil
}

func (m *moduleImpl[T]) Inner(context.Context) (second[dataC, T], error) {
	return second[dataC, T]{First: dataC{V: 1}, Second: m.value}, nil
}

func (m *moduleImpl[T]) Items(context.Context) (*sequenceImpl[T], error) {
	return m.items, nil
}

type sequenceImpl[E any] struct {
	mu     sync.Mutex
	values []E
}

func (s *sequenceImpl[E]) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values), nil
}

func (s *sequenceImpl[E]) At(ctx context.Context, k int) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k < 0 || k >= len(s.values) {
		var zero E
		return zero, &Error{Status: http.StatusNotFound, Type: "NotFound", Message: "no item " + strconv.Itoa(k)}
	}
	CallContextFrom(ctx).SetHeader("X-Layer", "inner")
	return s.values[k], nil
}

func (s *sequenceImpl[E]) Append(ctx context.Context, value E) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, value)
	CallContextFrom(ctx).SetStatus(http.StatusCreated)
	return len(s.values) - 1, nil
}

func (s *sequenceImpl[E]) Tagged(ctx context.Context) (tagged[E], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	CallContextFrom(ctx).SetHeader("X-Layer", "amended")
	var v E
	if len(s.values) > 0 {
		v = s.values[0]
	}
	return tagged[E]{Layer: "composite", Value: v}, nil
}

// newTestServer returns a server for testAPI with no pipeline stages.
func newTestServer(impl *rootImpl) *Server {
	s, err := NewServer(testAPI, impl)
	if err != nil {
		panic(err)
	}
	return s
}
