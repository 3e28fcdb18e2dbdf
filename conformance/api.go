// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Query-farm/aconite/aconite"
)

// API declarations. Methods are attached in init because Module refers to
// its own type parameter.
var (
	// Reader[E] exposes a single value.
	Reader = &aconite.Interface{Name: "Reader", TypeParams: []string{"E"}}
	// Tagged[L] exposes a label.
	Tagged = &aconite.Interface{Name: "Tagged", TypeParams: []string{"L"}}
	// Module[T] is a generic module mounted once per payload type.
	Module = &aconite.Interface{Name: "Module", TypeParams: []string{"T"}}
	// Sequence[E] is an ordered list of values.
	Sequence = &aconite.Interface{Name: "Sequence", TypeParams: []string{"E"}}
	// Conformance is the root API.
	Conformance = &aconite.Interface{Name: "Conformance"}
)

// API is the bound root type served by Service.
var API = Conformance.Of()

func path(name string) aconite.Tags   { return aconite.Tags{aconite.TagPath: name} }
func query(name string) aconite.Tags  { return aconite.Tags{aconite.TagQuery: name} }
func header(name string) aconite.Tags { return aconite.Tags{aconite.TagHeader: name} }
func body() aconite.Tags              { return aconite.Tags{aconite.TagBody: ""} }

func init() {
	e := Reader.Var("E")
	Reader.Methods = []aconite.Method{
		{Name: "Get", Tag: aconite.Tags{aconite.TagGet: "/value"}, Result: e},
	}

	Tagged.Methods = []aconite.Method{
		{Name: "Label", Tag: aconite.Tags{aconite.TagGet: "/label"}, Result: Tagged.Var("L")},
	}

	t := Module.Var("T")
	Module.Extends = []*aconite.Type{
		Reader.Of(t),
		Tagged.Of(aconite.Of[string]()),
	}
	Module.Methods = []aconite.Method{
		{Name: "Inner", Tag: aconite.Tags{aconite.TagGet: "/inner"},
			Result: SecondOf(aconite.Of[DataC](), t)},
		{Name: "Put", Tag: aconite.Tags{aconite.TagPut: "/value"},
			Params: []aconite.Param{{Name: "value", Tag: body(), Type: t}}},
		{Name: "Items", Tag: aconite.Tags{aconite.TagModule: "/items"},
			Result: Sequence.Of(t)},
	}

	se := Sequence.Var("E")
	optInt := aconite.OptionalOf(aconite.Of[int]())
	Sequence.Methods = []aconite.Method{
		{Name: "Info", Tag: aconite.Tags{aconite.TagGet: ""},
			Result: aconite.Of[SequenceInfo]()},
		{Name: "List", Tag: aconite.Tags{aconite.TagGet: "/items"},
			Params: []aconite.Param{
				{Name: "offset", Tag: query(""), Type: optInt},
				{Name: "limit", Tag: query(""), Type: optInt},
			},
			Result: aconite.ListOf(se)},
		{Name: "Append", Tag: aconite.Tags{aconite.TagPost: "/items"},
			Params: []aconite.Param{{Name: "value", Tag: body(), Type: se}},
			Result: aconite.Of[int]()},
		{Name: "Clear", Tag: aconite.Tags{aconite.TagDelete: "/items"}},
		{Name: "First", Tag: aconite.Tags{aconite.TagGet: "/items/first"}, Result: se},
		{Name: "Last", Tag: aconite.Tags{aconite.TagGet: "/items/last"}, Result: se},
		{Name: "At", Tag: aconite.Tags{aconite.TagGet: "/items/{k}"},
			Params: []aconite.Param{{Name: "k", Tag: path(""), Type: aconite.Of[int]()}},
			Result: se},
		{Name: "Set", Tag: aconite.Tags{aconite.TagPut: "/items/{k}"},
			Params: []aconite.Param{
				{Name: "k", Tag: path(""), Type: aconite.Of[int]()},
				{Name: "value", Tag: body(), Type: se},
			}},
		{Name: "SetStatus", Tag: aconite.Tags{aconite.TagPut: "/status"},
			Params: []aconite.Param{{Name: "status", Tag: query(""), Type: aconite.Of[Status]()}}},
	}

	v := aconite.MethodVar("V")
	Conformance.Methods = []aconite.Method{
		{Name: "Echo", Tag: aconite.Tags{aconite.TagPost: "/echo"},
			Params: []aconite.Param{{Name: "data", Tag: body(), Type: aconite.Of[DataA]()}},
			Result: aconite.Of[DataA]()},
		{Name: "Search", Tag: aconite.Tags{aconite.TagGet: "/search"},
			Params: []aconite.Param{
				{Name: "q", Tag: query(""), Type: aconite.Of[string]()},
				{Name: "limit", Tag: query(""), Type: optInt},
			},
			Result: aconite.ListOf(aconite.Of[DataA]())},
		{Name: "Whoami", Tag: aconite.Tags{aconite.TagGet: "/whoami"},
			Params: []aconite.Param{{Name: "user", Tag: header("X-User"), Type: aconite.Of[string]()}},
			Result: aconite.Of[string]()},
		{Name: "GetX", Tag: aconite.Tags{aconite.TagGet: "/x"}, Result: aconite.Of[string]()},
		{Name: "PostX", Tag: aconite.Tags{aconite.TagPost: "/x"}, Result: aconite.Of[string]()},
		{Name: "Remove", Tag: aconite.Tags{aconite.TagDelete: "/things/{id}"},
			Params: []aconite.Param{{Name: "id", Tag: path(""), Type: aconite.Of[int64]()}}},
		{Name: "Paged", Tag: aconite.Tags{aconite.TagGet: "/paged"},
			Params: []aconite.Param{
				{Name: "cursor", Tag: query(""), Type: aconite.OptionalOf(aconite.Of[int]())},
				{Name: "size", Tag: query(""), Type: optInt},
			},
			Result: aconite.Of[*Page]()},
		{Name: "Raw", Tag: aconite.Tags{aconite.TagPost: "/raw"},
			Params: []aconite.Param{{Name: "value", Tag: body(), Type: v}},
			Result: v},
		{Name: "Wrap", Tag: aconite.Tags{aconite.TagPost: "/wrap"},
			Params: []aconite.Param{{Name: "value", Tag: body(), Type: aconite.Of[*wrapperspb.StringValue]()}},
			Result: aconite.Of[*wrapperspb.StringValue]()},
		{Name: "Rows", Tag: aconite.Tags{aconite.TagPost: "/rows"},
			Params: []aconite.Param{{Name: "batch", Tag: body(), Type: aconite.Of[arrow.RecordBatch]()}},
			Result: aconite.Of[int64]()},
		{Name: "Alpha", Tag: aconite.Tags{aconite.TagModule: "/alpha"},
			Result: Module.Of(aconite.Of[DataA]())},
		{Name: "Beta", Tag: aconite.Tags{aconite.TagModule: "/beta"},
			Result: Module.Of(aconite.Of[DataB]())},
		{Name: "Sequences", Tag: aconite.Tags{aconite.TagGet: "/seq"},
			Result: aconite.ListOf(aconite.Of[int64]())},
		{Name: "Seq", Tag: aconite.Tags{aconite.TagModule: "/seq/{n}"},
			Params: []aconite.Param{{Name: "n", Tag: path(""), Type: aconite.Of[int64]()}},
			Result: Sequence.Of(aconite.Of[DataA]())},
	}
}
