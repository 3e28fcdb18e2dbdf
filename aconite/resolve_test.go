// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVariable(t *testing.T) {
	got := Resolve(testModule.Of(Of[dataA]()), testModule.Var("T"))
	assert.Equal(t, "aconite.dataA", got.String())
	assert.Equal(t, reflect.TypeFor[dataA](), got.GoType())
}

func TestResolveNested(t *testing.T) {
	m := testModule.Methods[0]
	require.Equal(t, "Inner", m.Name)

	got := Resolve(testModule.Of(Of[dataA]()), m.Result)
	assert.True(t, got.Resolved())
	assert.Equal(t, "second[aconite.dataC, aconite.dataA]", got.String())
	assert.Equal(t, reflect.TypeFor[second[dataC, dataA]](), got.GoType())

	// The declaration itself is untouched.
	assert.False(t, m.Result.Resolved())
}

func TestResolveThroughInheritance(t *testing.T) {
	// Module[T] extends Reader[T]; Reader.Get returns E.
	got := Resolve(testModule.Of(Of[dataB]()), testReader.Var("E"))
	assert.Equal(t, reflect.TypeFor[dataB](), got.GoType())
}

func TestResolveReparameterizedParent(t *testing.T) {
	parent := &Interface{Name: "Parent", TypeParams: []string{"P"}}
	child := &Interface{Name: "Child", TypeParams: []string{"U"}}
	child.Extends = []*Type{parent.Of(ListOf(child.Var("U")))}
	grandchild := &Interface{Name: "Grandchild"}
	grandchild.Extends = []*Type{child.Of(MapOf(Of[string](), Of[int]()))}

	got := Resolve(child.Of(Of[int]()), parent.Var("P"))
	assert.Equal(t, "[]int", got.String())
	assert.Equal(t, reflect.TypeFor[[]int](), got.GoType())

	got = Resolve(grandchild.Of(), OptionalOf(parent.Var("P")))
	assert.Equal(t, "*[]map[string]int", got.String())
	assert.Equal(t, reflect.TypeFor[*[]map[string]int](), got.GoType())

	concrete := &Interface{Name: "Concrete"}
	concrete.Extends = []*Type{parent.Of(Of[string]())}
	assert.Equal(t, "string", Resolve(concrete.Of(), parent.Var("P")).String())
}

func TestResolveUnbound(t *testing.T) {
	v := MethodVar("V")
	got := Resolve(testModule.Of(Of[dataA]()), ListOf(v))
	assert.False(t, got.Resolved())
	assert.Equal(t, "[]V", got.String())
	assert.Equal(t, reflect.TypeFor[[]any](), got.GoType())

	// A variable of an unrelated interface stays a variable.
	other := testSequence.Var("E")
	assert.Same(t, other, Resolve(testModule.Of(Of[dataA]()), other))
}

func TestResolveSelfReference(t *testing.T) {
	loop := &Interface{Name: "Loop", TypeParams: []string{"X"}}
	got := Resolve(loop.Of(loop.Var("X")), loop.Var("X"))
	assert.False(t, got.Resolved())
	assert.Equal(t, "Loop.X", got.String())
}

func TestTypeNullable(t *testing.T) {
	assert.True(t, Of[*int]().Nullable())
	assert.True(t, OptionalOf(Of[int]()).Nullable())
	assert.False(t, Of[int]().Nullable())
	assert.False(t, ListOf(Of[int]()).Nullable())
	assert.Equal(t, reflect.TypeFor[*int](), OptionalOf(Of[*int]()).GoType())
}

func TestTypeGoTypeMissingInstantiation(t *testing.T) {
	assert.Nil(t, secondOf(Of[dataA](), Of[dataA]()).GoType())
	assert.Nil(t, MapOf(Of[[]int](), Of[int]()).GoType(), "slice keys are not comparable")
	assert.Nil(t, testModule.Of(Of[dataA]()).GoType())
}

func TestInterfaceMisuse(t *testing.T) {
	assert.Panics(t, func() { testModule.Of() })
	assert.Panics(t, func() { testModule.Var("Nope") })
	assert.Panics(t, func() { TypeOf(nil) })
}
