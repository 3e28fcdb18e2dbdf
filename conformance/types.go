// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"fmt"
	"reflect"

	"github.com/Query-farm/aconite/aconite"
)

// Status is a string-backed enum carried in headers and query strings via
// encoding.TextMarshaler.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusClosed  Status = "CLOSED"
)

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch v := Status(b); v {
	case StatusPending, StatusActive, StatusClosed:
		*s = v
		return nil
	}
	return fmt.Errorf("unknown status %q", b)
}

// DataA is the payload of the "alpha" module.
type DataA struct {
	Name  string `json:"name" validate:"required"`
	Count int64  `json:"count" validate:"gte=0"`
}

// DataB is the payload of the "beta" module.
type DataB struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// DataC is the first half of every Second pair in the fixtures.
type DataC struct {
	Value int64 `json:"value"`
}

// Second pairs two values. The API declares it generically; the Go
// instantiations are registered in secondTypes.
type Second[A, B any] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

type typePair [2]reflect.Type

var secondTypes = map[typePair]reflect.Type{
	{reflect.TypeFor[DataC](), reflect.TypeFor[DataA]()}: reflect.TypeFor[Second[DataC, DataA]](),
	{reflect.TypeFor[DataC](), reflect.TypeFor[DataB]()}: reflect.TypeFor[Second[DataC, DataB]](),
	{reflect.TypeFor[DataC](), reflect.TypeFor[DataC]()}: reflect.TypeFor[Second[DataC, DataC]](),
}

// SecondOf describes Second[a, b].
func SecondOf(a, b *aconite.Type) *aconite.Type {
	return aconite.Generic("Second", func(args []reflect.Type) (reflect.Type, bool) {
		t, ok := secondTypes[typePair{args[0], args[1]}]
		return t, ok
	}, a, b)
}

// Page is a composite result: paging cursors travel in headers, the items
// in the body.
type Page struct {
	aconite.Composite
	Next  *string `header:"X-Next-Cursor"`
	Total int     `header:"X-Total-Count"`
	Items []DataA `body:""`
}

// SequenceInfo summarizes one stored sequence.
type SequenceInfo struct {
	ID     int64  `json:"id"`
	Length int    `json:"length"`
	Status Status `json:"status"`
}
