// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds a routing-heavy fixture API for benchmarks.
package benchmark

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Query-farm/aconite/aconite"
)

// Record is the body type of the fixture.
type Record struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

var (
	Bench   = &aconite.Interface{Name: "Bench"}
	Catalog = &aconite.Interface{Name: "Catalog", TypeParams: []string{"R"}}
)

// API is the bound root type.
var API = Bench.Of()

func init() {
	r := Catalog.Var("R")
	id := aconite.Param{Name: "id", Tag: aconite.Tags{"path": ""}, Type: aconite.Of[int64]()}
	Catalog.Methods = []aconite.Method{
		{Name: "List", Tag: aconite.Tags{"get": ""}, Result: aconite.ListOf(r)},
		{Name: "Get", Tag: aconite.Tags{"get": "/{id}"}, Params: []aconite.Param{id}, Result: r},
		{Name: "Put", Tag: aconite.Tags{"put": "/{id}"},
			Params: []aconite.Param{id, {Name: "record", Tag: aconite.Tags{"body": ""}, Type: r}}},
		{Name: "Tags", Tag: aconite.Tags{"get": "/{id}/tags"}, Params: []aconite.Param{id},
			Result: aconite.ListOf(aconite.Of[string]())},
	}

	Bench.Methods = []aconite.Method{
		{Name: "Noop", Tag: aconite.Tags{"get": "/noop"}},
		{Name: "Add", Tag: aconite.Tags{"get": "/add"},
			Params: []aconite.Param{
				{Name: "a", Tag: aconite.Tags{"query": ""}, Type: aconite.Of[float64]()},
				{Name: "b", Tag: aconite.Tags{"query": ""}, Type: aconite.Of[float64]()},
			},
			Result: aconite.Of[float64]()},
		{Name: "Greet", Tag: aconite.Tags{"get": "/greet/{name}"},
			Params: []aconite.Param{{Name: "name", Tag: aconite.Tags{"path": ""}, Type: aconite.Of[string]()}},
			Result: aconite.Of[string]()},
		{Name: "Roundtrip", Tag: aconite.Tags{"post": "/roundtrip"},
			Params: []aconite.Param{
				{Name: "color", Tag: aconite.Tags{"header": "X-Color"}, Type: aconite.Of[string]()},
				{Name: "mapping", Tag: aconite.Tags{"body": ""}, Type: aconite.MapOf(aconite.Of[string](), aconite.Of[int64]())},
			},
			Result: aconite.Of[string]()},
		{Name: "Records", Tag: aconite.Tags{"module": "/records"}, Result: Catalog.Of(aconite.Of[Record]())},
	}
}

// Service implements Bench.
type Service struct {
	records *RecordCatalog
}

// NewService returns a service whose catalog holds n records.
func NewService(n int) *Service {
	c := &RecordCatalog{byID: make(map[int64]Record, n)}
	for i := range int64(n) {
		c.byID[i] = Record{ID: i, Name: fmt.Sprintf("record-%d", i), Score: float64(i) / 2}
	}
	return &Service{records: c}
}

func (s *Service) Noop(_ context.Context) error {
	return nil
}

func (s *Service) Add(_ context.Context, a, b float64) (float64, error) {
	return a + b, nil
}

func (s *Service) Greet(_ context.Context, name string) (string, error) {
	return "Hello, " + name + "!", nil
}

// Roundtrip formats its arguments deterministically.
func (s *Service) Roundtrip(_ context.Context, color string, mapping map[string]int64) (string, error) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': %d", k, mapping[k])
	}
	return fmt.Sprintf("%s:{%s}", color, strings.Join(parts, ", ")), nil
}

func (s *Service) Records(_ context.Context) (*RecordCatalog, error) {
	return s.records, nil
}

// RecordCatalog implements Catalog[Record]. It is read-mostly; Put is not
// synchronized and must not run concurrently with other calls.
type RecordCatalog struct {
	byID map[int64]Record
}

func (c *RecordCatalog) List(_ context.Context) ([]Record, error) {
	out := make([]Record, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *RecordCatalog) Get(_ context.Context, id int64) (Record, error) {
	r, ok := c.byID[id]
	if !ok {
		return Record{}, &aconite.Error{Status: http.StatusNotFound, Type: "NotFound", Message: fmt.Sprintf("record %d", id)}
	}
	return r, nil
}

func (c *RecordCatalog) Put(_ context.Context, id int64, record Record) error {
	record.ID = id
	c.byID[id] = record
	return nil
}

func (c *RecordCatalog) Tags(_ context.Context, id int64) ([]string, error) {
	return []string{fmt.Sprintf("id:%d", id), "bench"}, nil
}
