// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	json "github.com/goccy/go-json"
)

// DescribePath is where DescribeRoutes answers.
const DescribePath = "/__describe__"

// Describe metadata keys.
const (
	MetaServiceName     = "aconite.service_name"
	MetaServerID        = "aconite.server_id"
	MetaDescribeVersion = "aconite.describe_version"
	DescribeVersion     = "1"
)

// describeSchema has one row per leaf route.
var describeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "route", Type: arrow.BinaryTypes.String},
	{Name: "verb", Type: arrow.BinaryTypes.String},
	{Name: "method", Type: arrow.BinaryTypes.String},
	{Name: "module", Type: arrow.BinaryTypes.String},
	{Name: "arguments_json", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "response", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "composite", Type: &arrow.BooleanType{}},
	{Name: "content_types_json", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// RouteInfo is one leaf route of a flattened descriptor tree.
type RouteInfo struct {
	Route     string
	Verb      Verb
	Method    *MethodDescriptor
	Module    *ModuleDescriptor
	Arguments []*ArgumentDescriptor // accessor arguments first
}

type argumentInfo struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// Routes flattens a descriptor tree into its leaf routes, in routing order.
// Recursive modules are expanded once per path.
func Routes(m *ModuleDescriptor) []RouteInfo {
	var out []RouteInfo
	var walk func(m *ModuleDescriptor, prefix string, args []*ArgumentDescriptor, onPath map[*ModuleDescriptor]bool)
	walk = func(m *ModuleDescriptor, prefix string, args []*ArgumentDescriptor, onPath map[*ModuleDescriptor]bool) {
		if onPath[m] {
			return
		}
		onPath[m] = true
		defer delete(onPath, m)

		for _, md := range RouterFor(m).handlers {
			route := prefix + md.Template.String()
			all := append(append([]*ArgumentDescriptor(nil), args...), md.Arguments...)
			if md.IsModule() {
				walk(md.Module, route, all, onPath)
				continue
			}
			out = append(out, RouteInfo{Route: displayRoute(route), Verb: md.Verb, Method: md, Module: m, Arguments: all})
		}
	}
	walk(m, "", nil, make(map[*ModuleDescriptor]bool))
	return out
}

func displayRoute(route string) string {
	if route == "" {
		return "/"
	}
	return route
}

// Describe returns the served routes as an Arrow record batch. The caller
// must release it.
func (s *Server) Describe() arrow.RecordBatch {
	mem := memory.NewGoAllocator()
	routes := Routes(s.module)

	routeBuilder := array.NewStringBuilder(mem)
	defer routeBuilder.Release()
	verbBuilder := array.NewStringBuilder(mem)
	defer verbBuilder.Release()
	methodBuilder := array.NewStringBuilder(mem)
	defer methodBuilder.Release()
	moduleBuilder := array.NewStringBuilder(mem)
	defer moduleBuilder.Release()
	argsBuilder := array.NewStringBuilder(mem)
	defer argsBuilder.Release()
	responseBuilder := array.NewStringBuilder(mem)
	defer responseBuilder.Release()
	compositeBuilder := array.NewBooleanBuilder(mem)
	defer compositeBuilder.Release()
	contentTypesBuilder := array.NewStringBuilder(mem)
	defer contentTypesBuilder.Release()

	for _, r := range routes {
		routeBuilder.Append(r.Route)
		verbBuilder.Append(string(r.Verb))
		methodBuilder.Append(r.Method.Name)
		moduleBuilder.Append(r.Module.Type.String())

		if len(r.Arguments) > 0 {
			infos := make([]argumentInfo, len(r.Arguments))
			for i, a := range r.Arguments {
				infos[i] = argumentInfo{Kind: a.Kind.String(), Name: a.Name, Type: a.Type.String(), Optional: a.Optional}
			}
			if data, err := json.Marshal(infos); err != nil {
				slog.Error("marshal describe arguments", "err", err)
				argsBuilder.AppendNull()
			} else {
				argsBuilder.Append(string(data))
			}
		} else {
			argsBuilder.AppendNull()
		}

		rd := r.Method.Response
		if rd == nil {
			responseBuilder.AppendNull()
			compositeBuilder.Append(false)
			contentTypesBuilder.AppendNull()
			continue
		}
		responseBuilder.Append(rd.Type.String())
		compositeBuilder.Append(rd.Composite())
		if chain, ok := rd.body.(bodyChain); ok {
			data, _ := json.Marshal(chain.ContentTypes())
			contentTypesBuilder.Append(string(data))
		} else {
			contentTypesBuilder.AppendNull()
		}
	}

	cols := []arrow.Array{
		routeBuilder.NewArray(),
		verbBuilder.NewArray(),
		methodBuilder.NewArray(),
		moduleBuilder.NewArray(),
		argsBuilder.NewArray(),
		responseBuilder.NewArray(),
		compositeBuilder.NewArray(),
		contentTypesBuilder.NewArray(),
	}
	for _, c := range cols {
		defer c.Release()
	}

	keys := []string{MetaDescribeVersion}
	vals := []string{DescribeVersion}
	if s.serviceName != "" {
		keys = append(keys, MetaServiceName)
		vals = append(vals, s.serviceName)
	}
	if s.serverID != "" {
		keys = append(keys, MetaServerID)
		vals = append(vals, s.serverID)
	}
	return array.NewRecordBatchWithMetadata(describeSchema, cols, int64(len(routes)), arrow.NewMetadata(keys, vals))
}

// DescribeRoutes is a server stage answering GET /__describe__ with the
// configured server's routes as an Arrow IPC stream.
var DescribeRoutes Factory[*Server] = FactoryFunc[*Server](newDescribeRoutes)

func newDescribeRoutes(next Acceptor, s *Server) Acceptor {
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		if normalizePath(req.Path) != DescribePath {
			return next.Accept(ctx, req)
		}
		if req.Verb != VerbGet {
			return Response{}, newError(ErrMethodNotAllowed, nil, "%s %s", req.Verb, DescribePath)
		}
		batch := s.Describe()
		defer batch.Release()
		data, err := writeBatch(batch)
		if err != nil {
			return Response{}, err
		}
		return Response{Status: http.StatusOK}.WithBody(&Body{ContentType: ContentTypeArrow, Data: data}), nil
	})
}
