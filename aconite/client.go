// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// Client calls an API through a client pipeline. Requests are shaped from
// the same descriptors servers route with, so both sides agree on verbs,
// paths and argument placement.
type Client struct {
	module   *ModuleDescriptor
	pipeline *Pipeline
	// base carries the path and arguments contributed by module accessors.
	base Request

	once     *sync.Once
	acceptor *Acceptor
}

// NewClient returns a client for api. The pipeline must contain a transport
// stage such as HttpTransport; without one calls fail with ErrUnimplemented.
func NewClient(api *Type, pipeline *Pipeline, opts ...Option) (*Client, error) {
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.builder == nil {
		cfg.builder = DefaultBuilder()
	}
	if pipeline == nil {
		pipeline = NewClientPipeline()
	}
	module, err := cfg.builder.Module(api)
	if err != nil {
		return nil, err
	}
	return &Client{
		module:   module,
		pipeline: pipeline,
		once:     &sync.Once{},
		acceptor: new(Acceptor),
	}, nil
}

// Descriptor returns the descriptor tree the client calls.
func (c *Client) Descriptor() *ModuleDescriptor {
	return c.module
}

// Module returns a client for the nested module reached through the named
// accessor, with args bound to its path, query and header arguments.
func (c *Client) Module(name string, args ...any) (*Client, error) {
	md, ok := c.module.Method(name)
	if !ok || !md.IsModule() {
		return nil, fmt.Errorf("aconite: %s has no module accessor %s", c.module.Type, name)
	}
	req, err := c.shape(md, args)
	if err != nil {
		return nil, err
	}
	child := *c
	child.module = md.Module
	child.base = req
	return &child, nil
}

// Call invokes the named leaf method and decodes its result into result,
// which must be a pointer to the method's result type or nil to discard it.
// Error responses are returned as *Error.
func (c *Client) Call(ctx context.Context, name string, result any, args ...any) error {
	md, ok := c.module.Method(name)
	if !ok || md.IsModule() {
		return fmt.Errorf("aconite: %s has no method %s", c.module.Type, name)
	}
	req, err := c.shape(md, args)
	if err != nil {
		return err
	}
	req.Verb = md.Verb

	c.once.Do(func() {
		*c.acceptor = c.pipeline.Build()
	})
	resp, err := (*c.acceptor).Accept(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return errorFromResponse(resp)
	}
	if result == nil || md.Response == nil {
		return nil
	}
	return decodeResult(md.Response, resp, result)
}

// Call invokes the named leaf method and returns its typed result.
func Call[R any](ctx context.Context, c *Client, name string, args ...any) (R, error) {
	var r R
	err := c.Call(ctx, name, &r, args...)
	return r, err
}

// shape extends the base request with the path and arguments of md.
func (c *Client) shape(md *MethodDescriptor, args []any) (Request, error) {
	if len(args) != len(md.Arguments) {
		return Request{}, fmt.Errorf("aconite: %s takes %d arguments, got %d", md.Name, len(md.Arguments), len(args))
	}
	req := c.base
	params := make(map[string]string)
	for i, a := range md.Arguments {
		v := args[i]
		if a.Kind == ArgumentBody {
			if isNil(v) {
				if !a.Optional {
					return Request{}, fmt.Errorf("aconite: %s: body argument %q is required", md.Name, a.Name)
				}
				continue
			}
			body, err := a.body.Serialize(v)
			if err != nil {
				return Request{}, err
			}
			req = req.WithBody(body)
			continue
		}

		s, ok := a.strings.Serialize(v)
		if !ok {
			if !a.Optional {
				return Request{}, fmt.Errorf("aconite: %s: %s argument %q is required", md.Name, a.Kind, a.Name)
			}
			continue
		}
		switch a.Kind {
		case ArgumentPath:
			params[a.Name] = s
		case ArgumentQuery:
			req = req.WithQuery(a.Name, s)
		case ArgumentHeader:
			req = req.WithHeader(a.Name, s)
		}
	}

	merged := maps.Clone(req.PathParams)
	if merged == nil {
		merged = make(map[string]string)
	}
	maps.Copy(merged, params)
	for _, p := range md.Template.Params() {
		if _, ok := merged[p]; !ok {
			return Request{}, fmt.Errorf("aconite: %s: no value for path parameter %q", md.Name, p)
		}
	}
	req = req.WithPathParams(params)
	req.Path = c.base.Path + md.Template.Format(merged)
	return req, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// decodeResult fills result from resp.
func decodeResult(rd *ResponseDescriptor, resp Response, result any) error {
	out := reflect.ValueOf(result)
	if out.Kind() != reflect.Pointer || out.IsNil() {
		return fmt.Errorf("aconite: result must be a non-nil pointer, got %T", result)
	}
	target := out.Elem()
	if !rd.goType.AssignableTo(target.Type()) {
		return fmt.Errorf("aconite: result is %v, cannot decode into %v", rd.goType, target.Type())
	}

	if !rd.Composite() {
		if resp.Body == nil || len(resp.Body.Data) == 0 {
			return nil
		}
		v, err := rd.body.Deserialize(resp.Body)
		if err != nil {
			return err
		}
		target.Set(valueOf(v, rd.goType))
		return nil
	}

	if resp.StatusCode() == http.StatusNoContent && rd.goType.Kind() == reflect.Pointer {
		return nil
	}
	st := rd.goType
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	composite := reflect.New(st).Elem()
	for _, f := range rd.Fields {
		var v any
		var err error
		switch f.Kind {
		case ArgumentHeader:
			if _, ok := resp.Headers[http.CanonicalHeaderKey(f.Name)]; !ok {
				continue
			}
			v, err = f.strings.Deserialize(resp.Headers.Get(f.Name))
		case ArgumentBody:
			if resp.Body == nil || len(resp.Body.Data) == 0 {
				continue
			}
			v, err = f.body.Deserialize(resp.Body)
		}
		if err != nil {
			return fmt.Errorf("aconite: decoding %s field %s: %w", f.Kind, f.Field, err)
		}
		fv := composite.FieldByIndex(f.index)
		fv.Set(valueOf(v, fv.Type()))
	}
	if rd.goType.Kind() == reflect.Pointer {
		target.Set(composite.Addr())
	} else {
		target.Set(composite)
	}
	return nil
}

// errorFromResponse rebuilds the *Error carried by an error response.
func errorFromResponse(resp Response) error {
	status := resp.StatusCode()
	e := &Error{Status: status, Type: resp.Headers.Get(HeaderErrorType)}
	if e.Type == "" {
		if known, ok := errorTypesByStatus[status]; ok {
			e.Type = known.Type
		} else {
			e.Type = http.StatusText(status)
		}
	}
	if resp.Body != nil && len(resp.Body.Data) > 0 {
		var p ProblemDetails
		if strings.HasPrefix(mediaType(resp.Body.ContentType), "application/") &&
			json.Unmarshal(resp.Body.Data, &p) == nil && (p.Detail != "" || p.Title != "") {
			e.Message = cmp.Or(p.Detail, p.Title)
		} else {
			e.Message = strings.TrimSpace(string(resp.Body.Data))
		}
	}
	return e
}
