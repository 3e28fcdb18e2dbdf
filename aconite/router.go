// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Router dispatches requests against one module descriptor. Handlers are
// tried most specific first; among equally specific handlers, those that
// need more arguments go first.
type Router struct {
	module   *ModuleDescriptor
	handlers []*MethodDescriptor
}

var routers sync.Map // *ModuleDescriptor -> *Router

// RouterFor returns the router of a module descriptor, creating it on first
// use.
func RouterFor(m *ModuleDescriptor) *Router {
	if r, ok := routers.Load(m); ok {
		return r.(*Router)
	}
	handlers := slices.Clone(m.Methods)
	slices.SortStableFunc(handlers, func(a, b *MethodDescriptor) int {
		if c := b.Template.Compare(a.Template); c != 0 {
			return c
		}
		return cmp.Compare(b.RequiredArguments(), a.RequiredArguments())
	})
	r, _ := routers.LoadOrStore(m, &Router{module: m, handlers: handlers})
	return r.(*Router)
}

// Module returns the descriptor the router dispatches against.
func (r *Router) Module() *ModuleDescriptor { return r.module }

// Handlers returns the methods in the order they are tried.
func (r *Router) Handlers() []*MethodDescriptor { return slices.Clone(r.handlers) }

// routeResult classifies the outcome of routing within one module.
type routeResult int

const (
	// routeUnmatched means no handler pattern matched.
	routeUnmatched routeResult = iota
	// routeVerbMismatch means a pattern matched, but never with the
	// request's verb.
	routeVerbMismatch
	// routeMissing means a handler matched but lacked a required argument.
	routeMissing
	// routeDone means a handler ran; its response or error is final.
	routeDone
)

// dispatch is the per-request state shared down the module recursion.
type dispatch struct {
	hook     DispatchHook
	validate *validator.Validate
	cc       *CallContext
}

// accept routes req, whose unconsumed path is remaining, against instance.
// prefix is the pattern consumed by enclosing modules.
func (r *Router) accept(ctx context.Context, d *dispatch, instance reflect.Value, prefix, remaining string, req Request) (Response, routeResult, error) {
	var missing error
	verbMismatch := false

	for _, m := range r.handlers {
		if m.IsModule() {
			suffix, params, ok := m.Template.Parse(remaining)
			if !ok {
				continue
			}
			sub := req.WithPathParams(params)
			if err := checkArguments(m, sub); err != nil {
				missing = cmp.Or(missing, err)
				continue
			}

			mark := d.cc.mark()
			child, err := invokeAccessor(ctx, d, instance, m, sub)
			if err != nil {
				return Response{}, routeDone, err
			}
			resp, result, err := RouterFor(m.Module).accept(ctx, d, child, prefix+m.Template.String(), suffix, sub)
			switch result {
			case routeDone:
				return resp, result, err
			case routeMissing:
				missing = cmp.Or(missing, err)
			case routeVerbMismatch:
				verbMismatch = true
			}
			d.cc.rollback(mark)
			continue
		}

		params, ok := m.Template.ParseEntire(remaining)
		if !ok {
			continue
		}
		if m.Verb != req.Verb {
			verbMismatch = true
			continue
		}
		sub := req.WithPathParams(params)
		if err := checkArguments(m, sub); err != nil {
			missing = cmp.Or(missing, err)
			continue
		}
		resp, err := invokeLeaf(ctx, d, instance, m, prefix+m.Template.String(), sub)
		return resp, routeDone, err
	}

	switch {
	case missing != nil:
		return Response{}, routeMissing, missing
	case verbMismatch:
		return Response{}, routeVerbMismatch, nil
	}
	return Response{}, routeUnmatched, nil
}

// checkArguments verifies that every required argument is present.
func checkArguments(m *MethodDescriptor, req Request) error {
	for _, a := range m.Arguments {
		if !a.Optional && !a.present(req) {
			return newError(ErrArgumentMissing, nil, "%s: missing %s argument %q", m.Name, a.Kind, a.Name)
		}
	}
	return nil
}

// decodeArguments decodes the arguments of m from req, ctx first.
func decodeArguments(ctx context.Context, d *dispatch, m *MethodDescriptor, req Request, stats *CallStatistics) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(m.Arguments)+1)
	in = append(in, reflect.ValueOf(ctx))
	for _, a := range m.Arguments {
		if !a.present(req) {
			in = append(in, reflect.Zero(a.goType))
			continue
		}

		var raw string
		var v any
		var err error
		switch a.Kind {
		case ArgumentBody:
			stats.RecordInput(int64(len(req.Body.Data)))
			v, err = a.body.Deserialize(req.Body)
		case ArgumentHeader:
			raw = req.Headers.Get(a.Name)
		case ArgumentPath:
			raw = req.PathParams[a.Name]
		case ArgumentQuery:
			raw = req.Query.Get(a.Name)
		}
		if a.Kind != ArgumentBody {
			stats.RecordInput(int64(len(raw)))
			v, err = a.strings.Deserialize(raw)
		}
		if err != nil {
			var aerr *Error
			if errors.As(err, &aerr) {
				return nil, err
			}
			return nil, newError(ErrArgumentInvalid, err, "%s: %s argument %q: %v", m.Name, a.Kind, a.Name, err)
		}
		if a.Kind == ArgumentBody && d.validate != nil {
			if err := validateValue(d.validate, v); err != nil {
				return nil, newError(ErrArgumentInvalid, err, "%s: body argument %q: %v", m.Name, a.Name, err)
			}
		}
		in = append(in, valueOf(v, a.goType))
	}
	return in, nil
}

// validateValue runs struct validation on structs and pointers to structs.
func validateValue(validate *validator.Validate, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v)
}

// valueOf converts a decoded value to t.
func valueOf(v any, t reflect.Type) reflect.Value {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Zero(t)
	}
	if rv.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface {
			out := reflect.New(t).Elem()
			out.Set(rv)
			return out
		}
		return rv
	}
	return rv.Convert(t)
}

// lookupMethod finds the Go method implementing m on instance.
func lookupMethod(instance reflect.Value, m *MethodDescriptor) (reflect.Value, error) {
	fn := instance.MethodByName(m.Name)
	if !fn.IsValid() {
		return reflect.Value{}, newError(ErrUnimplemented, nil, "%v has no method %s", instance.Type(), m.Name)
	}
	return fn, nil
}

func invokeAccessor(ctx context.Context, d *dispatch, instance reflect.Value, m *MethodDescriptor, req Request) (reflect.Value, error) {
	fn, err := lookupMethod(instance, m)
	if err != nil {
		return reflect.Value{}, err
	}
	in, err := decodeArguments(ctx, d, m, req, &CallStatistics{})
	if err != nil {
		return reflect.Value{}, err
	}
	out := fn.Call(in)
	if err := resultError(out); err != nil {
		return reflect.Value{}, err
	}
	child := out[0]
	for child.Kind() == reflect.Interface && !child.IsNil() {
		child = child.Elem()
	}
	if !child.IsValid() || (child.Kind() == reflect.Pointer || child.Kind() == reflect.Interface) && child.IsNil() {
		return reflect.Value{}, fmt.Errorf("aconite: module accessor %s returned nil", m.Name)
	}
	return child, nil
}

func invokeLeaf(ctx context.Context, d *dispatch, instance reflect.Value, m *MethodDescriptor, route string, req Request) (resp Response, err error) {
	fn, err := lookupMethod(instance, m)
	if err != nil {
		return Response{}, err
	}
	d.cc.setMethod(m.Name)

	info := DispatchInfo{
		Method:            m.Name,
		Verb:              m.Verb,
		Route:             route,
		ServerID:          d.cc.ServerID,
		RequestID:         d.cc.RequestID,
		TransportMetadata: flattenHeaders(req.Headers),
	}
	stats := &CallStatistics{}
	ctx, token, active := hookStart(ctx, d.hook, info)
	if active {
		defer func() {
			hookEnd(ctx, d.hook, token, info, stats, err)
		}()
	}

	in, err := decodeArguments(ctx, d, m, req, stats)
	if err != nil {
		return Response{}, err
	}
	out := fn.Call(in)
	if err := resultError(out); err != nil {
		return Response{}, err
	}

	if m.Response == nil {
		return d.cc.apply(Response{Status: http.StatusNoContent}), nil
	}
	resp, err = encodeResponse(m.Response, out[0], d.cc.apply(Response{Status: http.StatusOK}))
	if err != nil {
		return Response{}, err
	}
	if resp.Body != nil {
		stats.RecordOutput(int64(len(resp.Body.Data)))
	}
	return resp, nil
}

// resultError extracts the trailing error result of a handler call.
func resultError(out []reflect.Value) error {
	if len(out) == 0 {
		return nil
	}
	last := out[len(out)-1]
	if last.Type() != errorType || last.IsNil() {
		return nil
	}
	return last.Interface().(error)
}

// encodeResponse writes a handler result over base, which already carries
// the amendments of the call chain. Composite header fields win over them.
func encodeResponse(rd *ResponseDescriptor, result reflect.Value, base Response) (Response, error) {
	if !rd.Composite() {
		body, err := rd.body.Serialize(result.Interface())
		if err != nil {
			return Response{}, err
		}
		return base.WithBody(body), nil
	}

	if result.Kind() == reflect.Pointer {
		if result.IsNil() {
			if base.Status == http.StatusOK {
				base.Status = http.StatusNoContent
			}
			return base, nil
		}
		result = result.Elem()
	}
	resp := base
	for _, f := range rd.Fields {
		fv := result.FieldByIndex(f.index)
		switch f.Kind {
		case ArgumentHeader:
			if s, ok := f.strings.Serialize(fv.Interface()); ok {
				resp = resp.WithHeader(f.Name, s)
			}
		case ArgumentBody:
			body, err := f.body.Serialize(fv.Interface())
			if err != nil {
				return Response{}, err
			}
			resp = resp.WithBody(body)
		}
	}
	return resp, nil
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}
