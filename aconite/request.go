// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"maps"
	"net/http"
	"net/url"
)

// Verb is an HTTP method, or the synthetic VerbModule marking a nested
// module accessor.
type Verb string

const (
	VerbGet     Verb = http.MethodGet
	VerbHead    Verb = http.MethodHead
	VerbPost    Verb = http.MethodPost
	VerbPut     Verb = http.MethodPut
	VerbPatch   Verb = http.MethodPatch
	VerbDelete  Verb = http.MethodDelete
	VerbOptions Verb = http.MethodOptions
	VerbModule  Verb = "MODULE"
)

// Body is an encoded request or response body.
type Body struct {
	ContentType string
	Data        []byte
}

// Request is an immutable transport-neutral request. Use the With methods
// to derive modified copies.
type Request struct {
	Verb       Verb
	Path       string
	PathParams map[string]string
	Query      url.Values
	Headers    http.Header
	Body       *Body
}

// WithPath returns a copy of r with the given path.
func (r Request) WithPath(path string) Request {
	r.Path = path
	return r
}

// WithPathParams returns a copy of r with params merged into its path
// parameters.
func (r Request) WithPathParams(params map[string]string) Request {
	if len(params) == 0 {
		return r
	}
	merged := make(map[string]string, len(r.PathParams)+len(params))
	maps.Copy(merged, r.PathParams)
	maps.Copy(merged, params)
	r.PathParams = merged
	return r
}

// WithQuery returns a copy of r with value appended to the query key.
func (r Request) WithQuery(key, value string) Request {
	q := make(url.Values, len(r.Query)+1)
	for k, v := range r.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Add(key, value)
	r.Query = q
	return r
}

// WithHeader returns a copy of r with the header key set to value.
func (r Request) WithHeader(key, value string) Request {
	h := r.Headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(key, value)
	r.Headers = h
	return r
}

// WithBody returns a copy of r with the given body.
func (r Request) WithBody(b *Body) Request {
	r.Body = b
	return r
}

// Response is an immutable transport-neutral response.
type Response struct {
	Status  int
	Headers http.Header
	Body    *Body
}

// WithStatus returns a copy of r with the given status.
func (r Response) WithStatus(status int) Response {
	r.Status = status
	return r
}

// WithHeader returns a copy of r with the header key set to value.
func (r Response) WithHeader(key, value string) Response {
	h := r.Headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(key, value)
	r.Headers = h
	return r
}

// WithBody returns a copy of r with the given body.
func (r Response) WithBody(b *Body) Response {
	r.Body = b
	return r
}

// StatusCode returns the status, defaulting to 200.
func (r Response) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}
