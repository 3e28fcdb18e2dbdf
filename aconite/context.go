// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"net/http"
	"sync"
)

// CallContext carries request-scoped information to handlers and module
// accessors, and collects the response headers and status they amend.
type CallContext struct {
	// RequestID identifies the request, from the X-Request-Id header when
	// the transport supplies one.
	RequestID string
	// ServerID is the server identifier set via [Server.SetServerID].
	ServerID string

	mu         sync.Mutex
	method     string
	amendments []amendment
}

type amendment struct {
	header string
	value  string
	status int
}

type callContextKey struct{}

func withCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the CallContext of a server request. Outside of
// one it returns a detached context whose amendments go nowhere.
func CallContextFrom(ctx context.Context) *CallContext {
	if cc, ok := ctx.Value(callContextKey{}).(*CallContext); ok {
		return cc
	}
	return &CallContext{}
}

// Method returns the name of the leaf method being invoked, or empty while
// module accessors run.
func (c *CallContext) Method() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// SetHeader sets a response header. Later calls win, including calls made
// by handlers of nested modules.
func (c *CallContext) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amendments = append(c.amendments, amendment{header: key, value: value})
}

// SetStatus sets the response status.
func (c *CallContext) SetStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amendments = append(c.amendments, amendment{status: code})
}

func (c *CallContext) setMethod(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.method = name
}

// mark returns a position to roll back to.
func (c *CallContext) mark() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.amendments)
}

// rollback discards amendments made after mark, when the branch that made
// them did not route the request.
func (c *CallContext) rollback(mark int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mark < len(c.amendments) {
		c.amendments = c.amendments[:mark]
	}
}

// apply folds the amendments into resp in the order they were made.
func (c *CallContext) apply(resp Response) Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.amendments) == 0 {
		return resp
	}
	h := resp.Headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	for _, a := range c.amendments {
		if a.status != 0 {
			resp.Status = a.status
			continue
		}
		h.Set(a.header, a.value)
	}
	resp.Headers = h
	return resp
}
