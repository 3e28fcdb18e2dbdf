// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoopbackClient connects a client directly to a server with an
// ErrorHandler, so failures travel as responses as they would over HTTP.
func newLoopbackClient(t *testing.T) (*Client, *rootImpl) {
	t.Helper()
	impl := newRootImpl()
	s := newTestServer(impl)
	var logs bytes.Buffer
	Install(s.Pipeline(), ErrorHandler, ErrorHandlerConfig{
		Mode:   ErrorProblemDetails,
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})

	p := NewClientPipeline().Use(func(Acceptor) Acceptor { return s })
	c, err := NewClient(testAPI, p)
	require.NoError(t, err)
	return c, impl
}

func ptr[T any](v T) *T { return &v }

func TestClientCall(t *testing.T) {
	c, impl := newLoopbackClient(t)
	ctx := context.Background()

	var s string
	require.NoError(t, c.Call(ctx, "GetX", &s))
	assert.Equal(t, "get", s)

	s, err := Call[string](ctx, c, "Search", "needle", ptr(3))
	require.NoError(t, err)
	assert.Equal(t, "needle:3", s)

	s, err = Call[string](ctx, c, "Search", "needle", (*int)(nil))
	require.NoError(t, err)
	assert.Equal(t, "needle", s)

	s, err = Call[string](ctx, c, "Whoami", "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", s)

	echoed, err := Call[dataA](ctx, c, "Echo", dataA{Name: "round"})
	require.NoError(t, err)
	assert.Equal(t, dataA{Name: "round"}, echoed)

	require.NoError(t, c.Call(ctx, "Remove", nil, 9))
	assert.Equal(t, 1, impl.count("Remove"))

	s, err = Call[string](ctx, c, "Wild", "a b")
	require.NoError(t, err)
	assert.Equal(t, "wild:a b", s)
}

func TestClientComposite(t *testing.T) {
	c, _ := newLoopbackClient(t)
	ctx := context.Background()

	p, err := Call[*page](ctx, c, "Page", (*bool)(nil))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, []dataA{{Name: "p1"}, {Name: "p2"}}, p.Items)

	p, err = Call[*page](ctx, c, "Page", ptr(true))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestClientModules(t *testing.T) {
	c, _ := newLoopbackClient(t)
	ctx := context.Background()

	seq, err := c.Module("Seq", 5)
	require.NoError(t, err)
	v, err := Call[dataA](ctx, seq, "At", 1)
	require.NoError(t, err)
	assert.Equal(t, dataA{Name: "one"}, v)

	n, err := Call[int](ctx, seq, "Append", dataA{Name: "two"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = Call[int](ctx, seq, "Len")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tg, err := Call[tagged[dataA]](ctx, seq, "Tagged")
	require.NoError(t, err)
	assert.Equal(t, "composite", tg.Layer)
	assert.Equal(t, dataA{Name: "zero"}, tg.Value)

	beta, err := c.Module("Beta")
	require.NoError(t, err)
	inner, err := Call[second[dataC, dataB]](ctx, beta, "Inner")
	require.NoError(t, err)
	assert.Equal(t, second[dataC, dataB]{First: dataC{V: 1}, Second: dataB{N: 2}}, inner)

	items, err := beta.Module("Items")
	require.NoError(t, err)
	n, err = Call[int](ctx, items, "Len")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClientErrors(t *testing.T) {
	c, _ := newLoopbackClient(t)
	ctx := context.Background()

	_, err := Call[string](ctx, c, "Fail")
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusInternalServerError, aerr.Status)
	assert.Equal(t, "InternalError", aerr.Type)
	assert.Equal(t, "internal error", aerr.Message)

	seq, err := c.Module("Seq", 1)
	require.NoError(t, err)
	_, err = Call[dataA](ctx, seq, "At", 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "NotFound: no item 99")
}

func TestClientMisuse(t *testing.T) {
	c, _ := newLoopbackClient(t)
	ctx := context.Background()

	assert.ErrorContains(t, c.Call(ctx, "Nope", nil), "has no method Nope")
	assert.ErrorContains(t, c.Call(ctx, "Alpha", nil), "has no method Alpha")
	_, err := c.Module("GetX")
	assert.ErrorContains(t, err, "has no module accessor GetX")

	assert.ErrorContains(t, c.Call(ctx, "Search", nil), "takes 2 arguments, got 0")
	assert.ErrorContains(t, c.Call(ctx, "Echo", nil, nil), `body argument "data" is required`)

	var wrong int
	assert.ErrorContains(t, c.Call(ctx, "GetX", &wrong), "cannot decode into int")
	assert.ErrorContains(t, c.Call(ctx, "GetX", "not a pointer"), "non-nil pointer")
}

func TestClientWithoutTransport(t *testing.T) {
	c, err := NewClient(testAPI, nil)
	require.NoError(t, err)
	err = c.Call(context.Background(), "GetX", nil)
	assert.ErrorIs(t, err, ErrUnimplemented)
}

func TestErrorFromResponse(t *testing.T) {
	err := errorFromResponse(Response{Status: http.StatusNotFound, Body: &Body{ContentType: "text/plain", Data: []byte("gone\n")}})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "gone", err.(*Error).Message)

	err = errorFromResponse(Response{Status: http.StatusTeapot})
	assert.Equal(t, "I'm a teapot", err.(*Error).Type)

	err = errorFromResponse(Response{
		Status:  http.StatusConflict,
		Headers: http.Header{HeaderErrorType: {"Conflict"}},
		Body:    &Body{ContentType: ContentTypeProblem, Data: []byte(`{"title":"Conflict","status":409,"detail":"version mismatch"}`)},
	})
	assert.Equal(t, &Error{Status: http.StatusConflict, Type: "Conflict", Message: "version mismatch"}, err)
}

func TestClientOverHTTP(t *testing.T) {
	ts, _ := serveHTTP(t, nil)
	p := Install(NewClientPipeline(), ClientCompression, CompressionConfig{})
	Install(p, HttpTransport, HttpTransportConfig{BaseURL: ts.URL})
	c, err := NewClient(testAPI, p)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := Call[string](ctx, c, "Find", "q?&=")
	require.NoError(t, err)
	assert.Equal(t, "find:q?&=", s)

	seq, err := c.Module("Seq", 3)
	require.NoError(t, err)
	v, err := Call[dataA](ctx, seq, "At", 0)
	require.NoError(t, err)
	assert.Equal(t, dataA{Name: "zero"}, v)

	_, err = Call[string](ctx, c, "Search", "", (*int)(nil))
	require.NoError(t, err)
}
