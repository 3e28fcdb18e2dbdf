// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconiteotel

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/Query-farm/aconite/aconite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

var pingAPI = &aconite.Interface{
	Name: "Ping",
	Methods: []aconite.Method{
		{Name: "Ping", Tag: aconite.Tags{aconite.TagGet: "/ping/{n}"},
			Params: []aconite.Param{{Name: "n", Tag: aconite.Tags{aconite.TagPath: ""}, Type: aconite.Of[int]()}},
			Result: aconite.Of[string]()},
		{Name: "Gone", Tag: aconite.Tags{aconite.TagGet: "/gone"}},
	},
}

type pingImpl struct{}

func (pingImpl) Ping(_ context.Context, n int) (string, error) {
	return "pong " + strconv.Itoa(n), nil
}

func (pingImpl) Gone(context.Context) error {
	return &aconite.Error{Status: http.StatusNotFound, Type: "NotFound", Message: "gone"}
}

type harness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	cfg    OtelConfig
}

func newHarness() *harness {
	h := &harness{spans: tracetest.NewSpanRecorder(), reader: sdkmetric.NewManualReader()}
	h.cfg = DefaultConfig()
	h.cfg.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	h.cfg.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	h.cfg.Propagator = propagation.TraceContext{}
	return h
}

func (h *harness) server(t *testing.T) *aconite.Server {
	t.Helper()
	s, err := aconite.NewServer(pingAPI.Of(), pingImpl{})
	require.NoError(t, err)
	s.SetServiceName("ping-service")
	s.SetServerID("srv-1")
	InstrumentServer(s, h.cfg)
	return s
}

// counter sums the data points of an int64 counter.
func (h *harness) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestServerSpans(t *testing.T) {
	h := newHarness()
	s := h.server(t)
	ctx := context.Background()

	_, err := s.Accept(ctx, aconite.Request{Verb: aconite.VerbGet, Path: "/ping/7", Headers: http.Header{"User-Agent": {"probe/1"}}})
	require.NoError(t, err)
	_, err = s.Accept(ctx, aconite.Request{Verb: aconite.VerbGet, Path: "/gone"})
	require.Error(t, err)

	spans := h.spans.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "GET /ping/{n}", ok.Name())
	assert.Equal(t, trace.SpanKindServer, ok.SpanKind())
	assert.Equal(t, codes.Ok, ok.Status().Code)
	assert.Equal(t, "Ping", attr(ok, "rpc.method").AsString())
	assert.Equal(t, "ping-service", attr(ok, "rpc.service").AsString())
	assert.Equal(t, "/ping/{n}", attr(ok, "http.route").AsString())
	assert.Equal(t, "srv-1", attr(ok, "rpc.aconite.server_id").AsString())
	assert.Equal(t, "probe/1", attr(ok, "user_agent.original").AsString())
	assert.EqualValues(t, 1, attr(ok, "rpc.aconite.arguments").AsInt64())
	assert.EqualValues(t, 1, attr(ok, "rpc.aconite.input_bytes").AsInt64())
	assert.EqualValues(t, len(`"pong 7"`), attr(ok, "rpc.aconite.output_bytes").AsInt64())

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "NotFound", attr(failed, "rpc.aconite.error_type").AsString())
	require.Len(t, failed.Events(), 1)
	assert.Equal(t, "exception", failed.Events()[0].Name)

	assert.EqualValues(t, 2, h.counter(t, "rpc.server.requests"))
}

func TestServerParentContext(t *testing.T) {
	h := newHarness()
	s := h.server(t)

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	_, err := s.Accept(context.Background(), aconite.Request{
		Verb:    aconite.VerbGet,
		Path:    "/ping/1",
		Headers: http.Header{"Traceparent": {traceparent}},
	})
	require.NoError(t, err)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	assert.True(t, spans[0].Parent().IsRemote())
}

func TestDisabledTracing(t *testing.T) {
	h := newHarness()
	h.cfg.EnableTracing = false
	s := h.server(t)

	_, err := s.Accept(context.Background(), aconite.Request{Verb: aconite.VerbGet, Path: "/ping/1"})
	require.NoError(t, err)
	assert.Empty(t, h.spans.Ended())
	assert.EqualValues(t, 1, h.counter(t, "rpc.server.requests"))
}

func TestClientTracingPropagates(t *testing.T) {
	h := newHarness()
	s := h.server(t)

	p := aconite.Install(aconite.NewClientPipeline(), ClientTracing, h.cfg)
	p.Use(func(aconite.Acceptor) aconite.Acceptor { return s })
	c, err := aconite.NewClient(pingAPI.Of(), p)
	require.NoError(t, err)

	out, err := aconite.Call[string](context.Background(), c, "Ping", 3)
	require.NoError(t, err)
	assert.Equal(t, "pong 3", out)

	err = c.Call(context.Background(), "Gone", nil)
	assert.ErrorIs(t, err, aconite.ErrNotFound)

	var client, server []sdktrace.ReadOnlySpan
	for _, sp := range h.spans.Ended() {
		switch sp.SpanKind() {
		case trace.SpanKindClient:
			client = append(client, sp)
		case trace.SpanKindServer:
			server = append(server, sp)
		}
	}
	require.Len(t, client, 2)
	require.Len(t, server, 2)

	assert.Equal(t, "GET /ping/3", client[0].Name())
	assert.Equal(t, client[0].SpanContext().TraceID(), server[0].SpanContext().TraceID())
	assert.Equal(t, client[0].SpanContext().SpanID(), server[0].Parent().SpanID())

	// The in-process server answered with an error value, not a status.
	assert.Equal(t, codes.Error, client[1].Status().Code)
	assert.EqualValues(t, 2, h.counter(t, "rpc.client.requests"))
}
