// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package aconiteotel provides OpenTelemetry instrumentation for aconite.
// Servers get a [aconite.DispatchHook] adding spans and metrics around every
// leaf method; clients get a pipeline stage that starts client spans and
// propagates trace context in request headers.
//
// Usage:
//
//	server, _ := aconite.NewServer(api, impl)
//	aconiteotel.InstrumentServer(server, aconiteotel.DefaultConfig())
//
//	pipeline := aconite.NewClientPipeline()
//	aconite.Install(pipeline, aconiteotel.ClientTracing, aconiteotel.DefaultConfig())
//	aconite.Install(pipeline, aconite.HttpTransport, aconite.HttpTransportConfig{BaseURL: url})
package aconiteotel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Query-farm/aconite/aconite"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "aconite"
	rpcSystem           = "aconite"
)

// OtelConfig configures OpenTelemetry instrumentation.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator moves trace context through request headers.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed calls.
	// Default true.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value.
	// Defaults to Server.ServiceName() or "aconite".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with sensible defaults.
// TracerProvider, MeterProvider, and Propagator are resolved from the
// global OTel SDK at instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

func (cfg OtelConfig) withDefaults(serviceName string) OtelConfig {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = rpcSystem
	}
	return cfg
}

// instruments holds the metric instruments shared by server and client.
type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(cfg OtelConfig, side string) instruments {
	var ins instruments
	if !cfg.EnableMetrics {
		return ins
	}
	meter := cfg.MeterProvider.Meter(instrumentationName)
	ins.requests, _ = meter.Int64Counter("rpc."+side+".requests",
		metric.WithUnit("{request}"),
		metric.WithDescription("Number of RPC requests"),
	)
	ins.duration, _ = meter.Float64Histogram("rpc."+side+".duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of RPC requests"),
	)
	return ins
}

func (ins instruments) record(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	if ins.requests != nil {
		ins.requests.Add(ctx, 1, opt)
	}
	if ins.duration != nil {
		ins.duration.Record(ctx, d.Seconds(), opt)
	}
}

// errorType names err for the rpc.aconite.error_type attribute.
func errorType(err error) string {
	var aerr *aconite.Error
	if errors.As(err, &aerr) {
		return aerr.Type
	}
	return fmt.Sprintf("%T", err)
}

// InstrumentServer attaches OpenTelemetry instrumentation to a server.
// The hook is installed via [aconite.Server.SetDispatchHook].
func InstrumentServer(server *aconite.Server, cfg OtelConfig) {
	cfg = cfg.withDefaults(server.ServiceName())
	server.SetDispatchHook(&otelHook{
		cfg:         cfg,
		tracer:      cfg.TracerProvider.Tracer(instrumentationName),
		instruments: newInstruments(cfg, "server"),
	})
}

// otelHook implements aconite.DispatchHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg         OtelConfig
	tracer      trace.Tracer
	instruments instruments
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnDispatchStart extracts parent trace context and starts a server span.
func (h *otelHook) OnDispatchStart(ctx context.Context, info aconite.DispatchInfo) (context.Context, aconite.HookToken) {
	if h.cfg.Propagator != nil && info.TransportMetadata != nil {
		ctx = h.cfg.Propagator.Extract(ctx, propagation.MapCarrier(info.TransportMetadata))
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", rpcSystem),
		attribute.String("rpc.service", h.cfg.ServiceName),
		attribute.String("rpc.method", info.Method),
		attribute.String("http.request.method", string(info.Verb)),
		attribute.String("http.route", info.Route),
		attribute.String("rpc.aconite.server_id", info.ServerID),
		attribute.String("rpc.aconite.request_id", info.RequestID),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)
	if v := info.TransportMetadata["user-agent"]; v != "" {
		attrs = append(attrs, attribute.String("user_agent.original", v))
	}

	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("%s %s", info.Verb, info.Route),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token aconite.HookToken, info aconite.DispatchInfo, stats *aconite.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if h.cfg.EnableMetrics {
		h.instruments.record(ctx, time.Since(st.startTime),
			attribute.String("rpc.system", rpcSystem),
			attribute.String("rpc.service", h.cfg.ServiceName),
			attribute.String("rpc.method", info.Method),
			attribute.String("http.route", info.Route),
			attribute.String("status", status),
		)
	}

	if st.span == nil {
		return
	}
	if st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("rpc.aconite.arguments", stats.Arguments),
				attribute.Int64("rpc.aconite.input_bytes", stats.InputBytes),
				attribute.Int64("rpc.aconite.output_bytes", stats.OutputBytes),
			)
		}
		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			st.span.SetAttributes(attribute.String("rpc.aconite.error_type", errorType(err)))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}
	}
	st.span.End()
}

// ClientTracing is a client pipeline stage that wraps each call in a client
// span and injects the trace context into the request headers. Install it
// before the transport.
var ClientTracing aconite.Factory[OtelConfig] = aconite.FactoryFunc[OtelConfig](newClientTracing)

func newClientTracing(next aconite.Acceptor, cfg OtelConfig) aconite.Acceptor {
	cfg = cfg.withDefaults("")
	tracer := cfg.TracerProvider.Tracer(instrumentationName)
	ins := newInstruments(cfg, "client")

	return aconite.AcceptorFunc(func(ctx context.Context, req aconite.Request) (aconite.Response, error) {
		start := time.Now()
		var span trace.Span
		if cfg.EnableTracing {
			attrs := append([]attribute.KeyValue{
				attribute.String("rpc.system", rpcSystem),
				attribute.String("rpc.service", cfg.ServiceName),
				attribute.String("http.request.method", string(req.Verb)),
				attribute.String("url.path", req.Path),
			}, cfg.CustomAttributes...)
			ctx, span = tracer.Start(ctx, fmt.Sprintf("%s %s", req.Verb, req.Path),
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attrs...),
			)
			defer span.End()
		}

		headers := req.Headers.Clone()
		if headers == nil {
			headers = make(http.Header)
		}
		cfg.Propagator.Inject(ctx, propagation.HeaderCarrier(headers))
		req.Headers = headers

		resp, err := next.Accept(ctx, req)

		failure := err
		if failure == nil && resp.StatusCode() >= http.StatusBadRequest {
			failure = fmt.Errorf("status %d", resp.StatusCode())
		}
		status := "ok"
		if failure != nil {
			status = "error"
		}
		if cfg.EnableMetrics {
			ins.record(ctx, time.Since(start),
				attribute.String("rpc.system", rpcSystem),
				attribute.String("rpc.service", cfg.ServiceName),
				attribute.String("http.request.method", string(req.Verb)),
				attribute.String("status", status),
			)
		}
		if span != nil {
			if resp.Status != 0 {
				span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
			}
			if failure != nil {
				span.SetStatus(codes.Error, failure.Error())
				if cfg.RecordExceptions && err != nil {
					span.RecordError(err)
				}
			} else {
				span.SetStatus(codes.Ok, "")
			}
		}
		return resp, err
	})
}
