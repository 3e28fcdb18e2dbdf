// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Query-farm/aconite/aconite"
	aconiteotel "github.com/Query-farm/aconite/aconite/otel"
	"github.com/Query-farm/aconite/conformance"
)

// setupOtel installs global providers exporting to stderr and returns a
// shutdown function flushing them.
func setupOtel() (func(context.Context), error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("tracer shutdown", "err", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			slog.Error("meter shutdown", "err", err)
		}
	}, nil
}

func main() {
	server, err := aconite.NewServer(conformance.API, conformance.NewService())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build server: %v\n", err)
		os.Exit(1)
	}
	server.SetServiceName("conformance")
	server.SetServerID("conformance-go")
	server.SetValidator(validator.New(validator.WithRequiredStructEnabled()))

	p := server.Pipeline()
	aconite.Install(p, aconite.AccessLog, slog.Default())
	aconite.Install(p, aconite.ErrorHandler, aconite.ErrorHandlerConfig{Mode: aconite.ErrorProblemDetails, Debug: true})
	aconite.Install(p, aconite.Compression, aconite.CompressionConfig{MinSize: 256})
	aconite.Install(p, aconite.DescribeRoutes, server)

	if slices.Contains(os.Args[1:], "--otel") {
		shutdown, err := setupOtel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to set up otel: %v\n", err)
			os.Exit(1)
		}
		defer shutdown(context.Background())
		aconiteotel.InstrumentServer(server, aconiteotel.DefaultConfig())
	}

	addr := "127.0.0.1:0"
	if i := slices.Index(os.Args, "--http"); i >= 0 && i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "--") {
		addr = os.Args[i+1]
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Printf("PORT:%d\n", port)
	os.Stdout.Sync()

	srv := &http.Server{Handler: aconite.NewHttpServer(server)}

	// Catch SIGTERM/SIGINT so the process exits cleanly and flushes
	// exporters.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "http serve error: %v\n", err)
		os.Exit(1)
	}
}
