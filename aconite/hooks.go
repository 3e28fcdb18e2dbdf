// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"log/slog"
)

// DispatchHook provides observability callpoints around each leaf method
// invocation. Implementations must be safe for concurrent use.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries method metadata passed to hooks.
type DispatchInfo struct {
	Method            string            // Go method name
	Verb              Verb              // HTTP verb of the leaf method
	Route             string            // full matched pattern, e.g. "/seq/{n}/items"
	ServerID          string            // Server identifier
	RequestID         string            // Request identifier
	TransportMetadata map[string]string // Request headers by lowercased name, first value only
}

// CallStatistics holds per-call I/O counters.
type CallStatistics struct {
	Arguments   int64
	InputBytes  int64
	OutputBytes int64
}

// RecordInput records one decoded argument of the given encoded size.
func (s *CallStatistics) RecordInput(bytes int64) {
	s.Arguments++
	s.InputBytes += bytes
}

// RecordOutput records an encoded response body.
func (s *CallStatistics) RecordOutput(bytes int64) {
	s.OutputBytes += bytes
}

// hookStart calls OnDispatchStart, recovering from panics so a faulty hook
// cannot fail the request.
func hookStart(ctx context.Context, hook DispatchHook, info DispatchInfo) (outCtx context.Context, token HookToken, active bool) {
	outCtx = ctx
	if hook == nil {
		return
	}
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("dispatch hook start panic", "err", rv)
		}
	}()
	hookCtx, tok := hook.OnDispatchStart(ctx, info)
	if hookCtx != nil {
		outCtx = hookCtx
	}
	return outCtx, tok, true
}

func hookEnd(ctx context.Context, hook DispatchHook, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("dispatch hook end panic", "err", rv)
		}
	}()
	hook.OnDispatchEnd(ctx, token, info, stats, err)
}
