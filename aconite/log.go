// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"log/slog"
	"time"
)

// AccessLog logs one record per request to the configured logger, or to
// slog.Default() when it is nil. Install it before ErrorHandler to see the
// statuses errors were translated to.
var AccessLog Factory[*slog.Logger] = FactoryFunc[*slog.Logger](newAccessLog)

func newAccessLog(next Acceptor, logger *slog.Logger) Acceptor {
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		start := time.Now()
		resp, err := next.Accept(ctx, req)
		attrs := []any{
			"verb", req.Verb,
			"path", req.Path,
			"duration", time.Since(start),
		}
		if id := req.Headers.Get(HeaderRequestID); id != "" {
			attrs = append(attrs, "request_id", id)
		}
		if err != nil {
			l.WarnContext(ctx, "request error", append(attrs, "err", err)...)
			return resp, err
		}
		l.InfoContext(ctx, "request", append(attrs, "status", resp.StatusCode())...)
		return resp, nil
	})
}
