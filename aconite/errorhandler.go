// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ContentTypeProblem is the RFC 9457 media type.
const ContentTypeProblem = "application/problem+json"

// ErrorMode selects how ErrorHandler answers failed requests.
type ErrorMode int

const (
	// ErrorRethrow returns errors unchanged to the enclosing stage.
	ErrorRethrow ErrorMode = iota
	// ErrorLogAnd500 logs errors and answers with a plain text body: the
	// error's own status for *Error, 500 otherwise.
	ErrorLogAnd500
	// ErrorProblemDetails answers with an RFC 9457 problem document.
	ErrorProblemDetails
)

// ErrorHandlerConfig configures the ErrorHandler stage.
type ErrorHandlerConfig struct {
	Mode ErrorMode
	// Logger receives failures; slog.Default() when nil.
	Logger *slog.Logger
	// Debug exposes the messages of unexpected errors to callers. Leave it
	// off for public-facing services.
	Debug bool
}

// ProblemDetails is an RFC 9457 problem document.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
	ErrorID  string `json:"error_id,omitempty"`
}

// ErrorHandler translates errors from inner stages into responses. Every
// response it produces carries the error type in the X-Aconite-Error header
// so clients can rebuild the *Error.
var ErrorHandler Factory[ErrorHandlerConfig] = FactoryFunc[ErrorHandlerConfig](newErrorHandler)

func newErrorHandler(next Acceptor, cfg ErrorHandlerConfig) Acceptor {
	if cfg.Mode == ErrorRethrow {
		return next
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		resp, err := next.Accept(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}

		status := http.StatusInternalServerError
		typ := "InternalError"
		detail := "internal error"
		var aerr *Error
		if errors.As(err, &aerr) {
			status, typ, detail = aerr.HTTPStatus(), aerr.Type, aerr.Message
		} else if cfg.Debug {
			detail = err.Error()
		}

		errorID := uuid.NewString()
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "request failed",
			"verb", req.Verb, "path", req.Path, "status", status, "err", err, "error_id", errorID)

		out := Response{Status: status, Headers: http.Header{}}
		out.Headers.Set(HeaderErrorType, typ)
		if cfg.Mode == ErrorLogAnd500 {
			return out.WithBody(&Body{ContentType: "text/plain; charset=utf-8", Data: []byte(detail)}), nil
		}

		data, merr := json.Marshal(ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: req.Path,
			Code:     typ,
			ErrorID:  errorID,
		})
		if merr != nil {
			return Response{}, merr
		}
		return out.WithBody(&Body{ContentType: ContentTypeProblem, Data: data}), nil
	})
}
