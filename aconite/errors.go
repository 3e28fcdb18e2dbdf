// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"fmt"
	"net/http"
)

// Error is a request-time failure that maps to an HTTP status.
type Error struct {
	Status  int
	Type    string // e.g. "ArgumentMissing", "MethodNotAllowed"
	Message string
	Cause   error
}

// Sentinels for use with errors.Is. Matching compares Type only.
var (
	// ErrAconite matches any *Error.
	ErrAconite              = &Error{}
	ErrArgumentMissing      = &Error{Status: http.StatusBadRequest, Type: "ArgumentMissing"}
	ErrArgumentInvalid      = &Error{Status: http.StatusBadRequest, Type: "ArgumentInvalid"}
	ErrNotFound             = &Error{Status: http.StatusNotFound, Type: "NotFound"}
	ErrMethodNotAllowed     = &Error{Status: http.StatusMethodNotAllowed, Type: "MethodNotAllowed"}
	ErrUnsupportedMediaType = &Error{Status: http.StatusUnsupportedMediaType, Type: "UnsupportedMediaType"}
	ErrUnimplemented        = &Error{Status: http.StatusNotImplemented, Type: "Unimplemented"}
)

var errorTypesByStatus = map[int]*Error{
	http.StatusNotFound:             ErrNotFound,
	http.StatusMethodNotAllowed:     ErrMethodNotAllowed,
	http.StatusUnsupportedMediaType: ErrUnsupportedMediaType,
	http.StatusNotImplemented:       ErrUnimplemented,
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is. A target with an empty Type matches any *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && (t.Type == "" || t.Type == e.Type)
}

// HTTPStatus returns the status to answer with.
func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Code returns the error type.
func (e *Error) Code() string {
	return e.Type
}

// newError derives a request error from a sentinel.
func newError(sentinel *Error, cause error, format string, args ...any) *Error {
	return &Error{
		Status:  sentinel.Status,
		Type:    sentinel.Type,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// BuildError reports an invalid API declaration. It is raised while building
// descriptors, never while serving requests.
type BuildError struct {
	Interface string
	Method    string
	Param     string
	Err       error
}

func (e *BuildError) Error() string {
	where := e.Interface
	if e.Method != "" {
		where += "." + e.Method
	}
	if e.Param != "" {
		where += "(" + e.Param + ")"
	}
	return fmt.Sprintf("aconite: %s: %v", where, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
