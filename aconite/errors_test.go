// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByType(t *testing.T) {
	err := newError(ErrArgumentMissing, nil, "missing %q", "q")
	assert.ErrorIs(t, err, ErrArgumentMissing)
	assert.ErrorIs(t, err, ErrAconite)
	assert.NotErrorIs(t, err, ErrArgumentInvalid)
	assert.Equal(t, `ArgumentMissing: missing "q"`, err.Error())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Equal(t, "ArgumentMissing", err.Code())

	wrapped := fmt.Errorf("calling: %w", err)
	assert.ErrorIs(t, wrapped, ErrArgumentMissing)

	custom := &Error{Status: http.StatusConflict, Type: "Conflict"}
	assert.Equal(t, "Conflict", custom.Error())
	assert.NotErrorIs(t, custom, ErrNotFound)
}

func TestErrorCause(t *testing.T) {
	err := newError(ErrArgumentInvalid, io.ErrUnexpectedEOF, "decoding")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, http.StatusInternalServerError, (&Error{}).HTTPStatus())
}

func TestBuildError(t *testing.T) {
	err := &BuildError{Interface: "Root", Method: "Find", Param: "q", Err: io.EOF}
	assert.Equal(t, "aconite: Root.Find(q): EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)

	err = &BuildError{Interface: "Root", Err: errors.New("cycle")}
	assert.Equal(t, "aconite: Root: cycle", err.Error())
}
