// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"fmt"
	"strings"
)

// Tag keys understood by the descriptor builder.
const (
	TagGet     = "get"
	TagHead    = "head"
	TagPost    = "post"
	TagPut     = "put"
	TagPatch   = "patch"
	TagDelete  = "delete"
	TagOptions = "options"
	TagModule  = "module"

	TagBody   = "body"
	TagHeader = "header"
	TagPath   = "path"
	TagQuery  = "query"
)

// Well-known headers.
const (
	HeaderContentType     = "Content-Type"
	HeaderContentEncoding = "Content-Encoding"
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderRequestID       = "X-Request-Id"
	HeaderErrorType       = "X-Aconite-Error"
)

var routingTags = []struct {
	key  string
	verb Verb
}{
	{TagGet, VerbGet},
	{TagHead, VerbHead},
	{TagPost, VerbPost},
	{TagPut, VerbPut},
	{TagPatch, VerbPatch},
	{TagDelete, VerbDelete},
	{TagOptions, VerbOptions},
	{TagModule, VerbModule},
}

var argumentTags = []struct {
	key  string
	kind ArgumentKind
}{
	{TagBody, ArgumentBody},
	{TagHeader, ArgumentHeader},
	{TagPath, ArgumentPath},
	{TagQuery, ArgumentQuery},
}

// parseRoute returns the verb and pattern of the single routing tag in meta.
func parseRoute(meta Metadata) (Verb, string, error) {
	if meta == nil {
		return "", "", fmt.Errorf("no routing tag")
	}
	var found []string
	var verb Verb
	var pattern string
	for _, rt := range routingTags {
		if v, ok := meta.Lookup(rt.key); ok {
			found = append(found, rt.key)
			verb, pattern = rt.verb, v
		}
	}
	switch len(found) {
	case 0:
		return "", "", fmt.Errorf("no routing tag")
	case 1:
		return verb, pattern, nil
	default:
		return "", "", fmt.Errorf("multiple routing tags: %s", strings.Join(found, ", "))
	}
}

// parseArgument returns the kind and wire name of the single argument tag in
// meta. An empty tag value keeps the declared parameter name.
func parseArgument(meta Metadata, declared string) (ArgumentKind, string, error) {
	if meta == nil {
		return 0, "", fmt.Errorf("no argument tag")
	}
	var found []string
	var kind ArgumentKind
	name := declared
	for _, at := range argumentTags {
		if v, ok := meta.Lookup(at.key); ok {
			found = append(found, at.key)
			kind = at.kind
			if v != "" {
				name = v
			}
		}
	}
	switch len(found) {
	case 0:
		return 0, "", fmt.Errorf("no argument tag")
	case 1:
		return kind, name, nil
	default:
		return 0, "", fmt.Errorf("multiple argument tags: %s", strings.Join(found, ", "))
	}
}
