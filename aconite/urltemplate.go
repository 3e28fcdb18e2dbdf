// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"fmt"
	"net/url"
	"strings"
)

// partKind orders template parts by specificity: text > param > empty.
type partKind int

const (
	partEmpty partKind = iota
	partParam
	partText
)

type urlPart struct {
	kind  partKind
	value string // literal text, or the parameter name
}

// UrlFormatError reports a malformed path template.
type UrlFormatError struct {
	Pattern string
	Offset  int
	Reason  string
}

func (e *UrlFormatError) Error() string {
	return fmt.Sprintf("invalid url template %q at offset %d: %s", e.Pattern, e.Offset, e.Reason)
}

// UrlTemplate is an immutable parsed path template such as
// "/users/{id}/posts".
type UrlTemplate struct {
	pattern string
	parts   []urlPart
}

// NewUrlTemplate parses and normalizes pattern. The normalized form has one
// leading slash and no trailing slash; "/" normalizes to the empty template.
func NewUrlTemplate(pattern string) (*UrlTemplate, error) {
	normalized := normalizePath(pattern)
	t := &UrlTemplate{pattern: normalized}

	var text strings.Builder
	for i := 0; i < len(normalized); i++ {
		switch c := normalized[i]; c {
		case '{':
			end := strings.IndexAny(normalized[i+1:], "{}")
			if end < 0 || normalized[i+1+end] != '}' {
				return nil, &UrlFormatError{Pattern: pattern, Offset: i, Reason: "unterminated or nested placeholder"}
			}
			name := normalized[i+1 : i+1+end]
			if name == "" || strings.Contains(name, "/") {
				return nil, &UrlFormatError{Pattern: pattern, Offset: i, Reason: "invalid placeholder name"}
			}
			if text.Len() == 0 && len(t.parts) > 0 {
				return nil, &UrlFormatError{Pattern: pattern, Offset: i, Reason: "adjacent placeholders"}
			}
			if text.Len() > 0 {
				t.parts = append(t.parts, urlPart{kind: partText, value: text.String()})
				text.Reset()
			}
			t.parts = append(t.parts, urlPart{kind: partParam, value: name})
			i += end + 1
		case '}':
			return nil, &UrlFormatError{Pattern: pattern, Offset: i, Reason: "unbalanced '}'"}
		default:
			text.WriteByte(c)
		}
	}
	if text.Len() > 0 {
		t.parts = append(t.parts, urlPart{kind: partText, value: text.String()})
	}
	return t, nil
}

// MustUrlTemplate is like NewUrlTemplate but panics on a malformed pattern.
func MustUrlTemplate(pattern string) *UrlTemplate {
	t, err := NewUrlTemplate(pattern)
	if err != nil {
		panic(fmt.Sprintf("aconite: %v", err))
	}
	return t
}

// normalizePath trims whitespace, enforces a single leading slash and drops
// trailing slashes.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return "/" + strings.TrimLeft(p, "/")
}

// String returns the normalized pattern.
func (t *UrlTemplate) String() string {
	return t.pattern
}

// Params returns the placeholder names in order of appearance.
func (t *UrlTemplate) Params() []string {
	var names []string
	for _, p := range t.parts {
		if p.kind == partParam {
			names = append(names, p.value)
		}
	}
	return names
}

// Parse matches the template against a prefix of path. It returns the
// unconsumed suffix, which is either empty or starts with a slash, and the
// captured placeholder values.
func (t *UrlTemplate) Parse(path string) (string, map[string]string, bool) {
	pos := 0
	var params map[string]string
	for i, p := range t.parts {
		rest := path[pos:]
		if p.kind == partText {
			if !strings.HasPrefix(rest, p.value) {
				return "", nil, false
			}
			pos += len(p.value)
			continue
		}

		end := strings.IndexByte(rest, '/')
		if end < 0 {
			end = len(rest)
		}
		segment := rest[:end]
		if i+1 < len(t.parts) {
			// A literal sharing the segment ("{name}.json") bounds the capture.
			lead := t.parts[i+1].value
			if k := strings.IndexByte(lead, '/'); k >= 0 {
				lead = lead[:k]
			}
			if lead != "" {
				k := strings.LastIndex(segment, lead)
				if k < 0 {
					return "", nil, false
				}
				segment = segment[:k]
			}
		}
		if segment == "" {
			return "", nil, false
		}
		value, err := url.PathUnescape(segment)
		if err != nil {
			return "", nil, false
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[p.value] = value
		pos += len(segment)
	}

	suffix := path[pos:]
	if suffix != "" && suffix[0] != '/' {
		return "", nil, false
	}
	return suffix, params, true
}

// ParseEntire is like Parse but requires the template to consume all of
// path.
func (t *UrlTemplate) ParseEntire(path string) (map[string]string, bool) {
	suffix, params, ok := t.Parse(path)
	if !ok || (suffix != "" && suffix != "/") {
		return nil, false
	}
	return params, true
}

// Format substitutes params into the template. A missing parameter is a
// programming error and panics.
func (t *UrlTemplate) Format(params map[string]string) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.kind == partText {
			b.WriteString(p.value)
			continue
		}
		v, ok := params[p.value]
		if !ok {
			panic(fmt.Sprintf("aconite: formatting %q: missing path parameter %q", t.pattern, p.value))
		}
		b.WriteString(url.PathEscape(v))
	}
	return b.String()
}

// Compare orders templates by specificity. It returns a positive number when
// t is more specific than o, negative when less, and zero when equal.
// Parts are compared position by position; at the first difference a literal
// beats a placeholder, which beats the end of the template, and two literals
// compare lexicographically.
func (t *UrlTemplate) Compare(o *UrlTemplate) int {
	n := max(len(t.parts), len(o.parts))
	for i := range n {
		a, b := t.part(i), o.part(i)
		if a.kind != b.kind {
			return int(a.kind) - int(b.kind)
		}
		if a.kind == partText {
			if c := strings.Compare(a.value, b.value); c != 0 {
				return c
			}
		}
	}
	return 0
}

func (t *UrlTemplate) part(i int) urlPart {
	if i < len(t.parts) {
		return t.parts[i]
	}
	return urlPart{kind: partEmpty}
}
