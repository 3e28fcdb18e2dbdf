// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"fmt"
	"mime"
	"reflect"
	"slices"
	"strings"
)

// StringSerializer converts between values and the string form used by
// header, path and query arguments.
type StringSerializer interface {
	// Serialize returns false when the value is absent and the argument
	// should be omitted.
	Serialize(v any) (string, bool)
	Deserialize(s string) (any, error)
}

// BodySerializer converts between values and encoded bodies of one media
// type.
type BodySerializer interface {
	ContentType() string
	Serialize(v any) (*Body, error)
	Deserialize(b *Body) (any, error)
}

// StringSerializerFactory returns a serializer for values of t, or nil when
// it cannot handle t.
type StringSerializerFactory interface {
	Create(meta Metadata, t reflect.Type) StringSerializer
}

// StringSerializerFactoryFunc adapts a function to StringSerializerFactory.
type StringSerializerFactoryFunc func(meta Metadata, t reflect.Type) StringSerializer

func (f StringSerializerFactoryFunc) Create(meta Metadata, t reflect.Type) StringSerializer {
	return f(meta, t)
}

// BodySerializerFactory returns a serializer for values of t, or nil when it
// cannot handle t.
type BodySerializerFactory interface {
	Create(meta Metadata, t reflect.Type) BodySerializer
}

// BodySerializerFactoryFunc adapts a function to BodySerializerFactory.
type BodySerializerFactoryFunc func(meta Metadata, t reflect.Type) BodySerializer

func (f BodySerializerFactoryFunc) Create(meta Metadata, t reflect.Type) BodySerializer {
	return f(meta, t)
}

// Serializers is an immutable registry of serializer factories. Factories
// added later take precedence.
type Serializers struct {
	strings []StringSerializerFactory
	bodies  []BodySerializerFactory
}

// NewSerializers returns an empty registry.
func NewSerializers() *Serializers {
	return &Serializers{}
}

// DefaultSerializers returns the registry used when none is configured:
// strings via cast, bodies as JSON with Protocol Buffers, Arrow IPC and
// MessagePack alternatives.
func DefaultSerializers() *Serializers {
	return NewSerializers().
		WithString(CastStrings()).
		WithBody(MsgpackBodies()).
		WithBody(JSONBodies()).
		WithBody(ArrowBodies()).
		WithBody(ProtoBodies())
}

// WithString returns a copy of s with f consulted before existing string
// factories.
func (s *Serializers) WithString(f StringSerializerFactory) *Serializers {
	c := *s
	c.strings = append([]StringSerializerFactory{f}, s.strings...)
	return &c
}

// WithBody returns a copy of s with f consulted before existing body
// factories.
func (s *Serializers) WithBody(f BodySerializerFactory) *Serializers {
	c := *s
	c.bodies = append([]BodySerializerFactory{f}, s.bodies...)
	return &c
}

// String returns the first string serializer accepting t.
func (s *Serializers) String(meta Metadata, t reflect.Type) (StringSerializer, error) {
	for _, f := range s.strings {
		if ser := f.Create(meta, t); ser != nil {
			return ser, nil
		}
	}
	return nil, fmt.Errorf("no string serializer for %v", t)
}

// Body returns a serializer for t built from every accepting body factory.
// The first encodes; decoding picks by content type.
func (s *Serializers) Body(meta Metadata, t reflect.Type) (BodySerializer, error) {
	var chain bodyChain
	for _, f := range s.bodies {
		if ser := f.Create(meta, t); ser != nil {
			chain = append(chain, ser)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no body serializer for %v", t)
	}
	return chain, nil
}

// bodyChain encodes with its first serializer and decodes with whichever
// serializer owns the body's media type.
type bodyChain []BodySerializer

func (c bodyChain) ContentType() string {
	return c[0].ContentType()
}

func (c bodyChain) Serialize(v any) (*Body, error) {
	return c[0].Serialize(v)
}

func (c bodyChain) Deserialize(b *Body) (any, error) {
	if b.ContentType == "" {
		return c[0].Deserialize(b)
	}
	media := mediaType(b.ContentType)
	for _, ser := range c {
		if mediaType(ser.ContentType()) == media {
			return ser.Deserialize(b)
		}
	}
	return nil, newError(ErrUnsupportedMediaType, nil, "content type %q not accepted", b.ContentType)
}

// ContentTypes lists the accepted media types in preference order.
func (c bodyChain) ContentTypes() []string {
	types := make([]string, len(c))
	for i, ser := range c {
		types[i] = ser.ContentType()
	}
	return slices.Compact(types)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
