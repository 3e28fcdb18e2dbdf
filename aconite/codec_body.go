// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"bytes"
	"fmt"
	"reflect"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

// Body media types.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
	ContentTypeProto   = "application/x-protobuf"
	ContentTypeArrow   = "application/vnd.apache.arrow.stream"
)

var protoMessageType = reflect.TypeFor[proto.Message]()

// JSONBodies encodes any type as JSON.
func JSONBodies() BodySerializerFactory {
	return BodySerializerFactoryFunc(func(_ Metadata, t reflect.Type) BodySerializer {
		return jsonSerializer{t: t}
	})
}

type jsonSerializer struct {
	t reflect.Type
}

func (jsonSerializer) ContentType() string { return ContentTypeJSON }

func (s jsonSerializer) Serialize(v any) (*Body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %v as json: %w", s.t, err)
	}
	return &Body{ContentType: ContentTypeJSON, Data: data}, nil
}

func (s jsonSerializer) Deserialize(b *Body) (any, error) {
	out := reflect.New(s.t)
	if err := json.Unmarshal(b.Data, out.Interface()); err != nil {
		return nil, newError(ErrArgumentInvalid, err, "decoding %v from json", s.t)
	}
	return out.Elem().Interface(), nil
}

// MsgpackBodies encodes any type as MessagePack. Struct fields are named by
// their json tags so one set of tags serves both codecs.
func MsgpackBodies() BodySerializerFactory {
	return BodySerializerFactoryFunc(func(_ Metadata, t reflect.Type) BodySerializer {
		return msgpackSerializer{t: t}
	})
}

type msgpackSerializer struct {
	t reflect.Type
}

func (msgpackSerializer) ContentType() string { return ContentTypeMsgpack }

func (s msgpackSerializer) Serialize(v any) (*Body, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding %v as msgpack: %w", s.t, err)
	}
	return &Body{ContentType: ContentTypeMsgpack, Data: buf.Bytes()}, nil
}

func (s msgpackSerializer) Deserialize(b *Body) (any, error) {
	out := reflect.New(s.t)
	dec := msgpack.NewDecoder(bytes.NewReader(b.Data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(out.Interface()); err != nil {
		return nil, newError(ErrArgumentInvalid, err, "decoding %v from msgpack", s.t)
	}
	return out.Elem().Interface(), nil
}

// ProtoBodies encodes proto.Message implementations in the Protocol Buffers
// binary format.
func ProtoBodies() BodySerializerFactory {
	return BodySerializerFactoryFunc(func(_ Metadata, t reflect.Type) BodySerializer {
		if t.Kind() != reflect.Pointer || !t.Implements(protoMessageType) {
			return nil
		}
		return protoSerializer{t: t}
	})
}

type protoSerializer struct {
	t reflect.Type
}

func (protoSerializer) ContentType() string { return ContentTypeProto }

func (s protoSerializer) Serialize(v any) (*Body, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%T is not a proto.Message", v)
	}
	data, err := proto.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %v as protobuf: %w", s.t, err)
	}
	return &Body{ContentType: ContentTypeProto, Data: data}, nil
}

func (s protoSerializer) Deserialize(b *Body) (any, error) {
	m := reflect.New(s.t.Elem()).Interface().(proto.Message)
	if err := proto.Unmarshal(b.Data, m); err != nil {
		return nil, newError(ErrArgumentInvalid, err, "decoding %v from protobuf", s.t)
	}
	return m, nil
}
