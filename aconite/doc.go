// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package aconite derives an HTTP client and an HTTP server from a single
// declaration of an API. The API is declared as an [Interface]: a set of
// methods whose routing and argument placement are described by declarative
// tags. Both sides build the same descriptor tree from the declaration and
// therefore share identical routing semantics.
//
// # Declaring an API
//
// Methods carry exactly one routing tag. A verb tag binds a leaf method to an
// HTTP verb and a path template; a module tag marks an accessor that returns
// a nested API:
//
//	var Items = &aconite.Interface{Name: "Items", Methods: []aconite.Method{
//		{Name: "Get", Tag: aconite.Tags{"get": "/{id}"},
//			Params: []aconite.Param{{Name: "id", Tag: aconite.Tags{"path": ""}, Type: aconite.Of[int]()}},
//			Result: aconite.Of[Item]()},
//	}}
//
// Any value with a Lookup(key) (string, bool) method is accepted as tag
// metadata, so reflect.StructTag works as well:
//
//	Tag: reflect.StructTag(`post:"/items"`)
//
// Supported routing keys are get, head, post, put, patch, delete, options
// and module. Supported argument keys are body, header, path and query; a
// non-empty value overrides the parameter name on the wire. A parameter is
// optional when its type is nullable ([OptionalOf] or a Go pointer).
//
// # Path templates
//
// A template alternates literal text and {name} placeholders. A placeholder
// captures exactly one non-slash segment. Routes are tried most specific
// first: literal text beats a placeholder, which beats the end of the
// template. See [UrlTemplate.Compare].
//
// # Generic APIs
//
// An [Interface] may declare type parameters and extend other parameterized
// interfaces. Types used in method signatures are resolved against the
// binding of the enclosing module at every nesting level (see [Resolve]), so
// the same generic module mounted at different places gets distinct,
// correctly specialized descriptors.
//
// # Pipelines
//
// Requests travel through a [Pipeline] of acceptors on both sides. The
// client pipeline ends in a transport acceptor such as [HttpTransport]; the
// server pipeline ends in the router, which falls back to a "not found"
// terminal. Error translation, compression, access logging and tracing are
// all ordinary acceptors.
//
// # Status codes
//
//	400  a required argument is missing or cannot be decoded
//	404  no route matched
//	405  a route matched but not with the request verb
//	415  no body serializer accepts the request content type
package aconite
