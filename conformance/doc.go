// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides the fixture API used to check that client and
// server agree on routing. It declares a root [Conformance] interface with
// leaf methods covering every argument kind and body codec, two mounts of
// the generic [Module] interface (which inherits from [Reader] and [Tagged]),
// and nested [Sequence] modules addressed by path parameters.
//
// [Service] is the in-memory implementation; [API] is the bound root type to
// pass to aconite.NewServer and aconite.NewClient.
package conformance
