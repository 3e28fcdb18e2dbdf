// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

// maxResolveDepth bounds substitution chains through self-referential
// bindings.
const maxResolveDepth = 64

// Resolve substitutes the type variables of child using the binding carried
// by parent, an API interface type such as Module[DataA].
//
// A variable is looked up by its ordinal among the type parameters of its
// declaring interface. When that interface is an ancestor of parent the
// binding is found by resolving parent's Extends clauses, so a child
// interface may re-parameterize its parent. Variables that cannot be bound
// are returned unchanged; callers must tolerate partially resolved types.
func Resolve(parent, child *Type) *Type {
	return resolve(parent, child, 0)
}

func resolve(parent, child *Type, depth int) *Type {
	if child == nil || child.Resolved() || depth > maxResolveDepth {
		return child
	}
	if child.kind == KindVariable {
		binding := bindingFor(parent, child.owner, depth)
		if binding == nil {
			return child
		}
		idx := child.ordinal()
		if idx < 0 || idx >= len(binding.args) {
			return child
		}
		arg := binding.args[idx]
		if arg.kind == KindVariable && arg.owner == child.owner && arg.name == child.name {
			return child
		}
		// The bound argument may carry variables of an inheriting interface.
		return resolve(parent, arg, depth+1)
	}

	args := make([]*Type, len(child.args))
	for i, a := range child.args {
		args[i] = resolve(parent, a, depth+1)
	}
	return child.withArgs(args)
}

// bindingFor finds the application of owner in t or its ancestors.
func bindingFor(t *Type, owner *Interface, depth int) *Type {
	if owner == nil || t == nil || t.iface == nil || depth > maxResolveDepth {
		return nil
	}
	if t.iface == owner {
		return t
	}
	for _, parent := range t.iface.Extends {
		if b := bindingFor(resolve(t, parent, depth+1), owner, depth+1); b != nil {
			return b
		}
	}
	return nil
}
