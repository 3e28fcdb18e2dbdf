// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"slices"
	"sync"
)

// Acceptor is one stage of a request pipeline: it produces a response,
// typically by delegating to the next stage and transforming the result.
type Acceptor interface {
	Accept(ctx context.Context, req Request) (Response, error)
}

// AcceptorFunc adapts a function to Acceptor.
type AcceptorFunc func(ctx context.Context, req Request) (Response, error)

func (f AcceptorFunc) Accept(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Factory builds a stage around next from a configuration value.
type Factory[C any] interface {
	Create(next Acceptor, config C) Acceptor
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc[C any] func(next Acceptor, config C) Acceptor

func (f FactoryFunc[C]) Create(next Acceptor, config C) Acceptor {
	return f(next, config)
}

// Terminal stages, invoked only when no installed stage produced a response.
var (
	// NotFound ends server pipelines.
	NotFound Acceptor = AcceptorFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{}, newError(ErrNotFound, nil, "no route for %s %s", req.Verb, req.Path)
	})
	// Unimplemented ends client pipelines that have no transport installed.
	Unimplemented Acceptor = AcceptorFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{}, newError(ErrUnimplemented, nil, "no transport for %s %s", req.Verb, req.Path)
	})
)

// wrap is a factory with its configuration already applied.
type wrap func(next Acceptor) Acceptor

// Pipeline records stages in declaration order and builds them into a
// single Acceptor. Stages execute in the order they were installed.
type Pipeline struct {
	mu       sync.Mutex
	terminal Acceptor
	stages   []wrap
}

// NewPipeline returns an empty pipeline ending in terminal.
func NewPipeline(terminal Acceptor) *Pipeline {
	return &Pipeline{terminal: terminal}
}

// NewClientPipeline returns an empty pipeline ending in Unimplemented.
func NewClientPipeline() *Pipeline {
	return NewPipeline(Unimplemented)
}

// NewServerPipeline returns an empty pipeline ending in NotFound.
func NewServerPipeline() *Pipeline {
	return NewPipeline(NotFound)
}

// Install appends a stage built by f with config.
func Install[C any](p *Pipeline, f Factory[C], config C) *Pipeline {
	return p.Use(func(next Acceptor) Acceptor { return f.Create(next, config) })
}

// Use appends a stage that needs no configuration.
func (p *Pipeline) Use(f func(next Acceptor) Acceptor) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, f)
	return p
}

// Len returns the number of installed stages.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stages)
}

// Build folds the stages over the terminal, last installed innermost.
func (p *Pipeline) Build() Acceptor {
	return p.build()
}

// build is Build with extra stages placed after the installed ones.
func (p *Pipeline) build(inner ...wrap) Acceptor {
	p.mu.Lock()
	stages := slices.Concat(p.stages, inner)
	p.mu.Unlock()

	a := p.terminal
	for _, s := range slices.Backward(stages) {
		a = s(a)
	}
	return a
}
