// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Server dispatches requests to an implementation of an API type. Configure
// it with the setters and Pipeline before the first request; the pipeline is
// built once, on first use.
type Server struct {
	api          *Type
	impl         reflect.Value
	module       *ModuleDescriptor
	pipeline     *Pipeline
	serverID     string
	serviceName  string
	dispatchHook DispatchHook
	validate     *validator.Validate

	once     sync.Once
	acceptor Acceptor
}

type buildConfig struct {
	builder *Builder
}

// Option configures NewServer and NewClient.
type Option func(*buildConfig)

// WithSerializers builds descriptors with a private builder using s.
func WithSerializers(s *Serializers) Option {
	return func(c *buildConfig) {
		c.builder = NewBuilder(s)
	}
}

// WithBuilder builds descriptors with b.
func WithBuilder(b *Builder) Option {
	return func(c *buildConfig) {
		c.builder = b
	}
}

// NewServer builds the descriptor tree of api and checks that impl has a
// method of matching shape for every leaf method and module accessor it can
// see statically. Leaf methods take a context.Context followed by their
// arguments and return (R, error), or just error when void. Module
// accessors return (M, error) where M implements the nested API.
func NewServer(api *Type, impl any, opts ...Option) (*Server, error) {
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.builder == nil {
		cfg.builder = DefaultBuilder()
	}
	if impl == nil {
		return nil, fmt.Errorf("aconite: nil implementation for %s", api)
	}

	module, err := cfg.builder.Module(api)
	if err != nil {
		return nil, err
	}
	iv := reflect.ValueOf(impl)
	if err := checkImpl(module, iv.Type(), make(map[checkKey]bool)); err != nil {
		return nil, err
	}
	return &Server{
		api:      api,
		impl:     iv,
		module:   module,
		pipeline: NewServerPipeline(),
	}, nil
}

// SetServerID sets a server identifier exposed through CallContext and
// dispatch hooks.
func (s *Server) SetServerID(id string) {
	s.serverID = id
}

// ServerID returns the server identifier.
func (s *Server) ServerID() string {
	return s.serverID
}

// SetServiceName sets a logical service name used by observability hooks.
func (s *Server) SetServiceName(name string) {
	s.serviceName = name
}

// ServiceName returns the logical service name, or empty string if not set.
func (s *Server) ServiceName() string {
	return s.serviceName
}

// SetDispatchHook registers a hook that is called around each leaf method.
func (s *Server) SetDispatchHook(hook DispatchHook) {
	s.dispatchHook = hook
}

// SetValidator enables struct validation of body arguments. A failing body
// is rejected with ErrArgumentInvalid before the handler runs.
func (s *Server) SetValidator(v *validator.Validate) {
	s.validate = v
}

// API returns the served API type.
func (s *Server) API() *Type {
	return s.api
}

// Module returns the served descriptor tree.
func (s *Server) Module() *ModuleDescriptor {
	return s.module
}

// Pipeline returns the server pipeline. Routing always runs after every
// installed stage; unrouted requests fall through to NotFound.
func (s *Server) Pipeline() *Pipeline {
	return s.pipeline
}

// Accept runs req through the pipeline.
func (s *Server) Accept(ctx context.Context, req Request) (Response, error) {
	s.once.Do(func() {
		s.acceptor = s.pipeline.build(s.routing)
	})
	return s.acceptor.Accept(ctx, req)
}

// routing is the innermost stage: it dispatches to the implementation and
// delegates unmatched requests to next.
func (s *Server) routing(next Acceptor) Acceptor {
	router := RouterFor(s.module)
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		cc := &CallContext{RequestID: req.Headers.Get(HeaderRequestID), ServerID: s.serverID}
		ctx = withCallContext(ctx, cc)
		d := &dispatch{hook: s.dispatchHook, validate: s.validate, cc: cc}

		path := req.Path
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		resp, result, err := router.accept(ctx, d, s.impl, "", path, req)
		switch result {
		case routeDone, routeMissing:
			return resp, err
		case routeVerbMismatch:
			return Response{}, newError(ErrMethodNotAllowed, nil, "%s %s", req.Verb, req.Path)
		}
		return next.Accept(ctx, req)
	})
}

type checkKey struct {
	module *ModuleDescriptor
	impl   reflect.Type
}

// checkImpl verifies the method shapes of impl against m, following module
// accessors whose result type is concrete.
func checkImpl(m *ModuleDescriptor, impl reflect.Type, seen map[checkKey]bool) error {
	key := checkKey{m, impl}
	if seen[key] {
		return nil
	}
	seen[key] = true

	for _, md := range m.Methods {
		fail := func(format string, args ...any) error {
			return &BuildError{Interface: m.Type.String(), Method: md.Name, Err: fmt.Errorf("%v: "+format, append([]any{impl}, args...)...)}
		}
		method, ok := impl.MethodByName(md.Name)
		if !ok {
			return fail("missing method")
		}
		ft := method.Type
		recv := 1
		if impl.Kind() == reflect.Interface {
			recv = 0
		}

		if ft.NumIn() != recv+1+len(md.Arguments) || ft.In(recv) != contextType {
			return fail("want context.Context followed by %d arguments", len(md.Arguments))
		}
		for i, a := range md.Arguments {
			if in := ft.In(recv + 1 + i); !a.goType.AssignableTo(in) && !a.goType.ConvertibleTo(in) {
				return fail("argument %q is %v, handler takes %v", a.Param, a.goType, in)
			}
		}

		switch {
		case md.IsModule():
			if ft.NumOut() != 2 || ft.Out(1) != errorType {
				return fail("module accessor must return (module, error)")
			}
			if child := ft.Out(0); child.Kind() != reflect.Interface {
				if err := checkImpl(md.Module, child, seen); err != nil {
					return err
				}
			}
		case md.Response == nil:
			if ft.NumOut() != 1 || ft.Out(0) != errorType {
				return fail("void method must return error")
			}
		default:
			if ft.NumOut() != 2 || ft.Out(1) != errorType || !ft.Out(0).AssignableTo(md.Response.goType) {
				return fail("want (%v, error)", md.Response.goType)
			}
		}
	}
	return nil
}
