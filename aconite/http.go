// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const defaultMaxBodySize = 32 << 20

// HttpServer serves a Server over net/http.
type HttpServer struct {
	server      *Server
	prefix      string
	maxBodySize int64
}

// NewHttpServer creates a new HTTP server wrapping an aconite server.
func NewHttpServer(server *Server) *HttpServer {
	return &HttpServer{server: server, maxBodySize: defaultMaxBodySize}
}

// SetPrefix mounts the API below prefix, e.g. "/api".
func (h *HttpServer) SetPrefix(prefix string) {
	h.prefix = normalizePath(prefix)
}

// SetMaxBodySize limits request bodies; larger requests fail with 413.
func (h *HttpServer) SetMaxBodySize(n int64) {
	h.maxBodySize = n
}

// ServeHTTP implements http.Handler.
func (h *HttpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Routing unescapes path parameters itself.
	path := r.URL.EscapedPath()
	if h.prefix != "" {
		rest, ok := strings.CutPrefix(path, h.prefix)
		if !ok || (rest != "" && rest[0] != '/') {
			http.NotFound(w, r)
			return
		}
		path = rest
	}

	req, err := h.readRequest(r, path)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	requestID := req.Headers.Get(HeaderRequestID)
	w.Header().Set(HeaderRequestID, requestID)

	resp, err := h.server.Accept(r.Context(), req)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	writeResponse(w, resp)
}

// readRequest converts an HTTP request into a Request, assigning a request
// id when the client sent none.
func (h *HttpServer) readRequest(r *http.Request, path string) (Request, error) {
	headers := r.Header.Clone()
	if headers.Get(HeaderRequestID) == "" {
		headers.Set(HeaderRequestID, uuid.NewString())
	}
	req := Request{
		Verb:    Verb(r.Method),
		Path:    path,
		Query:   r.URL.Query(),
		Headers: headers,
	}
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxBodySize))
	if err != nil {
		return Request{}, fmt.Errorf("reading request body: %w", err)
	}
	if len(data) > 0 {
		req.Body = &Body{ContentType: r.Header.Get(HeaderContentType), Data: data}
	}
	return req, nil
}

// writeError answers errors no pipeline stage translated. Request errors
// keep their status; anything else is logged and becomes a 500.
func (h *HttpServer) writeError(w http.ResponseWriter, err error, requestID string) {
	var aerr *Error
	if !errors.As(err, &aerr) {
		slog.Error("unhandled request error", "err", err, "request_id", requestID)
		aerr = &Error{Status: http.StatusInternalServerError, Type: "InternalError", Message: "internal error"}
	}
	w.Header().Set(HeaderErrorType, aerr.Type)
	http.Error(w, aerr.Message, aerr.HTTPStatus())
}

func writeResponse(w http.ResponseWriter, resp Response) {
	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if resp.Body != nil && resp.Body.ContentType != "" {
		w.Header().Set(HeaderContentType, resp.Body.ContentType)
	}
	w.WriteHeader(resp.StatusCode())
	if resp.Body != nil {
		if _, err := w.Write(resp.Body.Data); err != nil {
			slog.Debug("writing response body", "err", err)
		}
	}
}

// HttpTransportConfig configures the HttpTransport client stage.
type HttpTransportConfig struct {
	// BaseURL is prepended to request paths, e.g. "http://localhost:8080/api".
	BaseURL string
	// Client performs requests; http.DefaultClient when nil.
	Client *http.Client
}

// HttpTransport is the client stage that sends requests over HTTP. It never
// delegates to the next stage.
var HttpTransport Factory[HttpTransportConfig] = FactoryFunc[HttpTransportConfig](newHttpTransport)

func newHttpTransport(_ Acceptor, cfg HttpTransportConfig) Acceptor {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		target := base + req.Path
		if req.Path == "" {
			target += "/"
		}
		if len(req.Query) > 0 {
			target += "?" + req.Query.Encode()
		}

		var body io.Reader = http.NoBody
		if req.Body != nil {
			body = bytes.NewReader(req.Body.Data)
		}
		hr, err := http.NewRequestWithContext(ctx, string(req.Verb), target, body)
		if err != nil {
			return Response{}, err
		}
		for k, vs := range req.Headers {
			hr.Header[k] = append([]string(nil), vs...)
		}
		if req.Body != nil && req.Body.ContentType != "" {
			hr.Header.Set(HeaderContentType, req.Body.ContentType)
		}

		hresp, err := client.Do(hr)
		if err != nil {
			return Response{}, err
		}
		defer CleanlyCloseBody(hresp.Body)

		data, err := io.ReadAll(hresp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("reading response body: %w", err)
		}
		resp := Response{Status: hresp.StatusCode, Headers: hresp.Header}
		if len(data) > 0 {
			resp.Body = &Body{ContentType: hresp.Header.Get(HeaderContentType), Data: data}
		}
		return resp, nil
	})
}

// CleanlyCloseBody drains and closes a response body so the connection can
// be reused.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}
