// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// EncodingZstd is the content coding handled by the compression stages.
const EncodingZstd = "zstd"

// CompressionConfig configures Compression and ClientCompression.
type CompressionConfig struct {
	// Level is the zstd encoder level; zero selects zstd.SpeedDefault.
	Level zstd.EncoderLevel
	// MinSize is the smallest body worth compressing.
	MinSize int
}

// Compression is a server stage that decodes zstd request bodies and
// compresses response bodies for clients that accept zstd.
var Compression Factory[CompressionConfig] = FactoryFunc[CompressionConfig](newCompression)

// ClientCompression is a client stage that compresses request bodies,
// advertises zstd and decodes compressed responses.
var ClientCompression Factory[CompressionConfig] = FactoryFunc[CompressionConfig](newClientCompression)

type zstdCodec struct {
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	minSize int
}

func newZstdCodec(cfg CompressionConfig) *zstdCodec {
	level := cfg.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		panic(fmt.Sprintf("aconite: zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("aconite: zstd decoder: %v", err))
	}
	return &zstdCodec{enc: enc, dec: dec, minSize: cfg.MinSize}
}

// compress returns b encoded, or nil when b is too small to bother.
func (z *zstdCodec) compress(b *Body) *Body {
	if b == nil || len(b.Data) < z.minSize || len(b.Data) == 0 {
		return nil
	}
	return &Body{ContentType: b.ContentType, Data: z.enc.EncodeAll(b.Data, nil)}
}

// decompress decodes b according to its content coding header value.
func (z *zstdCodec) decompress(encoding string, b *Body) (*Body, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return b, nil
	case EncodingZstd:
	default:
		return nil, newError(ErrUnsupportedMediaType, nil, "content encoding %q not supported", encoding)
	}
	if b == nil {
		return nil, nil
	}
	data, err := z.dec.DecodeAll(b.Data, nil)
	if err != nil {
		return nil, newError(ErrArgumentInvalid, err, "decoding zstd body")
	}
	return &Body{ContentType: b.ContentType, Data: data}, nil
}

func acceptsZstd(h http.Header) bool {
	for _, v := range h.Values(HeaderAcceptEncoding) {
		for _, part := range strings.Split(v, ",") {
			coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(coding, EncodingZstd) {
				return true
			}
		}
	}
	return false
}

func withoutHeader(h http.Header, key string) http.Header {
	if h.Get(key) == "" {
		return h
	}
	c := h.Clone()
	c.Del(key)
	return c
}

func newCompression(next Acceptor, cfg CompressionConfig) Acceptor {
	z := newZstdCodec(cfg)
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		if enc := req.Headers.Get(HeaderContentEncoding); enc != "" {
			body, err := z.decompress(enc, req.Body)
			if err != nil {
				return Response{}, err
			}
			req = req.WithBody(body)
			req.Headers = withoutHeader(req.Headers, HeaderContentEncoding)
		}

		resp, err := next.Accept(ctx, req)
		if err != nil || !acceptsZstd(req.Headers) || resp.Headers.Get(HeaderContentEncoding) != "" {
			return resp, err
		}
		if body := z.compress(resp.Body); body != nil {
			resp = resp.WithBody(body).WithHeader(HeaderContentEncoding, EncodingZstd)
		}
		return resp, nil
	})
}

func newClientCompression(next Acceptor, cfg CompressionConfig) Acceptor {
	z := newZstdCodec(cfg)
	return AcceptorFunc(func(ctx context.Context, req Request) (Response, error) {
		if body := z.compress(req.Body); body != nil {
			req = req.WithBody(body).WithHeader(HeaderContentEncoding, EncodingZstd)
		}
		req = req.WithHeader(HeaderAcceptEncoding, EncodingZstd)

		resp, err := next.Accept(ctx, req)
		if err != nil {
			return resp, err
		}
		if enc := resp.Headers.Get(HeaderContentEncoding); enc != "" {
			body, err := z.decompress(enc, resp.Body)
			if err != nil {
				return Response{}, err
			}
			resp = resp.WithBody(body)
			resp.Headers = withoutHeader(resp.Headers, HeaderContentEncoding)
		}
		return resp, nil
	})
}
