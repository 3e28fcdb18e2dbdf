// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package aconite

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

var recordBatchType = reflect.TypeFor[arrow.RecordBatch]()

// ArrowBodies encodes arrow.RecordBatch values as single-batch Arrow IPC
// streams.
func ArrowBodies() BodySerializerFactory {
	return BodySerializerFactoryFunc(func(_ Metadata, t reflect.Type) BodySerializer {
		if t != recordBatchType {
			return nil
		}
		return arrowSerializer{}
	})
}

type arrowSerializer struct{}

func (arrowSerializer) ContentType() string { return ContentTypeArrow }

func (arrowSerializer) Serialize(v any) (*Body, error) {
	batch, ok := v.(arrow.RecordBatch)
	if !ok || batch == nil {
		return nil, fmt.Errorf("%T is not an arrow.RecordBatch", v)
	}
	data, err := writeBatch(batch)
	if err != nil {
		return nil, err
	}
	return &Body{ContentType: ContentTypeArrow, Data: data}, nil
}

func (arrowSerializer) Deserialize(b *Body) (any, error) {
	batch, err := readBatch(b.Data)
	if err != nil {
		return nil, newError(ErrArgumentInvalid, err, "decoding arrow stream")
	}
	return batch, nil
}

// writeBatch encodes one batch as a complete IPC stream: schema, batch, EOS.
func writeBatch(batch arrow.RecordBatch) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(batch.Schema()))
	if err := w.Write(batch); err != nil {
		return nil, fmt.Errorf("writing arrow batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing arrow stream: %w", err)
	}
	return buf.Bytes(), nil
}

// readBatch decodes the first batch of an IPC stream. The caller owns the
// returned batch and must release it.
func readBatch(data []byte) (arrow.RecordBatch, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading arrow stream: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, fmt.Errorf("reading arrow batch: %w", err)
		}
		return nil, fmt.Errorf("arrow stream has no batches")
	}
	batch := reader.RecordBatch()
	batch.Retain() // keep batch alive after reader is released
	return batch, nil
}
