// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Query-farm/aconite/aconite"
)

// HeaderSequence is set by the Seq accessor on every response routed
// through a sequence.
const HeaderSequence = "X-Sequence"

func notFound(format string, args ...any) error {
	return &aconite.Error{Status: http.StatusNotFound, Type: "NotFound", Message: fmt.Sprintf(format, args...)}
}

// Service implements the Conformance API.
type Service struct {
	mu     sync.Mutex
	corpus []DataA
	seqs   map[int64]*SequenceStore[DataA]
	alpha  *ModuleImpl[DataA]
	beta   *ModuleImpl[DataB]
}

// NewService returns a service seeded with a small search corpus and one
// sequence with id 1.
func NewService() *Service {
	corpus := []DataA{
		{Name: "alpha", Count: 1},
		{Name: "alphabet", Count: 26},
		{Name: "beta", Count: 2},
		{Name: "gamma", Count: 3},
		{Name: "delta", Count: 4},
	}
	seq := NewSequenceStore[DataA](1)
	seq.values = slices.Clone(corpus[:3])
	return &Service{
		corpus: corpus,
		seqs:   map[int64]*SequenceStore[DataA]{1: seq},
		alpha:  NewModule(DataA{Name: "a"}, "alpha"),
		beta:   NewModule(DataB{Label: "b", Weight: 0.5}, "beta"),
	}
}

func (s *Service) Echo(_ context.Context, data DataA) (DataA, error) {
	return data, nil
}

// Search returns corpus entries whose name contains q.
func (s *Service) Search(_ context.Context, q string, limit *int) ([]DataA, error) {
	out := []DataA{}
	for _, d := range s.corpus {
		if limit != nil && len(out) >= *limit {
			break
		}
		if strings.Contains(d.Name, q) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) Whoami(_ context.Context, user string) (string, error) {
	return user, nil
}

func (s *Service) GetX(_ context.Context) (string, error) {
	return "get", nil
}

func (s *Service) PostX(_ context.Context) (string, error) {
	return "post", nil
}

// Remove deletes a sequence.
func (s *Service) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seqs[id]; !ok {
		return notFound("sequence %d", id)
	}
	delete(s.seqs, id)
	return nil
}

// Paged pages through the corpus. It returns nil past the end.
func (s *Service) Paged(_ context.Context, cursor *int, size *int) (*Page, error) {
	start, n := 0, 2
	if cursor != nil {
		start = *cursor
	}
	if size != nil && *size > 0 {
		n = *size
	}
	if start < 0 || start >= len(s.corpus) {
		return nil, nil
	}
	end := min(start+n, len(s.corpus))
	page := &Page{Total: len(s.corpus), Items: slices.Clone(s.corpus[start:end])}
	if end < len(s.corpus) {
		next := strconv.Itoa(end)
		page.Next = &next
	}
	return page, nil
}

// Raw echoes an arbitrary decoded body.
func (s *Service) Raw(_ context.Context, value any) (any, error) {
	return value, nil
}

// Wrap upper-cases a protobuf string value.
func (s *Service) Wrap(_ context.Context, value *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(strings.ToUpper(value.GetValue())), nil
}

// Rows counts the rows of an Arrow record batch.
func (s *Service) Rows(_ context.Context, batch arrow.RecordBatch) (int64, error) {
	defer batch.Release()
	return batch.NumRows(), nil
}

func (s *Service) Alpha(_ context.Context) (*ModuleImpl[DataA], error) {
	return s.alpha, nil
}

func (s *Service) Beta(_ context.Context) (*ModuleImpl[DataB], error) {
	return s.beta, nil
}

// Sequences lists sequence ids in ascending order.
func (s *Service) Sequences(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.seqs)), nil
}

// Seq resolves a sequence and tags the response with its id.
func (s *Service) Seq(ctx context.Context, n int64) (*SequenceStore[DataA], error) {
	s.mu.Lock()
	seq, ok := s.seqs[n]
	if !ok {
		seq = NewSequenceStore[DataA](n)
		s.seqs[n] = seq
		slog.Debug("created sequence", "id", n)
	}
	s.mu.Unlock()
	aconite.CallContextFrom(ctx).SetHeader(HeaderSequence, strconv.FormatInt(n, 10))
	return seq, nil
}

// ModuleImpl implements Module[T].
type ModuleImpl[T any] struct {
	mu    sync.Mutex
	value T
	label string
	items *SequenceStore[T]
}

// NewModule returns a module holding value.
func NewModule[T any](value T, label string) *ModuleImpl[T] {
	return &ModuleImpl[T]{value: value, label: label, items: NewSequenceStore[T](0)}
}

func (m *ModuleImpl[T]) Get(_ context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *ModuleImpl[T]) Label(_ context.Context) (string, error) {
	return m.label, nil
}

func (m *ModuleImpl[T]) Inner(_ context.Context) (Second[DataC, T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Second[DataC, T]{First: DataC{Value: 42}, Second: m.value}, nil
}

func (m *ModuleImpl[T]) Put(_ context.Context, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	return nil
}

func (m *ModuleImpl[T]) Items(_ context.Context) (*SequenceStore[T], error) {
	return m.items, nil
}

// SequenceStore implements Sequence[E] in memory.
type SequenceStore[E any] struct {
	mu     sync.Mutex
	id     int64
	status Status
	values []E
}

// NewSequenceStore returns an empty, pending sequence.
func NewSequenceStore[E any](id int64) *SequenceStore[E] {
	return &SequenceStore[E]{id: id, status: StatusPending}
}

func (s *SequenceStore[E]) Info(_ context.Context) (SequenceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SequenceInfo{ID: s.id, Length: len(s.values), Status: s.status}, nil
}

func (s *SequenceStore[E]) List(_ context.Context, offset, limit *int) ([]E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end := 0, len(s.values)
	if offset != nil {
		start = min(max(*offset, 0), end)
	}
	if limit != nil {
		end = min(start+max(*limit, 0), end)
	}
	return slices.Clone(s.values[start:end]), nil
}

// Append adds value and answers 201 with its index.
func (s *SequenceStore[E]) Append(ctx context.Context, value E) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, value)
	aconite.CallContextFrom(ctx).SetStatus(http.StatusCreated)
	return len(s.values) - 1, nil
}

func (s *SequenceStore[E]) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
	return nil
}

func (s *SequenceStore[E]) First(ctx context.Context) (E, error) {
	return s.At(ctx, 0)
}

func (s *SequenceStore[E]) Last(ctx context.Context) (E, error) {
	s.mu.Lock()
	n := len(s.values)
	s.mu.Unlock()
	return s.At(ctx, n-1)
}

func (s *SequenceStore[E]) At(_ context.Context, k int) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k < 0 || k >= len(s.values) {
		var zero E
		return zero, notFound("sequence %d has no item %d", s.id, k)
	}
	return s.values[k], nil
}

func (s *SequenceStore[E]) Set(_ context.Context, k int, value E) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k < 0 || k >= len(s.values) {
		return notFound("sequence %d has no item %d", s.id, k)
	}
	s.values[k] = value
	return nil
}

func (s *SequenceStore[E]) SetStatus(_ context.Context, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	return nil
}
