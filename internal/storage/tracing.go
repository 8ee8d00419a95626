package storage

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/BradenHooton/csm/internal/storage"

// Traced wraps a collection so every operation runs inside a span named
// storage.<collection>.<op>
func Traced[T any](inner Collection[T], name string) Collection[T] {
	return &traced[T]{inner: inner, name: name, tracer: otel.Tracer(tracerName)}
}

type traced[T any] struct {
	inner  Collection[T]
	name   string
	tracer trace.Tracer
}

func (t *traced[T]) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "storage."+t.name+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.collection", t.name)),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *traced[T]) Store(ctx context.Context, rec T) error {
	ctx, span := t.start(ctx, "store")
	err := t.inner.Store(ctx, rec)
	finish(span, err)
	return err
}

func (t *traced[T]) Insert(ctx context.Context, rec T) error {
	ctx, span := t.start(ctx, "insert")
	err := t.inner.Insert(ctx, rec)
	finish(span, err)
	return err
}

func (t *traced[T]) Get(ctx context.Context, q Query) ([]T, error) {
	ctx, span := t.start(ctx, "get")
	out, err := t.inner.Get(ctx, q)
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	finish(span, err)
	return out, err
}

func (t *traced[T]) Delete(ctx context.Context, f Filter) (int64, error) {
	ctx, span := t.start(ctx, "delete")
	n, err := t.inner.Delete(ctx, f)
	span.SetAttributes(attribute.Int64("db.rows", n))
	finish(span, err)
	return n, err
}

func (t *traced[T]) Count(ctx context.Context, f Filter) (int64, error) {
	ctx, span := t.start(ctx, "count")
	n, err := t.inner.Count(ctx, f)
	finish(span, err)
	return n, err
}

func (t *traced[T]) Rename(ctx context.Context, oldKey any, rec T) error {
	ctx, span := t.start(ctx, "rename")
	err := t.inner.Rename(ctx, oldKey, rec)
	finish(span, err)
	return err
}
