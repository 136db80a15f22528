package trace

import "context"

// ctxKey separates the values this package stores in a context.
type ctxKey uint8

const (
	tracerKey ctxKey = iota
	spanKey
)

// SpanContext identifies the span that new spans nest under.
type SpanContext struct {
	SpanID uint64
	GID    uint64
}

func valueOf[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithTracer returns a copy of ctx carrying t. A nil t stores Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey, t)
}

// FromContext returns the tracer stored in ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if t, ok := valueOf[Tracer](ctx, tracerKey); ok {
		return t
	}
	return Nop
}

// WithSpanContext makes sc the parent for spans started from the returned
// context.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanKey, sc)
}

// CurrentSpan returns the span stored in ctx, or the zero SpanContext.
func CurrentSpan(ctx context.Context) SpanContext {
	sc, _ := valueOf[SpanContext](ctx, spanKey)
	return sc
}
