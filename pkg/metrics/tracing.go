package metrics

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Tracer starts spans around protocol phases. Implementations must be safe
// for concurrent use; the interceptor traces from multiple goroutines.
type Tracer interface {
	// StartSpan opens a span and returns a function that closes it.
	// Pass the phase error (nil on success) to the ender.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder finishes a span, recording err when non-nil.
type SpanEnder func(err error)

// SpanOption configures a span at start time.
type SpanOption func(*spanConfig)

type spanConfig struct {
	attributes map[string]interface{}
}

// WithAttributes attaches attributes to the span.
func WithAttributes(attrs map[string]interface{}) SpanOption {
	return func(c *spanConfig) { c.attributes = attrs }
}

// Span names for the qkd-go protocol phases.
const (
	SpanSenderSession   = "qkd.sender.session"
	SpanReceiverSession = "qkd.receiver.session"
	SpanIntercept       = "qkd.intercept"
	SpanHopTransmit     = "qkd.hop.transmit"
	SpanHopReceive      = "qkd.hop.receive"
)

// NoOpTracer discards all spans. The default when tracing is unconfigured.
type NoOpTracer struct{}

// StartSpan returns the context unchanged and a no-op ender.
func (NoOpTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// RecordedSpan is a completed span captured by SimpleTracer.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Attributes map[string]interface{}
	Error      error
	SpanID     string
	ParentID   string
}

// SimpleTracer records spans in memory. Intended for tests and debugging.
type SimpleTracer struct {
	mu    sync.Mutex
	next  atomic.Uint64
	spans []RecordedSpan
}

// NewSimpleTracer returns an empty in-memory tracer.
func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

// StartSpan implements Tracer.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := &spanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	span := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: cfg.attributes,
		SpanID:     strconv.FormatUint(t.next.Add(1), 10),
	}
	if parent := spanFrom(ctx); parent != nil {
		span.ParentID = parent.SpanID
	}
	ctx = contextWith(ctx, span)
	return ctx, func(err error) {
		span.Duration = time.Since(span.StartTime)
		span.Error = err
		t.mu.Lock()
		t.spans = append(t.spans, *span)
		t.mu.Unlock()
	}
}

// Spans returns a copy of all recorded spans.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedSpan, len(t.spans))
	copy(out, t.spans)
	return out
}

type spanKey struct{}

func contextWith(ctx context.Context, span *RecordedSpan) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

func spanFrom(ctx context.Context) *RecordedSpan {
	span, _ := ctx.Value(spanKey{}).(*RecordedSpan)
	return span
}

// --- Global tracer ---

var (
	globalTracer   Tracer = NoOpTracer{}
	globalTracerMu sync.RWMutex
)

// SetTracer installs the global tracer.
func SetTracer(t Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer.
func GetTracer() Tracer {
	globalTracerMu.RLock()
	defer globalTracerMu.RUnlock()
	return globalTracer
}

// StartSpan opens a span on the global tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, opts...)
}
