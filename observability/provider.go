package observability

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cronus42/goose"
)

const (
	modeComplete = "complete"
	modeStream   = "stream"
)

// InstrumentedProvider wraps an llmprovider.Provider with metrics and tracing.
// Stream spans stay open until the consumer reaches the end of the stream,
// hits its terminal error or closes it.
type InstrumentedProvider struct {
	inner   llmprovider.Provider
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedProvider wraps an LLM provider with observability.
func NewInstrumentedProvider(inner llmprovider.Provider, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedProvider {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedProvider{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (p *InstrumentedProvider) Name() llmprovider.ProviderID { return p.inner.Name() }

func (p *InstrumentedProvider) SupportsModel(model string) bool { return p.inner.SupportsModel(model) }

func (p *InstrumentedProvider) Complete(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.Message, *llmprovider.ProviderUsage, error) {
	provider := p.inner.Name().String()

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "llm.complete", trace.WithAttributes(requestAttributes(provider, req)...))
		defer span.End()
	}

	start := time.Now()
	msg, usage, err := p.inner.Complete(ctx, req)
	p.record(span, provider, req.Model, modeComplete, time.Since(start), usage, err)
	return msg, usage, err
}

func (p *InstrumentedProvider) Stream(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.MessageStream, error) {
	provider := p.inner.Name().String()

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "llm.stream", trace.WithAttributes(requestAttributes(provider, req)...))
	}

	start := time.Now()
	stream, err := p.inner.Stream(ctx, req)
	if err != nil {
		p.record(span, provider, req.Model, modeStream, time.Since(start), nil, err)
		if span != nil {
			span.End()
		}
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.ActiveStreams.Inc()
	}
	stream.Observe(&streamObserver{
		p:        p,
		span:     span,
		provider: provider,
		model:    req.Model,
		start:    start,
	})
	return stream, nil
}

// record reports the outcome of one request. span may be nil.
func (p *InstrumentedProvider) record(span trace.Span, provider, model, mode string, elapsed time.Duration, usage *llmprovider.ProviderUsage, err error) {
	if usage != nil && usage.Model != "" {
		model = usage.Model
	}

	status := "success"
	switch {
	case errors.Is(err, llmprovider.ErrStreamClosed):
		status = "closed"
	case err != nil:
		status = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if span != nil {
		span.SetAttributes(attribute.String("llm.status", status))
		if usage != nil {
			span.SetAttributes(
				attribute.String("llm.response.model", usage.Model),
				attribute.Int("llm.usage.input_tokens", usage.Usage.Input()),
				attribute.Int("llm.usage.output_tokens", usage.Usage.Output()),
			)
		}
	}

	if p.metrics == nil {
		return
	}
	p.metrics.RequestsTotal.WithLabelValues(provider, model, mode, status).Inc()
	p.metrics.RequestDuration.WithLabelValues(provider, model, mode).Observe(elapsed.Seconds())
	if status == "error" {
		p.metrics.ErrorsTotal.WithLabelValues(provider, errorKind(err)).Inc()
	}
	if usage != nil {
		p.metrics.TokensUsed.WithLabelValues(provider, model, "input").Add(float64(usage.Usage.Input()))
		p.metrics.TokensUsed.WithLabelValues(provider, model, "output").Add(float64(usage.Usage.Output()))
		if n := usage.Usage.CacheReadTokens; n != nil {
			p.metrics.TokensUsed.WithLabelValues(provider, model, "cache_read").Add(float64(*n))
		}
		if n := usage.Usage.CacheWriteTokens; n != nil {
			p.metrics.TokensUsed.WithLabelValues(provider, model, "cache_write").Add(float64(*n))
		}
	}
}

// streamObserver reports a stream as its consumer sees it. OnEnd may run on
// the goroutine calling Close while the consumer is still in Recv.
type streamObserver struct {
	p        *InstrumentedProvider
	span     trace.Span
	provider string
	model    string
	start    time.Time

	mu     sync.Mutex
	items  int
	usage  *llmprovider.ProviderUsage
	closed bool
}

func (o *streamObserver) OnItem(item llmprovider.StreamItem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || item.IsEnd() {
		return
	}

	o.items++
	if o.items == 1 {
		ttfi := time.Since(o.start)
		if o.span != nil {
			o.span.AddEvent("first_item")
		}
		if o.p.metrics != nil {
			o.p.metrics.TimeToFirstItem.WithLabelValues(o.provider, o.model).Observe(ttfi.Seconds())
		}
	}

	kind := "message"
	if item.Usage != nil {
		kind = "usage"
		o.usage = item.Usage
	}
	if o.p.metrics != nil {
		o.p.metrics.StreamItems.WithLabelValues(o.provider, kind).Inc()
	}
}

func (o *streamObserver) OnEnd(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true

	o.p.record(o.span, o.provider, o.model, modeStream, time.Since(o.start), o.usage, err)
	if o.span != nil {
		o.span.SetAttributes(attribute.Int("llm.stream.items", o.items))
		o.span.End()
	}
	if o.p.metrics != nil {
		o.p.metrics.ActiveStreams.Dec()
	}
}

func requestAttributes(provider string, req *llmprovider.GenerateRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", provider),
		attribute.Int("llm.request.messages", len(req.Messages)),
		attribute.Int("llm.request.tools", len(req.Tools)),
	}
	if req.Model != "" {
		attrs = append(attrs, attribute.String("llm.request.model", req.Model))
	}
	return attrs
}

func errorKind(err error) string {
	if kind, ok := llmprovider.ErrorKindOf(err); ok {
		return kind.String()
	}
	return "unclassified"
}
