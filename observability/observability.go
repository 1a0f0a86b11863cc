// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for LLM providers. All components are optional and nil-safe: when disabled,
// wrappers skip recording with a single nil check per operation.
package observability

import (
	"context"
	"fmt"

	"github.com/cronus42/goose"
)

// Observability is the top-level facade holding all observability components.
// Any field may be nil when that feature is disabled.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
}

// New creates an Observability instance from config.
// Returns nil when the config is nil (all features disabled).
func New(cfg *llmprovider.Config) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{}

	if cfg.MetricsAddr != "" {
		obs.Metrics = NewMetricsCollector()
	}

	if cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(&cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}

	return obs, nil
}

// Wrap instruments p, or returns it unchanged when nothing is enabled.
func (o *Observability) Wrap(p llmprovider.Provider) llmprovider.Provider {
	if o == nil || (o.Metrics == nil && o.Tracer == nil) {
		return p
	}
	return NewInstrumentedProvider(p, o.Metrics, o.Tracer)
}

// Shutdown releases observability resources.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.Tracer != nil {
		_ = o.Tracer.Shutdown(ctx)
	}
}
