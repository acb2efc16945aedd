package engine

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dubhe-dev/dubhe/pkg/analysis/matching"
	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/patterns"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithScorer replaces the name similarity service used for semantic tokens.
func WithScorer(scorer matching.Scorer) Option {
	return func(e *Engine) {
		e.scorer = scorer
	}
}

// WithPatternStore replaces the pattern source. By default patterns come
// from patterns.dir when configured, otherwise from the embedded library.
func WithPatternStore(store patterns.Source) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithClassifications restricts a run to the given classifications.
func WithClassifications(classes ...models.Classification) Option {
	return func(e *Engine) {
		if len(classes) > 0 {
			e.classifications = classes
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		if mp != nil {
			e.meter = mp.Meter(instrumentationName)
		}
	}
}
