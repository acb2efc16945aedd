package observability

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Instrumentation provides timing and tracing around analysis steps
type Instrumentation struct {
	logger *zap.Logger
	tracer trace.Tracer
}

// NewInstrumentation creates a new instrumentation instance. A nil tracer
// disables spans.
func NewInstrumentation(logger *zap.Logger, tracer trace.Tracer) *Instrumentation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Instrumentation{logger: logger, tracer: tracer}
}

// TimedOperation runs operation inside a span named name and logs its
// duration. A returned error is recorded on the span.
func (i *Instrumentation) TimedOperation(ctx context.Context, name string, operation func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := i.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	i.logger.Debug("Starting operation", zap.String("operation", name))

	err := operation(ctx)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Error("Operation failed", zap.String("operation", name), zap.Float64("duration_seconds", duration.Seconds()), zap.Error(err))
	} else {
		span.SetStatus(codes.Ok, "")
		i.logger.Debug("Operation completed", zap.String("operation", name), zap.Float64("duration_seconds", duration.Seconds()))
	}

	return err
}

// GetMemoryUsage returns current memory usage in a human-readable format
func GetMemoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	allocMB := float64(m.Alloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024

	return fmt.Sprintf("%.1fMB allocated, %.1fMB system", allocMB, sysMB)
}

// PhaseTracker tracks the sequential phases of one run
type PhaseTracker struct {
	name         string
	phases       map[string]time.Time
	durations    map[string]time.Duration
	currentPhase string
	startTime    time.Time
	logger       *zap.Logger
}

// NewPhaseTracker creates a new phase tracker
func (i *Instrumentation) NewPhaseTracker(name string) *PhaseTracker {
	i.logger.Debug("Starting operation", zap.String("operation", name))

	return &PhaseTracker{
		name:      name,
		phases:    make(map[string]time.Time),
		durations: make(map[string]time.Duration),
		startTime: time.Now(),
		logger:    i.logger,
	}
}

// StartPhase begins tracking a new phase, ending the current one
func (pt *PhaseTracker) StartPhase(phaseName string) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	pt.currentPhase = phaseName
	pt.phases[phaseName] = time.Now()

	pt.logger.Debug("Starting phase", zap.String("phase", phaseName), zap.String("parent_operation", pt.name))
}

// EndPhase ends the current phase
func (pt *PhaseTracker) EndPhase() {
	if pt.currentPhase == "" {
		return
	}

	if start, exists := pt.phases[pt.currentPhase]; exists {
		duration := time.Since(start)
		pt.durations[pt.currentPhase] = duration
		pt.logger.Debug("Phase completed", zap.String("phase", pt.currentPhase), zap.Float64("duration_seconds", duration.Seconds()), zap.String("parent_operation", pt.name))
	}

	pt.currentPhase = ""
}

// Duration returns how long a finished phase took.
func (pt *PhaseTracker) Duration(phaseName string) (time.Duration, bool) {
	d, ok := pt.durations[phaseName]
	return d, ok
}

// Complete finishes the entire operation
func (pt *PhaseTracker) Complete(totalItems int) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	pt.logger.Debug("Operation completed",
		zap.String("operation", pt.name),
		zap.Int("items", totalItems),
		zap.Float64("duration_seconds", time.Since(pt.startTime).Seconds()),
		zap.String("memory_usage", GetMemoryUsage()))
}
