package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dubhe-dev/dubhe/pkg/analysis/threat"
)

type counters struct {
	detected  metric.Int64Counter
	mitigated metric.Int64Counter
	potential metric.Int64Counter
}

func newCounters(meter metric.Meter) (*counters, error) {
	c := &counters{}
	var err error

	c.detected, err = meter.Int64Counter(
		"dubhe.threats.detected",
		metric.WithDescription("Threat signatures found in analysed diagrams"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create detected counter: %w", err)
	}

	c.mitigated, err = meter.Int64Counter(
		"dubhe.threats.mitigated",
		metric.WithDescription("Detected threats with a confirmed mitigation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mitigated counter: %w", err)
	}

	c.potential, err = meter.Int64Counter(
		"dubhe.threats.potential",
		metric.WithDescription("Detected threats with a potential mitigation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create potential counter: %w", err)
	}
	return c, nil
}

func (c *counters) record(ctx context.Context, out *threat.Outcome) {
	opts := metric.WithAttributes(attribute.String("dubhe.classification", out.Classification.String()))
	total := len(out.Unmitigated) + len(out.Potential) + len(out.Confirmed)
	c.detected.Add(ctx, int64(total), opts)
	c.mitigated.Add(ctx, int64(len(out.Confirmed)), opts)
	c.potential.Add(ctx, int64(len(out.Potential)), opts)
}
