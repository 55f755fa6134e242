package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the runner's metric instruments.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsDegraded  metric.Int64Counter
	Handoffs      metric.Int64Counter
	TurnsPerRun   metric.Int64Histogram
	RunDuration   metric.Float64Histogram
}

// NewMetrics creates all instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.Meter(instrumentName))
}

// NewMetricsFrom creates all instruments on meter.
func NewMetricsFrom(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.RunsStarted, err = meter.Int64Counter("mediaagency.runs.started",
		metric.WithDescription("Number of runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("mediaagency.runs.completed",
		metric.WithDescription("Number of runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsDegraded, err = meter.Int64Counter("mediaagency.runs.degraded",
		metric.WithDescription("Number of runs that ended with a degraded result"))
	if err != nil {
		return nil, err
	}

	m.Handoffs, err = meter.Int64Counter("mediaagency.handoffs",
		metric.WithDescription("Number of agent handoffs"))
	if err != nil {
		return nil, err
	}

	m.TurnsPerRun, err = meter.Int64Histogram("mediaagency.run.turns",
		metric.WithDescription("Agent turns per run"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("mediaagency.run.duration_seconds",
		metric.WithDescription("Run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
