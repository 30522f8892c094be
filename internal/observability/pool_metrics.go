package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exposes worker-pool Prometheus metrics.
type PoolCollector struct {
	gatherer prometheus.Gatherer

	PlanDuration  prometheus.Histogram
	PlansInFlight prometheus.Gauge
	Workers       prometheus.Gauge
}

// NewPoolCollector registers pool metrics against the provided registerer.
func NewPoolCollector(reg prometheus.Registerer) (*PoolCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pool_plan_duration_seconds",
		Help:    "Wall-clock duration of individual propagation plans run by the pool.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	duration, err := registerHistogram(reg, duration, "pool_plan_duration_seconds")
	if err != nil {
		return nil, err
	}

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pool_plans_in_flight",
		Help: "Number of propagation plans currently being worked.",
	})
	inFlight, err = registerGauge(reg, inFlight, "pool_plans_in_flight")
	if err != nil {
		return nil, err
	}

	workers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pool_workers",
		Help: "Configured worker count for the propagation pool.",
	})
	workers, err = registerGauge(reg, workers, "pool_workers")
	if err != nil {
		return nil, err
	}

	return &PoolCollector{
		gatherer:      gatherer,
		PlanDuration:  duration,
		PlansInFlight: inFlight,
		Workers:       workers,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PoolCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObservePlanDuration records how long one plan took end to end.
func (c *PoolCollector) ObservePlanDuration(d time.Duration) {
	if c == nil || c.PlanDuration == nil {
		return
	}
	c.PlanDuration.Observe(d.Seconds())
}

// SetPlansInFlight updates the in-flight gauge.
func (c *PoolCollector) SetPlansInFlight(count int) {
	if c == nil || c.PlansInFlight == nil {
		return
	}
	c.PlansInFlight.Set(float64(count))
}

// SetWorkers records the configured worker count.
func (c *PoolCollector) SetWorkers(count int) {
	if c == nil || c.Workers == nil {
		return
	}
	c.Workers.Set(float64(count))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
