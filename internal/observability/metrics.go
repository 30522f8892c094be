package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for the propagation and
// screening pipeline and provides a ready-to-serve /metrics handler.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	PlansCompleted   *prometheus.CounterVec
	PropagationSteps prometheus.Counter
	StatesEmitted    prometheus.Counter

	FilterUpdates     *prometheus.CounterVec
	FilterDivergences prometheus.Counter

	ConjunctionsScreened *prometheus.CounterVec
	ConjunctionsFlagged  *prometheus.CounterVec

	CatalogObjects prometheus.Gauge
}

// NewEngineCollector registers engine Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	plans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propagation_plans_total",
		Help: "Total number of completed propagation plans, labeled by outcome.",
	}, []string{"outcome"})
	plans, err := registerCounterVec(reg, plans, "propagation_plans_total")
	if err != nil {
		return nil, err
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_steps_total",
		Help: "Total number of accepted integrator steps.",
	}), "propagation_steps_total")
	if err != nil {
		return nil, err
	}
	states, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_states_total",
		Help: "Total number of trajectory states emitted.",
	}), "propagation_states_total")
	if err != nil {
		return nil, err
	}

	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filter_updates_total",
		Help: "Total number of filter measurement updates, labeled by observation kind.",
	}, []string{"kind"})
	updates, err = registerCounterVec(reg, updates, "filter_updates_total")
	if err != nil {
		return nil, err
	}
	divergences, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filter_divergences_total",
		Help: "Total number of filter runs aborted on covariance health checks.",
	}), "filter_divergences_total")
	if err != nil {
		return nil, err
	}

	screened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conjunctions_screened_total",
		Help: "Total number of conjunction screenings, labeled by risk profile.",
	}, []string{"profile"})
	screened, err = registerCounterVec(reg, screened, "conjunctions_screened_total")
	if err != nil {
		return nil, err
	}
	flagged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conjunctions_flagged_total",
		Help: "Total number of conjunction screenings that crossed a profile's alert threshold.",
	}, []string{"profile"})
	flagged, err = registerCounterVec(reg, flagged, "conjunctions_flagged_total")
	if err != nil {
		return nil, err
	}

	objects, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_objects",
		Help: "Current number of tracked objects in the catalog.",
	}), "catalog_objects")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:             gatherer,
		PlansCompleted:       plans,
		PropagationSteps:     steps,
		StatesEmitted:        states,
		FilterUpdates:        updates,
		FilterDivergences:    divergences,
		ConjunctionsScreened: screened,
		ConjunctionsFlagged:  flagged,
		CatalogObjects:       objects,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordPlan records one finished propagation plan.
func (c *EngineCollector) RecordPlan(outcome string, steps, states int) {
	if c == nil {
		return
	}
	if c.PlansCompleted != nil {
		c.PlansCompleted.WithLabelValues(outcome).Inc()
	}
	if c.PropagationSteps != nil {
		c.PropagationSteps.Add(float64(steps))
	}
	if c.StatesEmitted != nil {
		c.StatesEmitted.Add(float64(states))
	}
}

// RecordFilterUpdate records one measurement update of the given kind.
func (c *EngineCollector) RecordFilterUpdate(kind string) {
	if c == nil || c.FilterUpdates == nil {
		return
	}
	c.FilterUpdates.WithLabelValues(kind).Inc()
}

// RecordFilterDivergence records one aborted filter run.
func (c *EngineCollector) RecordFilterDivergence() {
	if c == nil || c.FilterDivergences == nil {
		return
	}
	c.FilterDivergences.Inc()
}

// RecordScreening records one conjunction screening under a profile.
func (c *EngineCollector) RecordScreening(profile string, flagged bool) {
	if c == nil {
		return
	}
	if c.ConjunctionsScreened != nil {
		c.ConjunctionsScreened.WithLabelValues(profile).Inc()
	}
	if flagged && c.ConjunctionsFlagged != nil {
		c.ConjunctionsFlagged.WithLabelValues(profile).Inc()
	}
}

// SetCatalogObjects drives the catalog gauge from the store's mutators.
func (c *EngineCollector) SetCatalogObjects(n int) {
	if c == nil || c.CatalogObjects == nil {
		return
	}
	c.CatalogObjects.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
