package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// PropagationPlan is one independent propagation job: an identifier used as
// the deterministic merge key, the initial state, and the sampling request.
type PropagationPlan struct {
	ID      string
	Initial model.OrbitalState
	Target  time.Time
	Cadence time.Duration
}

// PlanOutcome pairs a plan with its result. Outcomes are returned in plan
// order regardless of which worker finished first, so a parallel run is
// observationally identical to a sequential one.
type PlanOutcome struct {
	ID     string
	Result TrajectoryResult
	Err    error
}

// PoolConfig configures a propagation worker pool. Each worker builds its
// own composition and integrator through the factories, so no force model
// or integrator instance is ever shared between goroutines.
type PoolConfig struct {
	Workers        int
	NewComposition func() (*Composition, error)
	NewIntegrator  func() Integrator
	Tol            Tolerance
	InitialStep    float64
	Options        PropagateOptions
}

// RunPlans propagates every plan across the pool and merges outcomes by
// plan index. Cancellation is cooperative: a cancelled context stops
// workers between steps and the affected outcomes come back truncated.
func RunPlans(ctx context.Context, plans []PropagationPlan, cfg PoolConfig) ([]PlanOutcome, error) {
	if cfg.NewComposition == nil || cfg.NewIntegrator == nil {
		return nil, fmt.Errorf("%w: pool needs composition and integrator factories", ErrConfiguration)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(plans) {
		workers = len(plans)
	}

	outcomes := make([]PlanOutcome, len(plans))
	indices := make(chan int)

	var wg sync.WaitGroup
	workerErrs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			forces, err := cfg.NewComposition()
			if err != nil {
				workerErrs[worker] = err
				for range indices {
					// drain so the feeder does not block
				}
				return
			}
			prop := &Propagator{
				Forces:      forces,
				Integrator:  cfg.NewIntegrator(),
				Tol:         cfg.Tol,
				InitialStep: cfg.InitialStep,
			}
			if prop.Tol.Abs <= 0 && prop.Tol.Rel <= 0 {
				prop.Tol = DefaultTolerance()
			}

			for i := range indices {
				plan := plans[i]
				result, err := prop.Propagate(ctx, plan.Initial, plan.Target, plan.Cadence, cfg.Options)
				outcomes[i] = PlanOutcome{ID: plan.ID, Result: result, Err: err}
			}
		}(w)
	}

	for i := range plans {
		indices <- i
	}
	close(indices)
	wg.Wait()

	for _, err := range workerErrs {
		if err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}
