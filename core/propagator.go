package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// ErrPropagationDivergence is the sentinel for a propagation run whose
// integrator collapsed. The concrete *PropagationDivergence error carries
// the partial trajectory computed before the collapse.
var ErrPropagationDivergence = errors.New("propagation divergence")

// PropagationDivergence reports integrator collapse mid-run together with
// the states sampled so far.
type PropagationDivergence struct {
	Partial []model.OrbitalState
	Cause   error
}

func (e *PropagationDivergence) Error() string {
	return fmt.Sprintf("propagation divergence after %d samples: %v", len(e.Partial), e.Cause)
}

func (e *PropagationDivergence) Unwrap() error { return ErrPropagationDivergence }

// Propagator drives repeated integration steps across an epoch span. It has
// no hidden configuration: two propagators built from the same forces,
// integrator, and tolerance produce identical trajectories.
type Propagator struct {
	Forces     *Composition
	Integrator Integrator
	Tol        Tolerance
	// InitialStep seeds the first integration step in seconds; adaptive
	// integrators take it from there.
	InitialStep float64
}

// NewPropagator returns a propagator with default tolerance and step seed.
func NewPropagator(forces *Composition, integ Integrator) *Propagator {
	return &Propagator{
		Forces:      forces,
		Integrator:  integ,
		Tol:         DefaultTolerance(),
		InitialStep: 10,
	}
}

// Trajectory is a lazy, finite sequence of states sampled at a fixed
// cadence between an initial and a target epoch. It is restartable: build a
// new trajectory from any emitted state and the remaining span continues
// without recomputing history.
type Trajectory struct {
	prop    *Propagator
	current model.OrbitalState
	target  time.Time
	cadence time.Duration

	step    float64 // current signed integration step, seconds
	forward bool
	emitted bool // initial sample emitted
	done    bool
	steps   int
}

// NewTrajectory starts a trajectory from initial toward target, emitting
// samples every cadence. A target before the initial epoch propagates
// backward.
func (p *Propagator) NewTrajectory(initial model.OrbitalState, target time.Time, cadence time.Duration) (*Trajectory, error) {
	if cadence <= 0 {
		return nil, fmt.Errorf("%w: cadence must be > 0, got %v", ErrConfiguration, cadence)
	}
	if target.Equal(initial.Epoch) {
		return nil, fmt.Errorf("%w: target epoch equals initial epoch", ErrConfiguration)
	}
	step := p.InitialStep
	if step <= 0 {
		step = 10
	}
	forward := target.After(initial.Epoch)
	if !forward {
		step = -step
	}
	return &Trajectory{
		prop:    p,
		current: initial,
		target:  target,
		cadence: cadence,
		step:    step,
		forward: forward,
	}, nil
}

// Steps returns the number of integrator steps taken so far.
func (tr *Trajectory) Steps() int { return tr.steps }

// Next returns the next sampled state. The second return is false once the
// target epoch has been emitted. Integration failures surface as an error
// wrapping ErrIntegrationDivergence; the trajectory is then finished.
func (tr *Trajectory) Next() (model.OrbitalState, bool, error) {
	if tr.done {
		return model.OrbitalState{}, false, nil
	}
	if !tr.emitted {
		tr.emitted = true
		return tr.current, true, nil
	}

	sample := tr.current.Epoch.Add(tr.cadence)
	if !tr.forward {
		sample = tr.current.Epoch.Add(-tr.cadence)
	}
	if tr.beyondTarget(sample) {
		sample = tr.target
	}

	for !tr.current.Epoch.Equal(sample) {
		remaining := sample.Sub(tr.current.Epoch).Seconds()
		h := tr.step
		if math.Abs(h) > math.Abs(remaining) {
			h = remaining
		}
		res, err := tr.prop.Integrator.Step(tr.prop.Forces, tr.current, h, tr.prop.Tol)
		if err != nil {
			tr.done = true
			return model.OrbitalState{}, false, err
		}
		tr.current = res.State
		tr.steps++
		// Keep the integrator's suggested step unless this step was clipped
		// to hit the sample epoch exactly.
		if h == tr.step {
			tr.step = res.NextStep
		}
		// Guard against epoch rounding leaving us a hair short.
		if math.Abs(sample.Sub(tr.current.Epoch).Seconds()) < 1e-6 {
			tr.current = model.NewOrbitalState(sample, tr.current.Position, tr.current.Velocity)
		}
	}

	if tr.current.Epoch.Equal(tr.target) {
		tr.done = true
	}
	return tr.current, true, nil
}

func (tr *Trajectory) beyondTarget(t time.Time) bool {
	if tr.forward {
		return t.After(tr.target)
	}
	return t.Before(tr.target)
}

// PropagateOptions bounds an eager propagation run. A zero StepBudget means
// unbounded; the context's deadline applies cooperatively between steps.
type PropagateOptions struct {
	StepBudget int
}

// TrajectoryResult is the eager form of a trajectory: the sampled states in
// epoch order, whether the run was cut short by deadline or budget, and how
// many integrator steps it consumed. Truncation is an expected outcome, not
// an error.
type TrajectoryResult struct {
	States    []model.OrbitalState
	Truncated bool
	Steps     int
}

// Propagate collects trajectory samples from initial to target at the given
// cadence. On context expiry or step-budget exhaustion it finishes the
// in-flight sample and returns the partial result with Truncated set. On
// integrator collapse it returns the partial states inside a
// *PropagationDivergence error.
func (p *Propagator) Propagate(ctx context.Context, initial model.OrbitalState, target time.Time, cadence time.Duration, opts PropagateOptions) (TrajectoryResult, error) {
	tr, err := p.NewTrajectory(initial, target, cadence)
	if err != nil {
		return TrajectoryResult{}, err
	}

	var out TrajectoryResult
	for {
		st, ok, err := tr.Next()
		if err != nil {
			out.Steps = tr.Steps()
			return out, &PropagationDivergence{Partial: out.States, Cause: err}
		}
		if !ok {
			break
		}
		out.States = append(out.States, st)

		if ctx != nil && ctx.Err() != nil {
			out.Truncated = !tr.done
			break
		}
		if opts.StepBudget > 0 && tr.Steps() >= opts.StepBudget {
			out.Truncated = !tr.done
			break
		}
	}
	out.Steps = tr.Steps()
	return out, nil
}
