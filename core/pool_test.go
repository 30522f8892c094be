package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func leoPlans(n int) []PropagationPlan {
	plans := make([]PropagationPlan, 0, n)
	for i := 0; i < n; i++ {
		r := 6900e3 + float64(i)*25e3
		plans = append(plans, PropagationPlan{
			ID:      fmt.Sprintf("sat-%02d", i),
			Initial: circularState(r, forceEpoch),
			Target:  forceEpoch.Add(30 * time.Minute),
			Cadence: time.Minute,
		})
	}
	return plans
}

func twoBodyPoolConfig(workers int) PoolConfig {
	return PoolConfig{
		Workers: workers,
		NewComposition: func() (*Composition, error) {
			return NewComposition(TwoBody{})
		},
		NewIntegrator: func() Integrator { return RK4{} },
	}
}

func TestRunPlansParallelMatchesSequential(t *testing.T) {
	plans := leoPlans(8)

	sequential, err := RunPlans(context.Background(), plans, twoBodyPoolConfig(1))
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}
	parallel, err := RunPlans(context.Background(), plans, twoBodyPoolConfig(4))
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}

	if len(sequential) != len(plans) || len(parallel) != len(plans) {
		t.Fatalf("outcome counts %d/%d, want %d", len(sequential), len(parallel), len(plans))
	}
	for i := range plans {
		s, p := sequential[i], parallel[i]
		if s.ID != plans[i].ID || p.ID != plans[i].ID {
			t.Fatalf("outcome %d not in plan order: %s / %s", i, s.ID, p.ID)
		}
		if len(s.Result.States) != len(p.Result.States) {
			t.Fatalf("plan %s: %d vs %d states", s.ID, len(s.Result.States), len(p.Result.States))
		}
		for j := range s.Result.States {
			ss, ps := s.Result.States[j], p.Result.States[j]
			if ss.Position != ps.Position || ss.Velocity != ps.Velocity || !ss.Epoch.Equal(ps.Epoch) {
				t.Fatalf("plan %s sample %d differs between worker counts", s.ID, j)
			}
		}
	}
}

func TestRunPlansIsDeterministicAcrossRuns(t *testing.T) {
	plans := leoPlans(4)

	first, err := RunPlans(context.Background(), plans, twoBodyPoolConfig(3))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunPlans(context.Background(), plans, twoBodyPoolConfig(3))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first {
		for j := range first[i].Result.States {
			if first[i].Result.States[j].Position != second[i].Result.States[j].Position {
				t.Fatalf("plan %s sample %d not reproducible", first[i].ID, j)
			}
		}
	}
}

func TestRunPlansRequiresFactories(t *testing.T) {
	_, err := RunPlans(context.Background(), leoPlans(1), PoolConfig{Workers: 1})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestRunPlansSurfacesFactoryError(t *testing.T) {
	boom := errors.New("no force models")
	cfg := PoolConfig{
		Workers:        2,
		NewComposition: func() (*Composition, error) { return nil, boom },
		NewIntegrator:  func() Integrator { return RK4{} },
	}
	if _, err := RunPlans(context.Background(), leoPlans(4), cfg); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the factory failure", err)
	}
}

func TestRunPlansPerPlanFailuresStayPerPlan(t *testing.T) {
	plans := leoPlans(3)
	// A zero cadence rejects at trajectory construction.
	plans[1].Cadence = 0

	outcomes, err := RunPlans(context.Background(), plans, twoBodyPoolConfig(2))
	if err != nil {
		t.Fatalf("RunPlans: %v", err)
	}
	if outcomes[1].Err == nil {
		t.Fatalf("broken plan reported no error")
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("healthy plans affected: %v / %v", outcomes[0].Err, outcomes[2].Err)
	}
	if len(outcomes[0].Result.States) == 0 || len(outcomes[2].Result.States) == 0 {
		t.Fatalf("healthy plans produced no samples")
	}
}

func TestRunPlansCancelledContextTruncates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := RunPlans(ctx, leoPlans(3), twoBodyPoolConfig(2))
	if err != nil {
		t.Fatalf("RunPlans: %v", err)
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("plan %s: %v", out.ID, out.Err)
		}
		if !out.Result.Truncated {
			t.Fatalf("plan %s not truncated under a cancelled context", out.ID)
		}
	}
}

func TestRunPlansStepBudgetAppliesPerPlan(t *testing.T) {
	cfg := twoBodyPoolConfig(2)
	cfg.Options = PropagateOptions{StepBudget: 3}

	outcomes, err := RunPlans(context.Background(), leoPlans(2), cfg)
	if err != nil {
		t.Fatalf("RunPlans: %v", err)
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("plan %s: %v", out.ID, out.Err)
		}
		if !out.Result.Truncated {
			t.Fatalf("plan %s not truncated by the step budget", out.ID)
		}
		if out.Result.Steps > 3 {
			t.Fatalf("plan %s took %d steps over a budget of 3", out.ID, out.Result.Steps)
		}
	}
}
