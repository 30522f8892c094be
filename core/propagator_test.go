package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPropagator(t *testing.T) *Propagator {
	t.Helper()
	return NewPropagator(twoBodyComposition(t), NewDormandPrince54())
}

func TestTrajectorySamplesAtCadence(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	target := forceEpoch.Add(5 * time.Minute)

	result, err := prop.Propagate(context.Background(), initial, target, time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(result.States) != 6 {
		t.Fatalf("got %d states, want 6", len(result.States))
	}
	for i, st := range result.States {
		want := forceEpoch.Add(time.Duration(i) * time.Minute)
		if !st.Epoch.Equal(want) {
			t.Fatalf("state %d epoch = %v, want %v", i, st.Epoch, want)
		}
	}
	if result.Truncated {
		t.Fatalf("full run reported truncated")
	}
	if result.Steps == 0 {
		t.Fatalf("expected a positive step count")
	}
}

func TestTrajectoryRaggedFinalSample(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	// Target not a multiple of the cadence; the last sample clips to it.
	target := forceEpoch.Add(150 * time.Second)

	result, err := prop.Propagate(context.Background(), initial, target, time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	last := result.States[len(result.States)-1]
	if !last.Epoch.Equal(target) {
		t.Fatalf("final epoch = %v, want %v", last.Epoch, target)
	}
}

func TestTrajectorySubMillisecondCadence(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	target := forceEpoch.Add(5 * time.Millisecond)
	cadence := 500 * time.Microsecond

	// Every inter-sample interval is below the adaptive integrator's shrink
	// floor; each must be covered by one exact clipped step instead of
	// overshooting and oscillating around the sample epoch.
	result, err := prop.Propagate(context.Background(), initial, target, cadence, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(result.States) != 11 {
		t.Fatalf("got %d states, want 11", len(result.States))
	}
	for i, st := range result.States {
		want := forceEpoch.Add(time.Duration(i) * cadence)
		if !st.Epoch.Equal(want) {
			t.Fatalf("state %d epoch = %v, want %v", i, st.Epoch, want)
		}
	}
	if result.Truncated {
		t.Fatalf("full run reported truncated")
	}
}

func TestTrajectoryRestartContinues(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	target := forceEpoch.Add(10 * time.Minute)

	full, err := prop.Propagate(context.Background(), initial, target, time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("full run: %v", err)
	}

	// Restart from the halfway sample; the tail must line up with the
	// original run.
	mid := full.States[5]
	tail, err := prop.Propagate(context.Background(), mid, target, time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("restarted run: %v", err)
	}

	wantTail := full.States[5:]
	if len(tail.States) != len(wantTail) {
		t.Fatalf("restarted run emitted %d states, want %d", len(tail.States), len(wantTail))
	}
	for i := range wantTail {
		if !tail.States[i].Epoch.Equal(wantTail[i].Epoch) {
			t.Fatalf("restart sample %d epoch = %v, want %v", i, tail.States[i].Epoch, wantTail[i].Epoch)
		}
		if sep := tail.States[i].Position.DistanceTo(wantTail[i].Position); sep > 0.1 {
			t.Fatalf("restart sample %d drifted %v m from the original run", i, sep)
		}
	}
}

func TestPropagateBackwardRoundTrip(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	target := forceEpoch.Add(time.Hour)

	forward, err := prop.Propagate(context.Background(), initial, target, 10*time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("forward run: %v", err)
	}
	end := forward.States[len(forward.States)-1]

	back, err := prop.Propagate(context.Background(), end, forceEpoch, 10*time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("backward run: %v", err)
	}
	recovered := back.States[len(back.States)-1]
	if !recovered.Epoch.Equal(forceEpoch) {
		t.Fatalf("backward run ended at %v, want %v", recovered.Epoch, forceEpoch)
	}
	if sep := recovered.Position.DistanceTo(initial.Position); sep > 0.5 {
		t.Fatalf("round trip position error = %v m, want < 0.5", sep)
	}
}

func TestPropagateStepBudgetTruncates(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	target := forceEpoch.Add(24 * time.Hour)

	result, err := prop.Propagate(context.Background(), initial, target, time.Minute, PropagateOptions{StepBudget: 5})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if !result.Truncated {
		t.Fatalf("budget-limited run not marked truncated")
	}
	if len(result.States) == 0 {
		t.Fatalf("truncated run should keep its partial states")
	}
	if last := result.States[len(result.States)-1]; last.Epoch.Equal(target) {
		t.Fatalf("truncated run should not reach the target epoch")
	}
}

func TestPropagateCancelledContextTruncates(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := prop.Propagate(ctx, initial, forceEpoch.Add(time.Hour), time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if !result.Truncated {
		t.Fatalf("cancelled run not marked truncated")
	}
	if len(result.States) != 1 {
		t.Fatalf("cancelled run kept %d states, want just the initial sample", len(result.States))
	}
}

func TestPropagateDivergenceCarriesPartial(t *testing.T) {
	comp, err := NewComposition(nanForce{})
	if err != nil {
		t.Fatalf("NewComposition: %v", err)
	}
	prop := NewPropagator(comp, NewDormandPrince54())
	initial := circularState(7000e3, forceEpoch)

	_, err = prop.Propagate(context.Background(), initial, forceEpoch.Add(time.Hour), time.Minute, PropagateOptions{})
	if !errors.Is(err, ErrPropagationDivergence) {
		t.Fatalf("error = %v, want ErrPropagationDivergence", err)
	}

	var div *PropagationDivergence
	if !errors.As(err, &div) {
		t.Fatalf("error %T does not expose the divergence detail", err)
	}
	if len(div.Partial) != 1 {
		t.Fatalf("divergence carried %d partial states, want 1 (the initial sample)", len(div.Partial))
	}
	if !errors.Is(div.Cause, ErrIntegrationDivergence) {
		t.Fatalf("divergence cause = %v, want ErrIntegrationDivergence", div.Cause)
	}
}

func TestNewTrajectoryValidation(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)

	if _, err := prop.NewTrajectory(initial, forceEpoch.Add(time.Hour), 0); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("zero cadence error = %v, want ErrConfiguration", err)
	}
	if _, err := prop.NewTrajectory(initial, forceEpoch, time.Minute); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("zero-span error = %v, want ErrConfiguration", err)
	}
}
