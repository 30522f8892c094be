package core

import (
	"context"
	"math"
	"testing"
	"time"
)

// TestTwoBodyOrbitInvariants propagates a circular LEO orbit for roughly
// one revolution and checks the conic invariants at every sample.
func TestTwoBodyOrbitInvariants(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)

	result, err := prop.Propagate(context.Background(), initial, forceEpoch.Add(90*time.Minute), time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	for i, st := range result.States {
		el := ElementsFromState(st)
		if math.Abs(el.SemiMajorAxisM-7000e3) > 10 {
			t.Fatalf("sample %d SMA = %v m, want 7000e3 +/- 10", i, el.SemiMajorAxisM)
		}
		if el.Eccentricity > 1e-5 {
			t.Fatalf("sample %d eccentricity = %v, want < 1e-5", i, el.Eccentricity)
		}
	}
}

// TestTwoBodyPeriodicity checks the orbit closes on itself after exactly
// one Keplerian period.
func TestTwoBodyPeriodicity(t *testing.T) {
	prop := testPropagator(t)
	r := 7000e3
	initial := circularState(r, forceEpoch)

	period := 2 * math.Pi / MeanMotion(r)
	target := forceEpoch.Add(time.Duration(period * float64(time.Second)))

	result, err := prop.Propagate(context.Background(), initial, target, time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	final := result.States[len(result.States)-1]

	if sep := final.Position.DistanceTo(initial.Position); sep > 10 {
		t.Fatalf("orbit failed to close: %v m separation after one period", sep)
	}
	if dv := final.Velocity.Sub(initial.Velocity).Norm(); dv > 0.01 {
		t.Fatalf("velocity mismatch after one period: %v m/s", dv)
	}
}

// TestTwoBodyAngularMomentumConserved checks the orbit plane holds fixed.
func TestTwoBodyAngularMomentumConserved(t *testing.T) {
	prop := testPropagator(t)
	initial := circularState(7000e3, forceEpoch)
	h0 := initial.Position.Cross(initial.Velocity)

	result, err := prop.Propagate(context.Background(), initial, forceEpoch.Add(3*time.Hour), 10*time.Minute, PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	for i, st := range result.States {
		h := st.Position.Cross(st.Velocity)
		if rel := h.Sub(h0).Norm() / h0.Norm(); rel > 1e-8 {
			t.Fatalf("sample %d angular momentum drifted %v relative", i, rel)
		}
	}
}
