package model

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func TestObservationKindDimAndString(t *testing.T) {
	cases := []struct {
		kind ObservationKind
		dim  int
		name string
	}{
		{ObservationPosition, 3, "position"},
		{ObservationRange, 1, "range"},
		{ObservationAngle, 2, "angle"},
		{ObservationKind(42), 0, "unknown"},
	}
	for _, c := range cases {
		if c.kind.Dim() != c.dim {
			t.Fatalf("%s: Dim = %d, want %d", c.name, c.kind.Dim(), c.dim)
		}
		if c.kind.String() != c.name {
			t.Fatalf("String = %q, want %q", c.kind.String(), c.name)
		}
	}
}

func TestNewObservationCopiesBuffers(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	value := []float64{7000e3, 10, -5}
	noise := mat.NewSymDense(3, nil)
	noise.SetSym(0, 0, 100)

	obs := NewObservation(ObservationPosition, epoch, value, noise)

	value[0] = -1
	noise.SetSym(0, 0, -1)
	if obs.Value[0] != 7000e3 {
		t.Fatalf("observation value aliased the caller's slice: %v", obs.Value[0])
	}
	if got := obs.Noise().At(0, 0); got != 100 {
		t.Fatalf("observation noise aliased the caller's matrix: %v", got)
	}

	out := obs.Noise()
	out.SetSym(0, 0, -1)
	if got := obs.Noise().At(0, 0); got != 100 {
		t.Fatalf("observation noise aliased the returned copy: %v", got)
	}
}

func TestNewObservationWithoutNoise(t *testing.T) {
	obs := NewObservation(ObservationRange, time.Now(), []float64{1200e3}, nil)
	if obs.Noise() != nil {
		t.Fatalf("expected nil noise")
	}
}

func TestWithStationLeavesOriginalAlone(t *testing.T) {
	obs := NewObservation(ObservationRange, time.Now(), []float64{1200e3}, nil)
	sited := obs.WithStation(Vec3{X: 6371e3})

	if sited.Station == (Vec3{}) {
		t.Fatalf("station not set")
	}
	if obs.Station != (Vec3{}) {
		t.Fatalf("WithStation mutated the original")
	}
}
