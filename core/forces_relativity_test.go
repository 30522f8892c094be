package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/orbital-engine/model"
)

// circularEquatorial returns a circular equatorial position/velocity pair
// at the given radius.
func circularEquatorial(r float64) (model.Vec3, model.Vec3) {
	v := math.Sqrt(MuEarth / r)
	return model.Vec3{X: r}, model.Vec3{Y: v}
}

func TestSchwarzschildRadialOnCircularOrbit(t *testing.T) {
	pos, vel := circularEquatorial(7000e3)
	a := Schwarzschild{}.Acceleration(forceEpoch, pos, vel)

	// With r.v = 0 and v^2 = mu/r the term reduces to a purely radial,
	// outward push of 3 mu^2 / (c^2 r^3).
	rHat := pos.Unit()
	cosAngle := a.Dot(rHat) / a.Norm()
	if cosAngle < 0.9999999 {
		t.Fatalf("not radial on a circular orbit: cos angle = %v", cosAngle)
	}

	r := pos.Norm()
	want := 3 * MuEarth * MuEarth / (SpeedOfLight * SpeedOfLight * r * r * r)
	if got := a.Norm(); math.Abs(got-want) > 1e-9*want {
		t.Fatalf("|a| = %v, want %v", got, want)
	}
}

func TestSchwarzschildVanishesAsLightSpeedGrows(t *testing.T) {
	pos, vel := circularEquatorial(7000e3)

	physical := Schwarzschild{}.Acceleration(forceEpoch, pos, vel).Norm()
	slowed := Schwarzschild{CLight: 100 * SpeedOfLight}.Acceleration(forceEpoch, pos, vel).Norm()

	// The correction scales with 1/c^2.
	if ratio := physical / slowed; math.Abs(ratio-1e4) > 1 {
		t.Fatalf("c scaling ratio = %v, want 1e4", ratio)
	}
}

func TestLenseThirringEquatorialDirection(t *testing.T) {
	pos, vel := circularEquatorial(7000e3)
	a := LenseThirring{}.Acceleration(forceEpoch, pos, vel)

	// On a prograde equatorial orbit r.J = 0, leaving only v x J, which
	// points radially outward.
	rHat := pos.Unit()
	cosAngle := a.Dot(rHat) / a.Norm()
	if cosAngle < 0.9999999 {
		t.Fatalf("frame dragging should push radially here: cos angle = %v", cosAngle)
	}

	r := pos.Norm()
	want := 2 * MuEarth / (SpeedOfLight * SpeedOfLight * r * r * r) * vel.Norm() * EarthAngularMomentum
	if got := a.Norm(); math.Abs(got-want) > 1e-9*want {
		t.Fatalf("|a| = %v, want %v", got, want)
	}
}

func TestRelativisticHierarchy(t *testing.T) {
	pos, vel := circularEquatorial(7000e3)

	schw := Schwarzschild{}.Acceleration(forceEpoch, pos, vel).Norm()
	lt := LenseThirring{}.Acceleration(forceEpoch, pos, vel).Norm()
	twoBody := TwoBody{}.Acceleration(forceEpoch, pos, vel).Norm()

	if !(twoBody > schw && schw > lt) {
		t.Fatalf("expected two-body > Schwarzschild > Lense-Thirring, got %v, %v, %v",
			twoBody, schw, lt)
	}
	// Both corrections are tiny fractions of central gravity.
	if schw > 1e-7*twoBody {
		t.Fatalf("Schwarzschild too large relative to two-body: %v vs %v", schw, twoBody)
	}
}
