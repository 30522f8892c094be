package core

import (
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// TwoBody is the central Keplerian attraction, the baseline every
// composition carries.
type TwoBody struct{}

func (TwoBody) Name() string { return "two_body" }

func (TwoBody) Acceleration(_ time.Time, pos, _ model.Vec3) model.Vec3 {
	r := pos.Norm()
	return pos.Scale(-MuEarth / (r * r * r))
}

// J2 is the first zonal harmonic: Earth's equatorial bulge. It drives the
// secular RAAN regression that makes Sun-synchronous orbits possible.
type J2 struct{}

func (J2) Name() string { return "j2" }

func (J2) Acceleration(_ time.Time, pos, _ model.Vec3) model.Vec3 {
	r := pos.Norm()
	r2 := r * r
	z2 := pos.Z * pos.Z

	k := -1.5 * J2Earth * MuEarth * EarthRadiusM * EarthRadiusM / (r2 * r2 * r)
	return model.Vec3{
		X: k * pos.X * (1 - 5*z2/r2),
		Y: k * pos.Y * (1 - 5*z2/r2),
		Z: k * pos.Z * (3 - 5*z2/r2),
	}
}

// J3 is the second zonal harmonic, the north-south asymmetry term. Two
// orders of magnitude below J2 but measurable over long arcs.
type J3 struct{}

func (J3) Name() string { return "j3" }

func (J3) Acceleration(_ time.Time, pos, _ model.Vec3) model.Vec3 {
	r := pos.Norm()
	r2 := r * r
	z := pos.Z
	z2 := z * z

	re3 := EarthRadiusM * EarthRadiusM * EarthRadiusM
	k := -2.5 * J3Earth * MuEarth * re3 / (r2 * r2 * r2 * r)
	return model.Vec3{
		X: k * pos.X * (3*z - 7*z2*z/r2),
		Y: k * pos.Y * (3*z - 7*z2*z/r2),
		Z: k * (6*z2 - 7*z2*z2/r2 - 0.6*r2),
	}
}
