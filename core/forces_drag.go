package core

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// atmosphereRow is one bracket of the piecewise-exponential density model:
// base altitude (km), base density (kg/m^3), scale height (km).
// Values follow Vallado Table 8-4 / the CIRA reference atmosphere.
var atmosphereTable = [][3]float64{
	{100, 5.297e-07, 5.877},
	{150, 2.070e-09, 22.523},
	{200, 2.541e-10, 53.298},
	{250, 6.967e-11, 68.019},
	{300, 2.508e-11, 76.680},
	{350, 1.172e-11, 84.852},
	{400, 6.097e-12, 89.412},
	{450, 3.510e-12, 97.498},
	{500, 2.150e-12, 112.458},
	{600, 8.620e-13, 133.060},
	{700, 3.614e-13, 150.580},
	{800, 1.454e-13, 164.441},
	{900, 5.811e-14, 175.579},
	{1000, 2.302e-14, 188.667},
	{1100, 9.661e-15, 200.000},
	{1200, 4.297e-15, 210.000},
	{1300, 2.036e-15, 218.000},
	{1400, 1.024e-15, 225.000},
	{1500, 5.448e-16, 231.000},
	{1600, 3.059e-16, 236.000},
	{1700, 1.806e-16, 240.000},
	{1800, 1.115e-16, 243.000},
	{1900, 7.170e-17, 245.000},
	{2000, 4.789e-17, 247.000},
}

// AtmosphericDensity returns the density (kg/m^3) at the given altitude
// using the piecewise-exponential model. Outside the tabulated 100-2000 km
// range the nearest bracket's scale height extrapolates, so a decaying or
// escaping trajectory keeps a finite, monotone density instead of failing
// mid-integration.
func AtmosphericDensity(altitudeKm float64) float64 {
	i := sort.Search(len(atmosphereTable), func(i int) bool {
		return atmosphereTable[i][0] > altitudeKm
	})
	if i > 0 {
		i--
	}
	base := atmosphereTable[i]
	return base[1] * math.Exp(-(altitudeKm-base[0])/base[2])
}

// Drag models atmospheric drag for one spacecraft. All three parameters are
// required; there is no default spacecraft.
type Drag struct {
	Cd     float64 // drag coefficient, typically 2.0-2.5
	AreaM2 float64 // cross-sectional area
	MassKg float64
}

func (d Drag) Name() string { return "drag" }

func (d Drag) validate() error {
	if d.Cd <= 0 {
		return fmt.Errorf("%w: drag: cd must be > 0, got %v", ErrConfiguration, d.Cd)
	}
	if d.AreaM2 <= 0 {
		return fmt.Errorf("%w: drag: area must be > 0, got %v", ErrConfiguration, d.AreaM2)
	}
	if d.MassKg <= 0 {
		return fmt.Errorf("%w: drag: mass must be > 0, got %v", ErrConfiguration, d.MassKg)
	}
	return nil
}

// BallisticCoefficient returns Cd*A/m (m^2/kg).
func (d Drag) BallisticCoefficient() float64 {
	return d.Cd * d.AreaM2 / d.MassKg
}

// Acceleration computes -(1/2) rho |v_rel| v_rel Cd A/m with v_rel taken
// relative to the co-rotating atmosphere.
func (d Drag) Acceleration(_ time.Time, pos, vel model.Vec3) model.Vec3 {
	altKm := (pos.Norm() - EarthRadiusM) / 1000.0
	rho := AtmosphericDensity(altKm)

	// Atmosphere co-rotates with Earth: v_atm = omega x r.
	omega := model.Vec3{Z: EarthRotationRate}
	vRel := vel.Sub(omega.Cross(pos))
	return vRel.Scale(-0.5 * rho * vRel.Norm() * d.BallisticCoefficient())
}

// SemiMajorAxisDecayRate returns da/dt (m/s, negative) for a circular-ish
// orbit of semi-major axis a under this drag configuration:
// da/dt = -rho(h) * v * Bc * a with v = sqrt(mu/a).
func (d Drag) SemiMajorAxisDecayRate(a float64) float64 {
	hKm := (a - EarthRadiusM) / 1000.0
	v := math.Sqrt(MuEarth / a)
	return -AtmosphericDensity(hKm) * v * d.BallisticCoefficient() * a
}
