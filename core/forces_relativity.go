package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// Schwarzschild is the dominant post-Newtonian correction to the central
// attraction, roughly 3e-9 m/s^2 at LEO. CLight is configurable so limit
// tests can drive the correction toward zero; zero means the physical value.
type Schwarzschild struct {
	CLight float64
}

func (s Schwarzschild) Name() string { return "schwarzschild" }

func (s Schwarzschild) validate() error {
	if s.CLight < 0 {
		return fmt.Errorf("%w: schwarzschild: speed of light must be >= 0, got %v", ErrConfiguration, s.CLight)
	}
	return nil
}

func (s Schwarzschild) c() float64 {
	if s.CLight > 0 {
		return s.CLight
	}
	return SpeedOfLight
}

// Acceleration is the IERS post-Newtonian point-mass term:
// a = mu/(c^2 r^3) * [ (4 mu/r - v^2) r_vec + 4 (r.v) v_vec ].
// Purely radial on circular orbits (r.v = 0), with an along-track component
// appearing as eccentricity grows.
func (s Schwarzschild) Acceleration(_ time.Time, pos, vel model.Vec3) model.Vec3 {
	c := s.c()
	r := pos.Norm()
	v2 := vel.Dot(vel)
	rv := pos.Dot(vel)

	k := MuEarth / (c * c * r * r * r)
	radial := pos.Scale(4*MuEarth/r - v2)
	alongTrack := vel.Scale(4 * rv)
	return radial.Add(alongTrack).Scale(k)
}

// LenseThirring is relativistic frame dragging from Earth's spin, about an
// order of magnitude below Schwarzschild at LEO.
type LenseThirring struct {
	CLight float64
}

func (l LenseThirring) Name() string { return "lense_thirring" }

func (l LenseThirring) validate() error {
	if l.CLight < 0 {
		return fmt.Errorf("%w: lense_thirring: speed of light must be >= 0, got %v", ErrConfiguration, l.CLight)
	}
	return nil
}

func (l LenseThirring) c() float64 {
	if l.CLight > 0 {
		return l.CLight
	}
	return SpeedOfLight
}

// Acceleration follows IERS 2010:
// a = 2 mu/(c^2 r^3) * [ (3/r^2)(r.J) (r x v) + (v x J) ]
// with J Earth's angular momentum per unit mass along the spin axis.
func (l LenseThirring) Acceleration(_ time.Time, pos, vel model.Vec3) model.Vec3 {
	c := l.c()
	r := pos.Norm()
	spin := model.Vec3{Z: EarthAngularMomentum}

	k := 2 * MuEarth / (c * c * r * r * r)
	term1 := pos.Cross(vel).Scale(3 / (r * r) * pos.Dot(spin))
	term2 := vel.Cross(spin)
	return term1.Add(term2).Scale(k)
}
