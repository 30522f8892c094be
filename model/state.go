package model

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Frame tags the reference frame of a state's position and velocity.
type Frame string

const (
	// FrameECI is the Earth-centered inertial frame used by the engine.
	FrameECI Frame = "ECI"
)

// OrbitalState is an immutable snapshot of an object's translational state:
// epoch, ECI position and velocity, and an optional 6x6 covariance. Every
// propagation or filter step produces a new state; nothing mutates one in
// place. The covariance, when present, is defensively copied both on the
// way in and on the way out.
type OrbitalState struct {
	Epoch    time.Time
	Position Vec3 // m
	Velocity Vec3 // m/s
	Frame    Frame

	cov *mat.SymDense // 6x6, position then velocity; nil when unknown
}

// NewOrbitalState constructs a covariance-free state in the ECI frame.
func NewOrbitalState(epoch time.Time, pos, vel Vec3) OrbitalState {
	return OrbitalState{
		Epoch:    epoch.UTC(),
		Position: pos,
		Velocity: vel,
		Frame:    FrameECI,
	}
}

// WithCovariance returns a copy of the state carrying the given 6x6
// covariance. The matrix is copied; the caller keeps ownership of cov.
func (s OrbitalState) WithCovariance(cov *mat.SymDense) OrbitalState {
	if cov == nil {
		s.cov = nil
		return s
	}
	c := mat.NewSymDense(6, nil)
	c.CopySym(cov)
	s.cov = c
	return s
}

// HasCovariance reports whether the state carries a covariance.
func (s OrbitalState) HasCovariance() bool { return s.cov != nil }

// Covariance returns a copy of the state covariance, or nil when the state
// does not carry one.
func (s OrbitalState) Covariance() *mat.SymDense {
	if s.cov == nil {
		return nil
	}
	c := mat.NewSymDense(6, nil)
	c.CopySym(s.cov)
	return c
}
