package model

import "gonum.org/v1/gonum/mat"

// ConjunctionGeometry captures the closest-approach geometry between two
// objects: the miss vector, their relative velocity, the combined position
// covariance of both objects (3x3, ECI), and the combined hard-body radius.
type ConjunctionGeometry struct {
	// MissVector points from the primary to the secondary at closest
	// approach. Its norm is the miss distance.
	MissVector Vec3
	// RelativeVelocity is secondary minus primary velocity.
	RelativeVelocity Vec3
	// HardBodyRadiusM is the combined physical radius defining the
	// collision disk.
	HardBodyRadiusM float64

	combined *mat.SymDense
}

// NewConjunctionGeometry builds a geometry, copying the combined covariance.
func NewConjunctionGeometry(miss, relVel Vec3, combined *mat.SymDense, hardBodyM float64) ConjunctionGeometry {
	g := ConjunctionGeometry{
		MissVector:       miss,
		RelativeVelocity: relVel,
		HardBodyRadiusM:  hardBodyM,
	}
	if combined != nil {
		c := mat.NewSymDense(3, nil)
		c.CopySym(combined)
		g.combined = c
	}
	return g
}

// MissDistanceM returns the scalar miss distance.
func (g ConjunctionGeometry) MissDistanceM() float64 { return g.MissVector.Norm() }

// CombinedCovariance returns a copy of the combined 3x3 position covariance,
// or nil when none was supplied.
func (g ConjunctionGeometry) CombinedCovariance() *mat.SymDense {
	if g.combined == nil {
		return nil
	}
	c := mat.NewSymDense(3, nil)
	c.CopySym(g.combined)
	return c
}

// ConjunctionResult is the outcome of screening one geometry under one risk
// profile: a probability band plus the flag decision.
type ConjunctionResult struct {
	Profile        string
	ProfileVersion string
	MissDistanceM  float64
	PcLower        float64
	PcNominal      float64
	PcUpper        float64
	Flagged        bool
}
