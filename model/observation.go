package model

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// ObservationKind enumerates the measurement types the filter understands.
type ObservationKind int

const (
	// ObservationPosition is a full ECI position fix (3 values, metres).
	ObservationPosition ObservationKind = iota
	// ObservationRange is a scalar slant range from a ground station (metres).
	ObservationRange
	// ObservationAngle is a right-ascension/declination pair as seen from a
	// ground station (2 values, radians).
	ObservationAngle
)

// String returns a short lowercase label for the kind.
func (k ObservationKind) String() string {
	switch k {
	case ObservationPosition:
		return "position"
	case ObservationRange:
		return "range"
	case ObservationAngle:
		return "angle"
	default:
		return "unknown"
	}
}

// Dim returns the measurement dimension for the kind, or 0 when unknown.
func (k ObservationKind) Dim() int {
	switch k {
	case ObservationPosition:
		return 3
	case ObservationRange:
		return 1
	case ObservationAngle:
		return 2
	default:
		return 0
	}
}

// Observation is an immutable timestamped measurement with its noise
// covariance. Range and angle observations reference a ground station
// position in the same ECI frame as the state being estimated.
type Observation struct {
	Kind    ObservationKind
	Epoch   time.Time
	Value   []float64
	Station Vec3 // used by range/angle kinds

	noise *mat.SymDense
}

// NewObservation constructs an observation, copying both the value slice and
// the noise covariance so callers can reuse their buffers.
func NewObservation(kind ObservationKind, epoch time.Time, value []float64, noise *mat.SymDense) Observation {
	v := make([]float64, len(value))
	copy(v, value)
	obs := Observation{
		Kind:  kind,
		Epoch: epoch.UTC(),
		Value: v,
	}
	if noise != nil {
		n := mat.NewSymDense(noise.SymmetricDim(), nil)
		n.CopySym(noise)
		obs.noise = n
	}
	return obs
}

// WithStation returns a copy of the observation annotated with the observing
// ground station's ECI position.
func (o Observation) WithStation(station Vec3) Observation {
	o.Station = station
	return o
}

// Noise returns a copy of the measurement noise covariance, or nil when the
// observation carries none.
func (o Observation) Noise() *mat.SymDense {
	if o.noise == nil {
		return nil
	}
	n := mat.NewSymDense(o.noise.SymmetricDim(), nil)
	n.CopySym(o.noise)
	return n
}
