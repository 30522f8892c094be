package model

import (
	"errors"
	"fmt"
)

// ErrInvalidProfile is returned when a risk profile fails validation.
var ErrInvalidProfile = errors.New("invalid risk profile")

// RiskProfile parameterises how conservatively a conjunction is screened.
// CovarianceScale widens (>1) or narrows (<1) the combined uncertainty before
// the probability is evaluated; DistanceScale does the same for the miss
// distance. A conjunction is flagged under a profile when the nominal
// collision probability meets AlertThreshold and the miss distance is inside
// MissThresholdM.
type RiskProfile struct {
	Name            string
	Version         string
	CovarianceScale float64
	DistanceScale   float64
	MissThresholdM  float64
	AlertThreshold  float64
}

// Validate checks that the profile's parameters are usable.
func (p RiskProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProfile)
	}
	if p.CovarianceScale <= 0 {
		return fmt.Errorf("%w: %q: covariance scale must be > 0, got %v", ErrInvalidProfile, p.Name, p.CovarianceScale)
	}
	if p.DistanceScale < 0 {
		return fmt.Errorf("%w: %q: distance scale must be >= 0, got %v", ErrInvalidProfile, p.Name, p.DistanceScale)
	}
	if p.MissThresholdM <= 0 {
		return fmt.Errorf("%w: %q: miss threshold must be > 0, got %v", ErrInvalidProfile, p.Name, p.MissThresholdM)
	}
	if p.AlertThreshold <= 0 || p.AlertThreshold > 1 {
		return fmt.Errorf("%w: %q: alert threshold must be in (0, 1], got %v", ErrInvalidProfile, p.Name, p.AlertThreshold)
	}
	return nil
}

// DefaultRiskProfiles returns the built-in screening profile pack, most
// conservative first.
func DefaultRiskProfiles() []RiskProfile {
	return []RiskProfile{
		{
			Name:            "conservative",
			Version:         "v1",
			CovarianceScale: 1.5,
			DistanceScale:   1.0,
			MissThresholdM:  25000.0,
			AlertThreshold:  1e-5,
		},
		{
			Name:            "nominal",
			Version:         "v1",
			CovarianceScale: 1.0,
			DistanceScale:   1.0,
			MissThresholdM:  15000.0,
			AlertThreshold:  1e-5,
		},
		{
			Name:            "aggressive",
			Version:         "v1",
			CovarianceScale: 0.75,
			DistanceScale:   1.0,
			MissThresholdM:  8000.0,
			AlertThreshold:  1e-5,
		},
	}
}
