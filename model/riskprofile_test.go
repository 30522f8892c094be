package model

import (
	"errors"
	"testing"
)

func validProfile() RiskProfile {
	return RiskProfile{
		Name:            "ops",
		Version:         "v1",
		CovarianceScale: 1.2,
		DistanceScale:   1.0,
		MissThresholdM:  10000,
		AlertThreshold:  1e-4,
	}
}

func TestRiskProfileValidate(t *testing.T) {
	if err := validProfile().Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RiskProfile)
	}{
		{"empty name", func(p *RiskProfile) { p.Name = "" }},
		{"zero covariance scale", func(p *RiskProfile) { p.CovarianceScale = 0 }},
		{"negative covariance scale", func(p *RiskProfile) { p.CovarianceScale = -1 }},
		{"negative distance scale", func(p *RiskProfile) { p.DistanceScale = -0.5 }},
		{"zero miss threshold", func(p *RiskProfile) { p.MissThresholdM = 0 }},
		{"zero alert threshold", func(p *RiskProfile) { p.AlertThreshold = 0 }},
		{"alert threshold above one", func(p *RiskProfile) { p.AlertThreshold = 1.5 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := validProfile()
			c.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
				t.Fatalf("error = %v, want ErrInvalidProfile", err)
			}
		})
	}
}

func TestDefaultRiskProfilesAreOrderedAndValid(t *testing.T) {
	profiles := DefaultRiskProfiles()
	if len(profiles) != 3 {
		t.Fatalf("got %d profiles, want 3", len(profiles))
	}

	wantNames := []string{"conservative", "nominal", "aggressive"}
	for i, p := range profiles {
		if p.Name != wantNames[i] {
			t.Fatalf("profile %d = %q, want %q", i, p.Name, wantNames[i])
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("built-in profile %q invalid: %v", p.Name, err)
		}
	}

	// Severity decreases down the pack: wider covariance and looser miss
	// threshold first.
	for i := 1; i < len(profiles); i++ {
		if profiles[i].CovarianceScale >= profiles[i-1].CovarianceScale {
			t.Fatalf("covariance scales not decreasing at %q", profiles[i].Name)
		}
		if profiles[i].MissThresholdM >= profiles[i-1].MissThresholdM {
			t.Fatalf("miss thresholds not decreasing at %q", profiles[i].Name)
		}
	}
}
