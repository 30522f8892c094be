package core

import (
	"fmt"
	"io"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/orbital-engine/model"
)

// Scenario is a fully validated propagation scenario: the objects to
// propagate, the force configuration, the screening profiles, and the span.
type Scenario struct {
	Name            string
	Start           time.Time
	Duration        time.Duration
	Cadence         time.Duration
	ForceNames      []string
	Satellites      []ScenarioSatellite
	Profiles        []model.RiskProfile
	HardBodyRadiusM float64
}

// ScenarioSatellite is one object in a scenario with its initial state and
// the per-spacecraft force parameters.
type ScenarioSatellite struct {
	ID      string
	Name    string
	Initial model.OrbitalState
	Drag    *Drag
	SRP     *SolarRadiationPressure
	Albedo  *EarthAlbedo
}

// internal YAML shapes - kept unexported so the on-disk format can evolve
// without touching the public Scenario type.
type scenarioYAML struct {
	Name            string            `yaml:"name"`
	Start           time.Time         `yaml:"start"`
	DurationSeconds float64           `yaml:"duration_s"`
	CadenceSeconds  float64           `yaml:"cadence_s"`
	Forces          []string          `yaml:"forces"`
	HardBodyRadiusM float64           `yaml:"hard_body_radius_m"`
	Satellites      []satelliteYAML   `yaml:"satellites"`
	Profiles        []riskProfileYAML `yaml:"profiles"`
}

type satelliteYAML struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	TLE1     string        `yaml:"tle1"`
	TLE2     string        `yaml:"tle2"`
	Elements *elementsYAML `yaml:"elements"`
	Drag     *dragYAML     `yaml:"drag"`
	SRP      *srpYAML      `yaml:"srp"`
	Albedo   *albedoYAML   `yaml:"albedo"`
}

type elementsYAML struct {
	SMAKm   float64 `yaml:"sma_km"`
	Ecc     float64 `yaml:"ecc"`
	IncDeg  float64 `yaml:"inc_deg"`
	RAANDeg float64 `yaml:"raan_deg"`
	ArgPDeg float64 `yaml:"argp_deg"`
	TADeg   float64 `yaml:"ta_deg"`
}

type dragYAML struct {
	Cd     float64 `yaml:"cd"`
	AreaM2 float64 `yaml:"area_m2"`
	MassKg float64 `yaml:"mass_kg"`
}

type srpYAML struct {
	Cr     float64 `yaml:"cr"`
	AreaM2 float64 `yaml:"area_m2"`
	MassKg float64 `yaml:"mass_kg"`
}

type albedoYAML struct {
	Albedo float64 `yaml:"albedo"`
	Cr     float64 `yaml:"cr"`
	AreaM2 float64 `yaml:"area_m2"`
	MassKg float64 `yaml:"mass_kg"`
}

type riskProfileYAML struct {
	Name            string  `yaml:"name"`
	Version         string  `yaml:"version"`
	CovarianceScale float64 `yaml:"covariance_scale"`
	DistanceScale   float64 `yaml:"distance_scale"`
	MissThresholdM  float64 `yaml:"miss_threshold_m"`
	AlertThreshold  float64 `yaml:"alert_threshold"`
}

// LoadScenario reads a YAML scenario and validates everything needed to
// start propagating. All configuration errors surface here, wrapping
// ErrConfiguration, before any integration work begins.
func LoadScenario(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var payload scenarioYAML
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode scenario: %v", ErrConfiguration, err)
	}

	if payload.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: scenario duration must be > 0", ErrConfiguration)
	}
	if payload.CadenceSeconds <= 0 {
		return nil, fmt.Errorf("%w: scenario cadence must be > 0", ErrConfiguration)
	}
	if len(payload.Forces) == 0 {
		return nil, fmt.Errorf("%w: scenario lists no forces", ErrConfiguration)
	}
	if len(payload.Satellites) == 0 {
		return nil, fmt.Errorf("%w: scenario lists no satellites", ErrConfiguration)
	}
	if payload.Start.IsZero() {
		return nil, fmt.Errorf("%w: scenario start epoch is required", ErrConfiguration)
	}

	out := &Scenario{
		Name:            payload.Name,
		Start:           payload.Start.UTC(),
		Duration:        time.Duration(payload.DurationSeconds * float64(time.Second)),
		Cadence:         time.Duration(payload.CadenceSeconds * float64(time.Second)),
		ForceNames:      payload.Forces,
		HardBodyRadiusM: payload.HardBodyRadiusM,
	}
	if out.HardBodyRadiusM == 0 {
		out.HardBodyRadiusM = 20
	}

	for _, sy := range payload.Satellites {
		if sy.ID == "" {
			return nil, fmt.Errorf("%w: satellite with empty id", ErrConfiguration)
		}
		sat := ScenarioSatellite{ID: sy.ID, Name: sy.Name}

		switch {
		case sy.TLE1 != "" && sy.TLE2 != "":
			st, err := stateFromTLE(sy.TLE1, sy.TLE2, out.Start)
			if err != nil {
				return nil, fmt.Errorf("%w: satellite %q: %v", ErrConfiguration, sy.ID, err)
			}
			sat.Initial = st
		case sy.Elements != nil:
			el := sy.Elements
			sat.Initial = StateFromElements(OrbitalElements{
				SemiMajorAxisM: el.SMAKm * 1000,
				Eccentricity:   el.Ecc,
				InclinationRad: el.IncDeg * math.Pi / 180,
				RAANRad:        el.RAANDeg * math.Pi / 180,
				ArgPerigeeRad:  el.ArgPDeg * math.Pi / 180,
				TrueAnomalyRad: el.TADeg * math.Pi / 180,
			}, out.Start)
		default:
			return nil, fmt.Errorf("%w: satellite %q has neither TLE nor elements", ErrConfiguration, sy.ID)
		}

		if sy.Drag != nil {
			sat.Drag = &Drag{Cd: sy.Drag.Cd, AreaM2: sy.Drag.AreaM2, MassKg: sy.Drag.MassKg}
		}
		if sy.SRP != nil {
			sat.SRP = &SolarRadiationPressure{Cr: sy.SRP.Cr, AreaM2: sy.SRP.AreaM2, MassKg: sy.SRP.MassKg}
		}
		if sy.Albedo != nil {
			sat.Albedo = &EarthAlbedo{Albedo: sy.Albedo.Albedo, Cr: sy.Albedo.Cr, AreaM2: sy.Albedo.AreaM2, MassKg: sy.Albedo.MassKg}
		}
		out.Satellites = append(out.Satellites, sat)
	}

	if len(payload.Profiles) == 0 {
		out.Profiles = model.DefaultRiskProfiles()
	} else {
		for _, py := range payload.Profiles {
			p := model.RiskProfile{
				Name:            py.Name,
				Version:         py.Version,
				CovarianceScale: py.CovarianceScale,
				DistanceScale:   py.DistanceScale,
				MissThresholdM:  py.MissThresholdM,
				AlertThreshold:  py.AlertThreshold,
			}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			out.Profiles = append(out.Profiles, p)
		}
	}

	// Build one composition per satellite up front so missing per-spacecraft
	// parameters fail at load time, not mid-propagation.
	for i := range out.Satellites {
		if _, err := out.CompositionFor(out.Satellites[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CompositionFor builds the scenario's force composition bound to one
// satellite's spacecraft parameters. A force that needs parameters the
// satellite does not carry is a configuration error, never a silent
// default.
func (s *Scenario) CompositionFor(sat ScenarioSatellite) (*Composition, error) {
	var models []ForceModel
	for _, name := range s.ForceNames {
		switch name {
		case "two_body":
			models = append(models, TwoBody{})
		case "j2":
			models = append(models, J2{})
		case "j3":
			models = append(models, J3{})
		case "drag":
			if sat.Drag == nil {
				return nil, fmt.Errorf("%w: satellite %q: drag force requires a drag block", ErrConfiguration, sat.ID)
			}
			models = append(models, *sat.Drag)
		case "srp":
			if sat.SRP == nil {
				return nil, fmt.Errorf("%w: satellite %q: srp force requires an srp block", ErrConfiguration, sat.ID)
			}
			models = append(models, *sat.SRP)
		case "earth_albedo":
			if sat.Albedo == nil {
				return nil, fmt.Errorf("%w: satellite %q: earth_albedo force requires an albedo block", ErrConfiguration, sat.ID)
			}
			models = append(models, *sat.Albedo)
		case "third_body_sun":
			models = append(models, ThirdBody{Body: ThirdBodySun})
		case "third_body_moon":
			models = append(models, ThirdBody{Body: ThirdBodyMoon})
		case "schwarzschild":
			models = append(models, Schwarzschild{})
		case "lense_thirring":
			models = append(models, LenseThirring{})
		default:
			return nil, fmt.Errorf("%w: unknown force %q", ErrConfiguration, name)
		}
	}
	return NewComposition(models...)
}

// Plans returns one propagation plan per satellite in declaration order.
func (s *Scenario) Plans() []PropagationPlan {
	plans := make([]PropagationPlan, 0, len(s.Satellites))
	for _, sat := range s.Satellites {
		plans = append(plans, PropagationPlan{
			ID:      sat.ID,
			Initial: sat.Initial,
			Target:  s.Start.Add(s.Duration),
			Cadence: s.Cadence,
		})
	}
	return plans
}

// stateFromTLE converts a TLE pair to an ECI state at the given epoch using
// SGP4. go-satellite works in kilometres; the engine stores metres.
func stateFromTLE(line1, line2 string, epoch time.Time) (model.OrbitalState, error) {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	year, month, day := epoch.Date()
	hour, min, sec := epoch.Clock()

	pos, vel := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return model.OrbitalState{}, fmt.Errorf("sgp4 propagation produced a degenerate state")
	}

	const kmToM = 1000.0
	return model.NewOrbitalState(epoch.UTC(),
		model.Vec3{X: pos.X * kmToM, Y: pos.Y * kmToM, Z: pos.Z * kmToM},
		model.Vec3{X: vel.X * kmToM, Y: vel.Y * kmToM, Z: vel.Z * kmToM},
	), nil
}
