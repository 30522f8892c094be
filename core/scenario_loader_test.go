package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const elementsScenarioYAML = `
name: leo-pair
start: 2026-03-01T12:00:00Z
duration_s: 5400
cadence_s: 60
forces: [two_body, j2]
satellites:
  - id: sat-a
    name: Primary
    elements:
      sma_km: 6900
      inc_deg: 51.6
  - id: sat-b
    name: Secondary
    elements:
      sma_km: 6905
      inc_deg: 51.6
      raan_deg: 0.05
`

func TestLoadScenarioFromElements(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(elementsScenarioYAML))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if sc.Name != "leo-pair" {
		t.Fatalf("name = %q", sc.Name)
	}
	if sc.Duration != 90*time.Minute || sc.Cadence != time.Minute {
		t.Fatalf("span = %v @ %v, want 90m @ 1m", sc.Duration, sc.Cadence)
	}
	if sc.HardBodyRadiusM != 20 {
		t.Fatalf("hard-body radius = %v, want the 20 m default", sc.HardBodyRadiusM)
	}
	if len(sc.Profiles) != 3 || sc.Profiles[0].Name != "conservative" {
		t.Fatalf("expected the default profile pack, got %+v", sc.Profiles)
	}
	if len(sc.Satellites) != 2 {
		t.Fatalf("got %d satellites, want 2", len(sc.Satellites))
	}

	el := ElementsFromState(sc.Satellites[0].Initial)
	if d := el.SemiMajorAxisM - 6900e3; d > 1 || d < -1 {
		t.Fatalf("sat-a sma = %v, want 6900 km", el.SemiMajorAxisM)
	}
	if deg := el.InclinationDeg(); deg < 51.59 || deg > 51.61 {
		t.Fatalf("sat-a inclination = %v deg, want 51.6", deg)
	}

	plans := sc.Plans()
	if len(plans) != 2 || plans[0].ID != "sat-a" || plans[1].ID != "sat-b" {
		t.Fatalf("plans not in declaration order: %+v", plans)
	}
	wantTarget := sc.Start.Add(90 * time.Minute)
	if !plans[0].Target.Equal(wantTarget) || plans[0].Cadence != time.Minute {
		t.Fatalf("plan target %v @ %v, want %v @ 1m", plans[0].Target, plans[0].Cadence, wantTarget)
	}
}

func TestLoadScenarioFromTLE(t *testing.T) {
	const src = `
name: iss
start: 2008-09-21T00:00:00Z
duration_s: 3600
cadence_s: 60
forces: [two_body]
satellites:
  - id: iss
    tle1: "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
    tle2: "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
`
	sc, err := LoadScenario(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	st := sc.Satellites[0].Initial
	if r := st.Position.Norm(); r < 6.6e6 || r > 7.2e6 {
		t.Fatalf("SGP4 position radius = %v m, want a LEO radius", r)
	}
	if v := st.Velocity.Norm(); v < 7.2e3 || v > 8.2e3 {
		t.Fatalf("SGP4 speed = %v m/s, want orbital speed", v)
	}
	if !st.Epoch.Equal(sc.Start) {
		t.Fatalf("initial epoch %v, want scenario start %v", st.Epoch, sc.Start)
	}
}

func TestLoadScenarioBuildsPerSatelliteForces(t *testing.T) {
	const src = `
name: drag-case
start: 2026-03-01T12:00:00Z
duration_s: 3600
cadence_s: 60
forces: [two_body, j2, drag]
satellites:
  - id: sat-a
    elements: {sma_km: 6778, inc_deg: 51.6}
    drag: {cd: 2.2, area_m2: 4, mass_kg: 400}
`
	sc, err := LoadScenario(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	comp, err := sc.CompositionFor(sc.Satellites[0])
	if err != nil {
		t.Fatalf("CompositionFor: %v", err)
	}
	names := comp.Names()
	want := []string{"drag", "j2", "two_body"}
	if len(names) != len(want) {
		t.Fatalf("composition names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("composition names = %v, want %v", names, want)
		}
	}
}

func TestLoadScenarioMissingDragBlock(t *testing.T) {
	const src = `
name: broken
start: 2026-03-01T12:00:00Z
duration_s: 3600
cadence_s: 60
forces: [two_body, drag]
satellites:
  - id: sat-a
    elements: {sma_km: 6778}
`
	if _, err := LoadScenario(strings.NewReader(src)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration at load time", err)
	}
}

func TestLoadScenarioUnknownForce(t *testing.T) {
	const src = `
name: broken
start: 2026-03-01T12:00:00Z
duration_s: 3600
cadence_s: 60
forces: [two_body, magnetotorque]
satellites:
  - id: sat-a
    elements: {sma_km: 6778}
`
	if _, err := LoadScenario(strings.NewReader(src)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"not yaml", `{{nope`},
		{"no duration", "start: 2026-03-01T12:00:00Z\ncadence_s: 60\nforces: [two_body]\nsatellites: [{id: a, elements: {sma_km: 7000}}]"},
		{"no cadence", "start: 2026-03-01T12:00:00Z\nduration_s: 60\nforces: [two_body]\nsatellites: [{id: a, elements: {sma_km: 7000}}]"},
		{"no forces", "start: 2026-03-01T12:00:00Z\nduration_s: 60\ncadence_s: 60\nsatellites: [{id: a, elements: {sma_km: 7000}}]"},
		{"no satellites", "start: 2026-03-01T12:00:00Z\nduration_s: 60\ncadence_s: 60\nforces: [two_body]"},
		{"no start", "duration_s: 60\ncadence_s: 60\nforces: [two_body]\nsatellites: [{id: a, elements: {sma_km: 7000}}]"},
		{"empty satellite id", "start: 2026-03-01T12:00:00Z\nduration_s: 60\ncadence_s: 60\nforces: [two_body]\nsatellites: [{elements: {sma_km: 7000}}]"},
		{"satellite without state", "start: 2026-03-01T12:00:00Z\nduration_s: 60\ncadence_s: 60\nforces: [two_body]\nsatellites: [{id: a}]"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadScenario(strings.NewReader(c.src)); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestLoadScenarioCustomProfiles(t *testing.T) {
	const src = `
name: custom
start: 2026-03-01T12:00:00Z
duration_s: 3600
cadence_s: 60
hard_body_radius_m: 35
forces: [two_body]
satellites:
  - id: sat-a
    elements: {sma_km: 7000}
profiles:
  - name: ops
    version: v2
    covariance_scale: 1.2
    distance_scale: 1.0
    miss_threshold_m: 10000
    alert_threshold: 1e-4
`
	sc, err := LoadScenario(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.HardBodyRadiusM != 35 {
		t.Fatalf("hard-body radius = %v, want 35", sc.HardBodyRadiusM)
	}
	if len(sc.Profiles) != 1 || sc.Profiles[0].Name != "ops" || sc.Profiles[0].Version != "v2" {
		t.Fatalf("profiles = %+v", sc.Profiles)
	}
	if sc.Profiles[0].AlertThreshold != 1e-4 {
		t.Fatalf("alert threshold = %v, want 1e-4", sc.Profiles[0].AlertThreshold)
	}
}

func TestLoadScenarioRejectsInvalidProfile(t *testing.T) {
	const src = `
name: custom
start: 2026-03-01T12:00:00Z
duration_s: 3600
cadence_s: 60
forces: [two_body]
satellites:
  - id: sat-a
    elements: {sma_km: 7000}
profiles:
  - name: broken
    covariance_scale: 0
    miss_threshold_m: 10000
    alert_threshold: 1e-4
`
	if _, err := LoadScenario(strings.NewReader(src)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}
