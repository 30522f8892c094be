package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/orbital-engine/core"
	"github.com/signalsfoundry/orbital-engine/internal/logging"
	"github.com/signalsfoundry/orbital-engine/internal/observability"
	"github.com/signalsfoundry/orbital-engine/kb"
	"github.com/signalsfoundry/orbital-engine/model"
	"github.com/signalsfoundry/orbital-engine/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "", "YAML scenario file; empty runs the built-in demo")
	workers := flag.Int("workers", 4, "propagation worker count")
	metricsAddr := flag.String("metrics-addr", "", "address for the /metrics endpoint; empty disables it")
	replay := flag.Bool("replay", true, "replay the computed ephemerides through the catalog")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	poolMetrics, err := observability.NewPoolCollector(nil)
	if err != nil {
		log.Error(ctx, "pool metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "serving metrics", logging.String("addr", *metricsAddr))
	}

	scenario, err := loadOrDemoScenario(*scenarioPath)
	if err != nil {
		log.Error(ctx, "scenario load failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("name", scenario.Name),
		logging.Int("satellites", len(scenario.Satellites)),
		logging.Duration("duration", scenario.Duration),
		logging.Duration("cadence", scenario.Cadence),
	)

	catalog := kb.NewCatalog()
	catalog.Subscribe(func(kb.Event) {
		collector.SetCatalogObjects(len(catalog.AllObjects()))
	})
	for _, sat := range scenario.Satellites {
		if err := catalog.AddObject(kb.TrackedObject{ID: sat.ID, Name: sat.Name, State: sat.Initial}); err != nil {
			log.Error(ctx, "catalog add failed", logging.String("id", sat.ID), logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	started := time.Now()
	poolMetrics.SetWorkers(*workers)
	poolMetrics.SetPlansInFlight(len(scenario.Satellites))
	outcomes, err := runScenario(ctx, scenario, *workers)
	poolMetrics.SetPlansInFlight(0)
	poolMetrics.ObservePlanDuration(time.Since(started))
	if err != nil {
		log.Error(ctx, "propagation failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	for _, outcome := range outcomes {
		reportOutcome(ctx, log, collector, catalog, outcome)
	}

	refineFinalStates(ctx, log, collector, catalog, scenario, outcomes)

	screenClosestPair(ctx, log, collector, scenario, outcomes)

	if *replay && len(outcomes) > 0 && len(outcomes[0].Result.States) > 1 {
		replayEphemeris(ctx, log, catalog, scenario, outcomes)
	}

	log.Info(ctx, "run complete", logging.Duration("elapsed", time.Since(started)))
}

// loadOrDemoScenario reads the scenario file, or falls back to a small
// built-in two-satellite demo when no path is given.
func loadOrDemoScenario(path string) (*core.Scenario, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open scenario %q: %w", path, err)
		}
		defer f.Close()
		return core.LoadScenario(f)
	}

	start := time.Now().UTC().Truncate(time.Second)
	demo := &core.Scenario{
		Name:            "demo-leo-pair",
		Start:           start,
		Duration:        90 * time.Minute,
		Cadence:         time.Minute,
		ForceNames:      []string{"two_body", "j2"},
		Profiles:        model.DefaultRiskProfiles(),
		HardBodyRadiusM: 20,
	}
	demo.Satellites = []core.ScenarioSatellite{
		{
			ID:   "demo-a",
			Name: "Demo A",
			Initial: core.StateFromElements(core.OrbitalElements{
				SemiMajorAxisM: 7000e3,
				Eccentricity:   0.001,
				InclinationRad: 51.6 * math.Pi / 180,
			}, start),
		},
		{
			ID:   "demo-b",
			Name: "Demo B",
			Initial: core.StateFromElements(core.OrbitalElements{
				SemiMajorAxisM: 7005e3,
				Eccentricity:   0.0012,
				InclinationRad: 51.7 * math.Pi / 180,
				RAANRad:        0.002,
			}, start),
		},
	}
	return demo, nil
}

// runScenario propagates every satellite. When the force set carries no
// per-spacecraft parameters the plans share one composition and run on the
// pool; otherwise each satellite gets its own composition and the plans run
// one at a time.
func runScenario(ctx context.Context, sc *core.Scenario, workers int) ([]core.PlanOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "Engine/RunScenario",
		attribute.String("scenario", sc.Name),
		attribute.Int("satellites", len(sc.Satellites)),
		attribute.Int("workers", workers),
	)
	defer span.End()

	plans := sc.Plans()

	if !needsPerSatelliteForces(sc.ForceNames) {
		cfg := core.PoolConfig{
			Workers:        workers,
			NewComposition: func() (*core.Composition, error) { return sc.CompositionFor(sc.Satellites[0]) },
			NewIntegrator:  func() core.Integrator { return core.NewDormandPrince54() },
		}
		outcomes, err := core.RunPlans(ctx, plans, cfg)
		if err != nil {
			span.RecordError(err)
		}
		return outcomes, err
	}

	outcomes := make([]core.PlanOutcome, len(plans))
	for i, sat := range sc.Satellites {
		forces, err := sc.CompositionFor(sat)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		prop := core.NewPropagator(forces, core.NewDormandPrince54())
		_, planSpan := observability.StartSpan(ctx, "Engine/PropagatePlan", attribute.String("plan", plans[i].ID))
		result, err := prop.Propagate(ctx, plans[i].Initial, plans[i].Target, plans[i].Cadence, core.PropagateOptions{})
		if err != nil {
			planSpan.RecordError(err)
		}
		planSpan.End()
		outcomes[i] = core.PlanOutcome{ID: plans[i].ID, Result: result, Err: err}
	}
	return outcomes, nil
}

func needsPerSatelliteForces(names []string) bool {
	for _, name := range names {
		switch name {
		case "drag", "srp", "earth_albedo":
			return true
		}
	}
	return false
}

func reportOutcome(ctx context.Context, log logging.Logger, collector *observability.EngineCollector, catalog *kb.Catalog, outcome core.PlanOutcome) {
	if outcome.Err != nil {
		collector.RecordPlan("failed", outcome.Result.Steps, len(outcome.Result.States))
		log.Error(ctx, "plan failed",
			logging.String("id", outcome.ID),
			logging.String("error", outcome.Err.Error()),
			logging.Int("partial_states", len(outcome.Result.States)),
		)
		return
	}

	outcomeLabel := "completed"
	if outcome.Result.Truncated {
		outcomeLabel = "truncated"
	}
	collector.RecordPlan(outcomeLabel, outcome.Result.Steps, len(outcome.Result.States))

	if n := len(outcome.Result.States); n > 0 {
		final := outcome.Result.States[n-1]
		if err := catalog.UpdateState(outcome.ID, final); err != nil {
			log.Warn(ctx, "catalog update failed", logging.String("id", outcome.ID), logging.String("error", err.Error()))
		}
		el := core.ElementsFromState(final)
		log.Info(ctx, "plan finished",
			logging.String("id", outcome.ID),
			logging.String("outcome", outcomeLabel),
			logging.Int("states", n),
			logging.Int("steps", outcome.Result.Steps),
			logging.Float64("sma_km", el.SemiMajorAxisM/1000),
			logging.Float64("ecc", el.Eccentricity),
			logging.Float64("inc_deg", el.InclinationDeg()),
		)
	}
}

// refinementPrior is the a-priori uncertainty attached to a propagated
// initial state before filtering: 100 m and 0.1 m/s one sigma per axis.
func refinementPrior() *mat.SymDense {
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, 1e4)
		cov.SetSym(i+3, i+3, 1e-2)
	}
	return cov
}

// refineFinalStates runs the filter over each successful trajectory,
// treating the sampled positions as fixes with a 50 m sigma, and stores the
// covariance-bearing refined state in the catalog.
func refineFinalStates(ctx context.Context, log logging.Logger, collector *observability.EngineCollector, catalog *kb.Catalog, sc *core.Scenario, outcomes []core.PlanOutcome) {
	ctx, span := observability.StartSpan(ctx, "Engine/RefineStates")
	defer span.End()

	noise := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		noise.SetSym(i, i, 2500)
	}

	for i, outcome := range outcomes {
		if outcome.Err != nil || len(outcome.Result.States) < 2 {
			continue
		}
		forces, err := sc.CompositionFor(sc.Satellites[i])
		if err != nil {
			log.Warn(ctx, "refinement skipped", logging.String("id", outcome.ID), logging.String("error", err.Error()))
			continue
		}

		states := outcome.Result.States
		initial, err := core.NewEKFState(states[0].WithCovariance(refinementPrior()))
		if err != nil {
			log.Warn(ctx, "refinement skipped", logging.String("id", outcome.ID), logging.String("error", err.Error()))
			continue
		}
		observations := make([]model.Observation, 0, len(states)-1)
		for _, st := range states[1:] {
			observations = append(observations, model.NewObservation(model.ObservationPosition, st.Epoch,
				[]float64{st.Position.X, st.Position.Y, st.Position.Z}, noise))
		}

		ekf := core.NewEKF(forces)
		batch, err := ekf.RunBatch(ctx, initial, observations, core.BatchOptions{})
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, core.ErrFilterDivergence) {
				collector.RecordFilterDivergence()
			}
			log.Warn(ctx, "refinement failed", logging.String("id", outcome.ID), logging.String("error", err.Error()))
			continue
		}
		for range batch.History {
			collector.RecordFilterUpdate(model.ObservationPosition.String())
		}

		refined := batch.Final.State()
		if err := catalog.UpdateState(outcome.ID, refined); err != nil {
			log.Warn(ctx, "catalog update failed", logging.String("id", outcome.ID), logging.String("error", err.Error()))
			continue
		}
		cov := batch.Final.Covariance()
		log.Info(ctx, "state refined",
			logging.String("id", outcome.ID),
			logging.Int("updates", len(batch.History)),
			logging.Float64("pos_sigma_m", math.Sqrt(cov.At(0, 0))),
		)
	}
}

// screenClosestPair runs conjunction screening between the first two
// satellites with successful trajectories.
func screenClosestPair(ctx context.Context, log logging.Logger, collector *observability.EngineCollector, sc *core.Scenario, outcomes []core.PlanOutcome) {
	var first, second *core.PlanOutcome
	for i := range outcomes {
		if outcomes[i].Err != nil || len(outcomes[i].Result.States) == 0 {
			continue
		}
		if first == nil {
			first = &outcomes[i]
		} else {
			second = &outcomes[i]
			break
		}
	}
	if second == nil {
		return
	}

	ctx, span := observability.StartSpan(ctx, "Engine/ScreenConjunction",
		attribute.String("pair", first.ID+"/"+second.ID),
	)
	defer span.End()

	// 100 m one-sigma position uncertainty per object when no estimated
	// covariance is available.
	const defaultVariance = 1e4
	geom, err := core.ClosestApproach(first.Result.States, second.Result.States, sc.HardBodyRadiusM, defaultVariance)
	if err != nil {
		span.RecordError(err)
		log.Warn(ctx, "closest approach skipped", logging.String("error", err.Error()))
		return
	}

	results, err := core.Assess(geom, sc.Profiles)
	if err != nil {
		span.RecordError(err)
		log.Warn(ctx, "conjunction assessment failed", logging.String("error", err.Error()))
		return
	}
	for _, res := range results {
		collector.RecordScreening(res.Profile, res.Flagged)
		log.Info(ctx, "conjunction screening",
			logging.String("pair", first.ID+"/"+second.ID),
			logging.String("profile", res.Profile),
			logging.Float64("miss_m", res.MissDistanceM),
			logging.Float64("pc", res.PcNominal),
			logging.Float64("pc_lower", res.PcLower),
			logging.Float64("pc_upper", res.PcUpper),
			logging.Any("flagged", res.Flagged),
		)
	}
}

// replayEphemeris walks the computed trajectories forward in accelerated
// time, pushing each sampled state into the catalog as it becomes current.
func replayEphemeris(ctx context.Context, log logging.Logger, catalog *kb.Catalog, sc *core.Scenario, outcomes []core.PlanOutcome) {
	clock := timectrl.NewReplay(sc.Start, sc.Cadence, timectrl.Accelerated)

	cursors := make([]int, len(outcomes))
	clock.AddListener(func(epoch time.Time) {
		for i := range outcomes {
			states := outcomes[i].Result.States
			for cursors[i] < len(states) && !states[cursors[i]].Epoch.After(epoch) {
				if err := catalog.UpdateState(outcomes[i].ID, states[cursors[i]]); err != nil {
					log.Warn(ctx, "replay update failed",
						logging.String("id", outcomes[i].ID),
						logging.String("error", err.Error()),
					)
				}
				cursors[i]++
			}
		}
	})

	<-clock.Run(sc.Duration)
	log.Info(ctx, "replay complete", logging.Int("objects", len(outcomes)))
}
