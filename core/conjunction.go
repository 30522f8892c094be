package core

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/orbital-engine/model"
)

// ErrConjunctionInput is the sentinel for degenerate conjunction geometry:
// near-zero relative velocity or a combined covariance that is not positive
// definite. Degenerate inputs fail; they never produce a silent zero
// probability.
var ErrConjunctionInput = errors.New("degenerate conjunction geometry")

// minRelativeSpeed below which the encounter plane is undefined (m/s).
const minRelativeSpeed = 1e-6

// Probability-band factors from the screening profile pack: the lower and
// upper bounds bracket the nominal at -30%/+30%.
const (
	pcBandLower = 0.7
	pcBandUpper = 1.3
)

// encounterBasis returns two orthonormal vectors spanning the plane normal
// to the relative velocity.
func encounterBasis(relVel model.Vec3) (model.Vec3, model.Vec3, error) {
	if relVel.Norm() < minRelativeSpeed {
		return model.Vec3{}, model.Vec3{}, fmt.Errorf("%w: relative speed %.3g m/s below %.0e",
			ErrConjunctionInput, relVel.Norm(), minRelativeSpeed)
	}
	vHat := relVel.Unit()

	ref := model.Vec3{X: 1}
	if math.Abs(vHat.X) > 0.9 {
		ref = model.Vec3{Y: 1}
	}
	e1 := vHat.Cross(ref).Unit()
	e2 := vHat.Cross(e1)
	return e1, e2, nil
}

// CollisionProbability integrates the bivariate normal density of the
// combined position uncertainty, projected onto the encounter plane, over
// the disk of the combined hard-body radius.
func CollisionProbability(geom model.ConjunctionGeometry) (float64, error) {
	e1, e2, err := encounterBasis(geom.RelativeVelocity)
	if err != nil {
		return 0, err
	}
	combined := geom.CombinedCovariance()
	if combined == nil {
		return 0, fmt.Errorf("%w: missing combined covariance", ErrConjunctionInput)
	}
	if geom.HardBodyRadiusM <= 0 {
		return 0, fmt.Errorf("%w: hard-body radius must be > 0, got %v", ErrConjunctionInput, geom.HardBodyRadiusM)
	}
	// Check the full 3x3 before projecting: a covariance that is non-PD
	// only along the relative-velocity axis would survive the plane
	// projection and screen silently.
	var chol3 mat.Cholesky
	if ok := chol3.Factorize(combined); !ok {
		return 0, fmt.Errorf("%w: combined covariance not positive definite", ErrConjunctionInput)
	}

	// Project the 3x3 covariance and the miss vector onto the plane.
	project := func(a, b model.Vec3) float64 {
		va := []float64{a.X, a.Y, a.Z}
		vb := []float64{b.X, b.Y, b.Z}
		var sum float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				sum += va[i] * combined.At(i, j) * vb[j]
			}
		}
		return sum
	}
	planeCov := mat.NewSymDense(2, []float64{
		project(e1, e1), project(e1, e2),
		project(e1, e2), project(e2, e2),
	})

	var chol mat.Cholesky
	if ok := chol.Factorize(planeCov); !ok {
		return 0, fmt.Errorf("%w: combined covariance not positive definite in encounter plane", ErrConjunctionInput)
	}

	missX := geom.MissVector.Dot(e1)
	missY := geom.MissVector.Dot(e2)

	det := planeCov.At(0, 0)*planeCov.At(1, 1) - planeCov.At(0, 1)*planeCov.At(1, 0)
	inv00 := planeCov.At(1, 1) / det
	inv11 := planeCov.At(0, 0) / det
	inv01 := -planeCov.At(0, 1) / det
	norm := 1 / (2 * math.Pi * math.Sqrt(det))

	// Midpoint quadrature over the collision disk in polar coordinates.
	// Grid resolution is fixed so results are deterministic.
	const nR, nTheta = 64, 128
	radius := geom.HardBodyRadiusM
	dr := radius / nR
	dTheta := 2 * math.Pi / nTheta

	var pc float64
	for i := 0; i < nR; i++ {
		r := (float64(i) + 0.5) * dr
		for j := 0; j < nTheta; j++ {
			theta := (float64(j) + 0.5) * dTheta
			dx := r*math.Cos(theta) - missX
			dy := r*math.Sin(theta) - missY
			quad := inv00*dx*dx + 2*inv01*dx*dy + inv11*dy*dy
			pc += norm * math.Exp(-0.5*quad) * r * dr * dTheta
		}
	}
	return clamp(pc, 0, 1), nil
}

// Assess screens a conjunction geometry under each risk profile. The base
// probability comes from the encounter-plane integration; each profile then
// scales it by its covariance multiplier and applies its flag thresholds.
// Profiles are validated up front; an invalid profile is a configuration
// error, not a screening outcome.
func Assess(geom model.ConjunctionGeometry, profiles []model.RiskProfile) ([]model.ConjunctionResult, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no risk profiles", ErrConfiguration)
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	basePc, err := CollisionProbability(geom)
	if err != nil {
		return nil, err
	}
	return screen(geom.MissDistanceM(), basePc, profiles), nil
}

// ScreenBaseProbability screens a conjunction whose base collision
// probability is already known (e.g. supplied by an external assessment),
// skipping the geometry integration.
func ScreenBaseProbability(missDistanceM, basePc float64, profiles []model.RiskProfile) ([]model.ConjunctionResult, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no risk profiles", ErrConfiguration)
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	if missDistanceM < 0 || basePc < 0 || basePc > 1 {
		return nil, fmt.Errorf("%w: miss distance %v m, base probability %v", ErrConjunctionInput, missDistanceM, basePc)
	}
	return screen(missDistanceM, basePc, profiles), nil
}

// screen applies the profile pack to a base probability. The covariance
// multiplier enters as a probability scale, which is the first-order effect
// of widening the uncertainty when the miss distance dominates the
// uncertainty ellipse; severity ordering of the profiles is therefore
// preserved by construction.
func screen(missDistanceM, basePc float64, profiles []model.RiskProfile) []model.ConjunctionResult {
	results := make([]model.ConjunctionResult, 0, len(profiles))
	for _, p := range profiles {
		distScale := p.DistanceScale
		if distScale == 0 {
			distScale = 1
		}
		miss := missDistanceM * distScale

		nominal := clamp(basePc*p.CovarianceScale, 0, 1)
		lower := clamp(nominal*pcBandLower, 0, 1)
		upper := clamp(nominal*pcBandUpper, 0, 1)

		flagged := nominal >= p.AlertThreshold && miss <= p.MissThresholdM
		results = append(results, model.ConjunctionResult{
			Profile:        p.Name,
			ProfileVersion: p.Version,
			MissDistanceM:  miss,
			PcLower:        lower,
			PcNominal:      nominal,
			PcUpper:        upper,
			Flagged:        flagged,
		})
	}
	return results
}

// ClosestApproach scans two trajectories sampled on a shared cadence and
// returns the conjunction geometry at the minimum-distance pair. States are
// paired by index; both trajectories must be sampled at the same epochs.
// Combined covariance is the sum of both states' position covariances; a
// state without covariance contributes the given default position variance
// on each axis.
func ClosestApproach(a, b []model.OrbitalState, hardBodyM, defaultVariance float64) (model.ConjunctionGeometry, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return model.ConjunctionGeometry{}, fmt.Errorf("%w: empty trajectory", ErrConjunctionInput)
	}

	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < n; i++ {
		if !a[i].Epoch.Equal(b[i].Epoch) {
			return model.ConjunctionGeometry{}, fmt.Errorf("%w: trajectories sampled at different epochs (index %d)", ErrConjunctionInput, i)
		}
		if d := a[i].Position.DistanceTo(b[i].Position); d < bestDist {
			bestDist = d
			best = i
		}
	}

	combined := mat.NewSymDense(3, nil)
	addPositionCov := func(st model.OrbitalState) {
		if cov := st.Covariance(); cov != nil {
			for i := 0; i < 3; i++ {
				for j := i; j < 3; j++ {
					combined.SetSym(i, j, combined.At(i, j)+cov.At(i, j))
				}
			}
			return
		}
		for i := 0; i < 3; i++ {
			combined.SetSym(i, i, combined.At(i, i)+defaultVariance)
		}
	}
	addPositionCov(a[best])
	addPositionCov(b[best])

	return model.NewConjunctionGeometry(
		b[best].Position.Sub(a[best].Position),
		b[best].Velocity.Sub(a[best].Velocity),
		combined,
		hardBodyM,
	), nil
}
