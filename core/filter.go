package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/orbital-engine/model"
)

var (
	// ErrFilterDivergence is the sentinel for an ill-conditioned covariance.
	// Non-retryable; the concrete *FilterDivergence carries the last valid
	// state.
	ErrFilterDivergence = errors.New("filter divergence")
	// ErrObservationOrder is returned when an observation predates the
	// filter's current epoch. The filter never rewinds; predict forward to
	// the observation instead.
	ErrObservationOrder = errors.New("observation predates filter epoch")
)

// FilterDivergence reports covariance breakdown together with the last
// state that still passed the positive-definiteness and determinant checks.
type FilterDivergence struct {
	Last   EKFState
	Reason string
}

func (e *FilterDivergence) Error() string {
	return fmt.Sprintf("filter divergence at %s: %s", e.Last.Epoch.Format(time.RFC3339), e.Reason)
}

func (e *FilterDivergence) Unwrap() error { return ErrFilterDivergence }

// EKFConfig tunes the filter's process noise and divergence detection.
type EKFConfig struct {
	// ProcessNoise is the white acceleration noise spectral density
	// (m^2/s^3) mapped through the discrete-time noise shaping matrix.
	ProcessNoise float64
	// LogDetLimit flags divergence when the covariance log-determinant
	// exceeds this bound (covariance blow-up).
	LogDetLimit float64
}

// DefaultEKFConfig suits LEO orbit determination with position fixes at the
// tens-of-metres level.
func DefaultEKFConfig() EKFConfig {
	return EKFConfig{
		ProcessNoise: 1e-8,
		LogDetLimit:  200,
	}
}

// EKFState is an immutable filter state: epoch, 6-dimensional mean
// (position, velocity) and its covariance. Predict and Update return new
// states; callers thread them explicitly.
type EKFState struct {
	Epoch time.Time

	mean *mat.VecDense // 6
	cov  *mat.SymDense // 6x6
}

// NewEKFState builds a filter state from an orbital state, which must carry
// a covariance.
func NewEKFState(st model.OrbitalState) (EKFState, error) {
	cov := st.Covariance()
	if cov == nil {
		return EKFState{}, fmt.Errorf("%w: initial state carries no covariance", ErrConfiguration)
	}
	mean := mat.NewVecDense(6, []float64{
		st.Position.X, st.Position.Y, st.Position.Z,
		st.Velocity.X, st.Velocity.Y, st.Velocity.Z,
	})
	return EKFState{Epoch: st.Epoch, mean: mean, cov: cov}, nil
}

// State returns the filter state as an orbital state with covariance.
func (s EKFState) State() model.OrbitalState {
	st := model.NewOrbitalState(s.Epoch,
		model.Vec3{X: s.mean.AtVec(0), Y: s.mean.AtVec(1), Z: s.mean.AtVec(2)},
		model.Vec3{X: s.mean.AtVec(3), Y: s.mean.AtVec(4), Z: s.mean.AtVec(5)})
	return st.WithCovariance(s.cov)
}

// Mean returns a copy of the 6-dimensional state mean.
func (s EKFState) Mean() *mat.VecDense {
	return mat.VecDenseCopyOf(s.mean)
}

// Covariance returns a copy of the 6x6 covariance.
func (s EKFState) Covariance() *mat.SymDense {
	c := mat.NewSymDense(6, nil)
	c.CopySym(s.cov)
	return c
}

// EKF is the extended Kalman filter engine: a force composition providing
// the nonlinear dynamics plus tuning. The engine itself is stateless; all
// estimation state lives in EKFState values.
type EKF struct {
	Forces *Composition
	Cfg    EKFConfig
}

// NewEKF returns a filter over the given dynamics with default tuning.
func NewEKF(forces *Composition) *EKF {
	return &EKF{Forces: forces, Cfg: DefaultEKFConfig()}
}

// maxPredictSubstep bounds the RK4 substep used for mean propagation so the
// linearization stays local.
const maxPredictSubstep = 60.0

// Predict propagates mean and covariance forward by dt. The mean follows
// the full nonlinear dynamics via fixed-step RK4; the covariance follows
// the linearized transition Phi = I + F dt + (F dt)^2/2 with F the
// finite-difference Jacobian of the force composition, plus process noise.
func (e *EKF) Predict(st EKFState, dt time.Duration) (EKFState, error) {
	if dt < 0 {
		return st, fmt.Errorf("%w: negative predict interval %v", ErrObservationOrder, dt)
	}
	if dt == 0 {
		return st, nil
	}
	seconds := dt.Seconds()

	// Jacobian at the current state, before the mean moves.
	F := e.dynamicsJacobian(st)

	// Mean through the nonlinear dynamics.
	orbital := model.NewOrbitalState(st.Epoch,
		model.Vec3{X: st.mean.AtVec(0), Y: st.mean.AtVec(1), Z: st.mean.AtVec(2)},
		model.Vec3{X: st.mean.AtVec(3), Y: st.mean.AtVec(4), Z: st.mean.AtVec(5)})
	n := int(math.Ceil(seconds / maxPredictSubstep))
	if n < 1 {
		n = 1
	}
	h := seconds / float64(n)
	integ := RK4{}
	for i := 0; i < n; i++ {
		res, err := integ.Step(e.Forces, orbital, h, Tolerance{})
		if err != nil {
			return st, err
		}
		orbital = res.State
	}

	// Phi = I + F dt + (F dt)^2 / 2.
	var Fdt, Fdt2 mat.Dense
	Fdt.Scale(seconds, F)
	Fdt2.Mul(&Fdt, &Fdt)
	phi := identity(6)
	phi.Add(phi, &Fdt)
	var half mat.Dense
	half.Scale(0.5, &Fdt2)
	phi.Add(phi, &half)

	// P' = Phi P Phi^T + Q.
	var next mat.Dense
	next.Product(phi, st.cov, phi.T())
	next.Add(&next, e.processNoise(seconds))
	cov := symmetrize(&next)

	out := EKFState{
		Epoch: st.Epoch.Add(dt),
		mean: mat.NewVecDense(6, []float64{
			orbital.Position.X, orbital.Position.Y, orbital.Position.Z,
			orbital.Velocity.X, orbital.Velocity.Y, orbital.Velocity.Z,
		}),
		cov: cov,
	}
	// The last valid state rides along with the failure.
	if reason := e.covarianceHealth(cov); reason != "" {
		return st, &FilterDivergence{Last: st, Reason: reason}
	}
	return out, nil
}

// Update folds an observation into the state with the standard EKF
// correction. An observation after the state's epoch triggers an internal
// Predict first; an observation before it is an error.
func (e *EKF) Update(st EKFState, obs model.Observation) (EKFState, error) {
	if obs.Epoch.Before(st.Epoch) {
		return st, fmt.Errorf("%w: observation at %s, filter at %s",
			ErrObservationOrder, obs.Epoch.Format(time.RFC3339Nano), st.Epoch.Format(time.RFC3339Nano))
	}
	if obs.Epoch.After(st.Epoch) {
		predicted, err := e.Predict(st, obs.Epoch.Sub(st.Epoch))
		if err != nil {
			return st, err
		}
		st = predicted
	}

	dim := obs.Kind.Dim()
	if dim == 0 || len(obs.Value) != dim {
		return st, fmt.Errorf("%w: %s observation with %d values", ErrConfiguration, obs.Kind, len(obs.Value))
	}
	R := obs.Noise()
	if R == nil || R.SymmetricDim() != dim {
		return st, fmt.Errorf("%w: %s observation needs a %dx%d noise covariance", ErrConfiguration, obs.Kind, dim, dim)
	}

	predicted, H, err := e.observationModel(st, obs)
	if err != nil {
		return st, err
	}

	// Innovation, with angle residuals wrapped to (-pi, pi].
	innovation := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		d := obs.Value[i] - predicted.AtVec(i)
		if obs.Kind == model.ObservationAngle {
			d = wrapAngle(d)
		}
		innovation.SetVec(i, d)
	}

	// S = H P H^T + R.
	var S mat.Dense
	S.Product(H, st.cov, H.T())
	S.Add(&S, R)
	var SInv mat.Dense
	if err := SInv.Inverse(&S); err != nil {
		return st, &FilterDivergence{Last: st, Reason: fmt.Sprintf("singular innovation covariance: %v", err)}
	}

	// K = P H^T S^-1.
	var K mat.Dense
	K.Product(st.cov, H.T(), &SInv)

	// x' = x + K innovation.
	correction := mat.NewVecDense(6, nil)
	correction.MulVec(&K, innovation)
	mean := mat.NewVecDense(6, nil)
	mean.AddVec(st.mean, correction)

	// P' = (I - K H) P, then explicit symmetrization to counter
	// floating-point asymmetry drift.
	var KH mat.Dense
	KH.Mul(&K, H)
	gain := identity(6)
	gain.Sub(gain, &KH)
	var next mat.Dense
	next.Mul(gain, st.cov)
	cov := symmetrize(&next)

	out := EKFState{Epoch: st.Epoch, mean: mean, cov: cov}
	if reason := e.covarianceHealth(cov); reason != "" {
		return st, &FilterDivergence{Last: st, Reason: reason}
	}
	return out, nil
}

// BatchOptions bounds a batch run. Zero StepBudget means unbounded; the
// budget counts processed observations.
type BatchOptions struct {
	StepBudget int
}

// BatchResult is the outcome of a batch run: the final state, the state
// after each processed observation in processing order, and whether the run
// was cut short by deadline or budget.
type BatchResult struct {
	Final     EKFState
	History   []EKFState
	Truncated bool
}

// RunBatch folds Predict/Update pairs over the observations sorted by
// ascending epoch; observations sharing an epoch keep their input order.
// The result is defined to be exactly the fold of the incremental
// primitives, so a caller looping Predict and Update by hand over the same
// sorted set gets bit-identical numbers.
func (e *EKF) RunBatch(ctx context.Context, initial EKFState, observations []model.Observation, opts BatchOptions) (BatchResult, error) {
	sorted := make([]model.Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Epoch.Before(sorted[j].Epoch)
	})

	out := BatchResult{Final: initial}
	for i, obs := range sorted {
		if ctx != nil && ctx.Err() != nil {
			out.Truncated = true
			return out, nil
		}
		if opts.StepBudget > 0 && i >= opts.StepBudget {
			out.Truncated = true
			return out, nil
		}

		st, err := e.Predict(out.Final, obs.Epoch.Sub(out.Final.Epoch))
		if err != nil {
			return out, err
		}
		st, err = e.Update(st, obs)
		if err != nil {
			return out, err
		}
		out.Final = st
		out.History = append(out.History, st)
	}
	return out, nil
}

// jacobianPosDelta and jacobianVelDelta are the central-difference offsets
// for the dynamics Jacobian (metres, metres/second).
const (
	jacobianPosDelta = 1.0
	jacobianVelDelta = 1e-3
)

// dynamicsJacobian builds F = d(v, a)/d(r, v) by central differences on the
// force composition.
func (e *EKF) dynamicsJacobian(st EKFState) *mat.Dense {
	F := mat.NewDense(6, 6, nil)
	// dr/dv = I.
	for i := 0; i < 3; i++ {
		F.Set(i, i+3, 1)
	}

	pos := model.Vec3{X: st.mean.AtVec(0), Y: st.mean.AtVec(1), Z: st.mean.AtVec(2)}
	vel := model.Vec3{X: st.mean.AtVec(3), Y: st.mean.AtVec(4), Z: st.mean.AtVec(5)}

	perturb := func(v model.Vec3, axis int, d float64) model.Vec3 {
		switch axis {
		case 0:
			v.X += d
		case 1:
			v.Y += d
		case 2:
			v.Z += d
		}
		return v
	}

	for axis := 0; axis < 3; axis++ {
		plus := e.Forces.Total(st.Epoch, perturb(pos, axis, jacobianPosDelta), vel)
		minus := e.Forces.Total(st.Epoch, perturb(pos, axis, -jacobianPosDelta), vel)
		diff := plus.Sub(minus).Scale(1 / (2 * jacobianPosDelta))
		F.Set(3, axis, diff.X)
		F.Set(4, axis, diff.Y)
		F.Set(5, axis, diff.Z)
	}
	for axis := 0; axis < 3; axis++ {
		plus := e.Forces.Total(st.Epoch, pos, perturb(vel, axis, jacobianVelDelta))
		minus := e.Forces.Total(st.Epoch, pos, perturb(vel, axis, -jacobianVelDelta))
		diff := plus.Sub(minus).Scale(1 / (2 * jacobianVelDelta))
		F.Set(3, axis+3, diff.X)
		F.Set(4, axis+3, diff.Y)
		F.Set(5, axis+3, diff.Z)
	}
	return F
}

// processNoise maps the white acceleration noise through the discrete-time
// shaping matrix G = [dt^2/2 I; dt I]: Q = q G G^T.
func (e *EKF) processNoise(dt float64) *mat.Dense {
	q := e.Cfg.ProcessNoise
	qPP := q * dt * dt * dt * dt / 4
	qPV := q * dt * dt * dt / 2
	qVV := q * dt * dt

	Q := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		Q.Set(i, i, qPP)
		Q.Set(i, i+3, qPV)
		Q.Set(i+3, i, qPV)
		Q.Set(i+3, i+3, qVV)
	}
	return Q
}

// observationModel returns the predicted measurement and its Jacobian H for
// the observation's kind.
func (e *EKF) observationModel(st EKFState, obs model.Observation) (*mat.VecDense, *mat.Dense, error) {
	pos := model.Vec3{X: st.mean.AtVec(0), Y: st.mean.AtVec(1), Z: st.mean.AtVec(2)}

	switch obs.Kind {
	case model.ObservationPosition:
		H := mat.NewDense(3, 6, nil)
		for i := 0; i < 3; i++ {
			H.Set(i, i, 1)
		}
		return mat.NewVecDense(3, []float64{pos.X, pos.Y, pos.Z}), H, nil

	case model.ObservationRange:
		rel := pos.Sub(obs.Station)
		rho := rel.Norm()
		if rho == 0 {
			return nil, nil, fmt.Errorf("%w: range observation with zero slant range", ErrConfiguration)
		}
		H := mat.NewDense(1, 6, nil)
		H.Set(0, 0, rel.X/rho)
		H.Set(0, 1, rel.Y/rho)
		H.Set(0, 2, rel.Z/rho)
		return mat.NewVecDense(1, []float64{rho}), H, nil

	case model.ObservationAngle:
		rel := pos.Sub(obs.Station)
		rho := rel.Norm()
		rhoXY := math.Hypot(rel.X, rel.Y)
		if rho == 0 || rhoXY == 0 {
			return nil, nil, fmt.Errorf("%w: degenerate angle observation geometry", ErrConfiguration)
		}
		ra := math.Atan2(rel.Y, rel.X)
		dec := math.Asin(rel.Z / rho)

		H := mat.NewDense(2, 6, nil)
		H.Set(0, 0, -rel.Y/(rhoXY*rhoXY))
		H.Set(0, 1, rel.X/(rhoXY*rhoXY))
		H.Set(1, 0, -rel.X*rel.Z/(rho*rho*rhoXY))
		H.Set(1, 1, -rel.Y*rel.Z/(rho*rho*rhoXY))
		H.Set(1, 2, rhoXY/(rho*rho))
		return mat.NewVecDense(2, []float64{ra, dec}), H, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown observation kind %d", ErrConfiguration, obs.Kind)
	}
}

// covarianceHealth verifies a covariance is positive definite and its
// determinant is under the blow-up limit, returning a non-empty reason on
// failure.
func (e *EKF) covarianceHealth(cov *mat.SymDense) string {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return "covariance lost positive definiteness"
	}
	limit := e.Cfg.LogDetLimit
	if limit == 0 {
		limit = DefaultEKFConfig().LogDetLimit
	}
	if logDet := chol.LogDet(); logDet > limit {
		return fmt.Sprintf("covariance log-determinant %.2f exceeds limit %.2f", logDet, limit)
	}
	return ""
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// symmetrize averages a nearly-symmetric matrix with its transpose into a
// SymDense.
func symmetrize(m *mat.Dense) *mat.SymDense {
	r, _ := m.Dims()
	out := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			out.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return out
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
