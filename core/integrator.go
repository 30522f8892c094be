package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// ErrIntegrationDivergence is the sentinel for a step that collapsed below
// the minimum step size without meeting tolerance. Non-retryable.
var ErrIntegrationDivergence = errors.New("integration divergence")

// Tolerance configures the adaptive integrator's local error control. The
// per-component error scale is Abs + Rel*|y|.
type Tolerance struct {
	Abs float64
	Rel float64
}

// DefaultTolerance is tight enough for kilometre-level agreement over
// multi-day LEO arcs while keeping step counts reasonable.
func DefaultTolerance() Tolerance {
	return Tolerance{Abs: 1e-6, Rel: 1e-9}
}

// StepResult is one integration step's outcome: the new state, the step the
// integrator actually took (seconds, signed), a suggested next step, and the
// local error estimate for adaptive schemes.
type StepResult struct {
	State       model.OrbitalState
	StepTaken   float64
	NextStep    float64
	ErrEstimate float64
	HasEstimate bool
}

// Integrator advances a state by roughly one requested step under a force
// composition. Implementations are stateless and deterministic: the same
// inputs always produce the same outputs.
type Integrator interface {
	Name() string
	Step(forces *Composition, st model.OrbitalState, h float64, tol Tolerance) (StepResult, error)
}

// stateVec is the flat [rx ry rz vx vy vz] integration variable.
type stateVec [6]float64

func toVec(st model.OrbitalState) stateVec {
	return stateVec{
		st.Position.X, st.Position.Y, st.Position.Z,
		st.Velocity.X, st.Velocity.Y, st.Velocity.Z,
	}
}

func fromVec(epoch time.Time, y stateVec) model.OrbitalState {
	return model.NewOrbitalState(epoch,
		model.Vec3{X: y[0], Y: y[1], Z: y[2]},
		model.Vec3{X: y[3], Y: y[4], Z: y[5]})
}

// addSeconds shifts an epoch by a fractional number of seconds.
func addSeconds(t time.Time, s float64) time.Time {
	return t.Add(time.Duration(s * float64(time.Second)))
}

// derivative evaluates dy/dt = (v, a) at epoch + dt seconds.
func derivative(forces *Composition, epoch time.Time, dt float64, y stateVec) stateVec {
	pos := model.Vec3{X: y[0], Y: y[1], Z: y[2]}
	vel := model.Vec3{X: y[3], Y: y[4], Z: y[5]}
	a := forces.Total(addSeconds(epoch, dt), pos, vel)
	return stateVec{y[3], y[4], y[5], a.X, a.Y, a.Z}
}

func axpy(y stateVec, h float64, k stateVec) stateVec {
	var out stateVec
	for i := range y {
		out[i] = y[i] + h*k[i]
	}
	return out
}

// RK4 is the classic fixed-step fourth-order Runge-Kutta scheme. Step size
// is exactly the requested step; there is no error estimate, which makes it
// bit-for-bit reproducible across runs.
type RK4 struct{}

func (RK4) Name() string { return "rk4" }

func (RK4) Step(forces *Composition, st model.OrbitalState, h float64, _ Tolerance) (StepResult, error) {
	if h == 0 {
		return StepResult{}, fmt.Errorf("%w: rk4: zero step", ErrIntegrationDivergence)
	}
	y := toVec(st)

	k1 := derivative(forces, st.Epoch, 0, y)
	k2 := derivative(forces, st.Epoch, h/2, axpy(y, h/2, k1))
	k3 := derivative(forces, st.Epoch, h/2, axpy(y, h/2, k2))
	k4 := derivative(forces, st.Epoch, h, axpy(y, h, k3))

	var next stateVec
	for i := range y {
		next[i] = y[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return StepResult{
		State:     fromVec(addSeconds(st.Epoch, h), next),
		StepTaken: h,
		NextStep:  h,
	}, nil
}

// Dormand-Prince 5(4) coefficients.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// Fifth-order solution weights (identical to the last A row, FSAL).
	dpB5 = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}
	// Embedded fourth-order weights used for the error estimate.
	dpB4 = [7]float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}
)

// DormandPrince54 is an adaptive embedded Runge-Kutta 5(4) scheme. Each
// call shrinks the trial step until the local truncation error estimate
// meets tolerance, then suggests a next step grown by at most MaxGrowth to
// avoid accept/reject oscillation.
type DormandPrince54 struct {
	MinStep   float64 // floor for error-driven shrinking, in seconds; smaller requested steps are taken exactly
	MaxStep   float64 // largest allowed |h| in seconds
	Safety    float64 // step-size safety factor
	MaxGrowth float64 // cap on step growth per accepted step
}

// NewDormandPrince54 returns the integrator with standard control defaults.
func NewDormandPrince54() DormandPrince54 {
	return DormandPrince54{
		MinStep:   1e-3,
		MaxStep:   600,
		Safety:    0.9,
		MaxGrowth: 2.0,
	}
}

func (d DormandPrince54) Name() string { return "dormand_prince_54" }

func (d DormandPrince54) Step(forces *Composition, st model.OrbitalState, h float64, tol Tolerance) (StepResult, error) {
	if h == 0 {
		return StepResult{}, fmt.Errorf("%w: dormand_prince: zero step", ErrIntegrationDivergence)
	}
	if tol.Abs <= 0 && tol.Rel <= 0 {
		tol = DefaultTolerance()
	}

	dir := 1.0
	if h < 0 {
		dir = -1.0
	}
	// MinStep is a shrink floor, not an inflation floor: a request below it
	// is a clip-to-target remainder and must be taken exactly, or the caller
	// overshoots its sample epoch and can never land on it.
	mag := math.Abs(h)
	if mag > d.MaxStep {
		mag = d.MaxStep
	}
	y := toVec(st)

	for {
		step := dir * mag
		next, errNorm := d.trial(forces, st.Epoch, y, step, tol)

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			return StepResult{}, fmt.Errorf(
				"%w: dormand_prince: non-finite error estimate at step %.3gs",
				ErrIntegrationDivergence, step)
		}
		if errNorm <= 1 {
			factor := d.MaxGrowth
			if errNorm > 0 {
				factor = d.Safety * math.Pow(1/errNorm, 0.2)
			}
			factor = math.Min(math.Max(factor, 0.2), d.MaxGrowth)
			nextMag := math.Min(math.Max(mag*factor, d.MinStep), d.MaxStep)
			return StepResult{
				State:       fromVec(addSeconds(st.Epoch, step), next),
				StepTaken:   step,
				NextStep:    dir * nextMag,
				ErrEstimate: errNorm,
				HasEstimate: true,
			}, nil
		}

		if mag <= d.MinStep {
			return StepResult{}, fmt.Errorf(
				"%w: dormand_prince: error %.3g above tolerance at minimum step %.3gs",
				ErrIntegrationDivergence, errNorm, mag)
		}
		factor := math.Max(0.2, d.Safety*math.Pow(1/errNorm, 0.2))
		mag = math.Max(mag*factor, d.MinStep)
	}
}

// trial evaluates one Dormand-Prince step of size h, returning the
// fifth-order solution and the scaled RMS error norm (<= 1 means accept).
func (d DormandPrince54) trial(forces *Composition, epoch time.Time, y stateVec, h float64, tol Tolerance) (stateVec, float64) {
	var k [7]stateVec
	k[0] = derivative(forces, epoch, 0, y)
	for s := 1; s < 7; s++ {
		ys := y
		for j := 0; j < s; j++ {
			if dpA[s][j] != 0 {
				ys = axpy(ys, h*dpA[s][j], k[j])
			}
		}
		k[s] = derivative(forces, epoch, h*dpC[s], ys)
	}

	var y5, y4 stateVec
	for i := range y {
		y5[i] = y[i]
		y4[i] = y[i]
		for s := 0; s < 7; s++ {
			y5[i] += h * dpB5[s] * k[s][i]
			y4[i] += h * dpB4[s] * k[s][i]
		}
	}

	var sum float64
	for i := range y {
		scale := tol.Abs + tol.Rel*math.Max(math.Abs(y[i]), math.Abs(y5[i]))
		diff := (y5[i] - y4[i]) / scale
		sum += diff * diff
	}
	return y5, math.Sqrt(sum / float64(len(y)))
}
