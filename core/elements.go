package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// OrbitalElements is the classical Keplerian element set. Angles are in
// radians. These are the queryable quantities downstream comparison reports
// tabulate (SMA, ECC, inclination, RAAN, and so on).
type OrbitalElements struct {
	SemiMajorAxisM float64
	Eccentricity   float64
	InclinationRad float64
	RAANRad        float64
	ArgPerigeeRad  float64
	TrueAnomalyRad float64
}

// InclinationDeg returns the inclination in degrees.
func (el OrbitalElements) InclinationDeg() float64 { return el.InclinationRad * 180 / math.Pi }

// RAANDeg returns the right ascension of the ascending node in degrees.
func (el OrbitalElements) RAANDeg() float64 { return el.RAANRad * 180 / math.Pi }

// ElementsFromState converts an ECI Cartesian state to classical elements.
// Near-circular and near-equatorial orbits resolve the undefined angles to
// zero rather than NaN.
func ElementsFromState(st model.OrbitalState) OrbitalElements {
	r := st.Position
	v := st.Velocity
	rNorm := r.Norm()
	vNorm := v.Norm()

	h := r.Cross(v)
	hNorm := h.Norm()
	node := model.Vec3{Z: 1}.Cross(h)
	nNorm := node.Norm()

	// Eccentricity vector.
	eVec := r.Scale(vNorm*vNorm - MuEarth/rNorm).Sub(v.Scale(r.Dot(v))).Scale(1 / MuEarth)
	ecc := eVec.Norm()

	energy := vNorm*vNorm/2 - MuEarth/rNorm
	sma := -MuEarth / (2 * energy)

	inc := math.Acos(clamp(h.Z/hNorm, -1, 1))

	var raan float64
	if nNorm > 1e-10 {
		raan = math.Acos(clamp(node.X/nNorm, -1, 1))
		if node.Y < 0 {
			raan = 2*math.Pi - raan
		}
	}

	var argp float64
	if nNorm > 1e-10 && ecc > 1e-10 {
		argp = math.Acos(clamp(node.Dot(eVec)/(nNorm*ecc), -1, 1))
		if eVec.Z < 0 {
			argp = 2*math.Pi - argp
		}
	}

	var trueAnom float64
	if ecc > 1e-10 {
		trueAnom = math.Acos(clamp(eVec.Dot(r)/(ecc*rNorm), -1, 1))
		if r.Dot(v) < 0 {
			trueAnom = 2*math.Pi - trueAnom
		}
	} else if nNorm > 1e-10 {
		trueAnom = math.Acos(clamp(node.Dot(r)/(nNorm*rNorm), -1, 1))
		if r.Z < 0 {
			trueAnom = 2*math.Pi - trueAnom
		}
	}

	return OrbitalElements{
		SemiMajorAxisM: sma,
		Eccentricity:   ecc,
		InclinationRad: inc,
		RAANRad:        raan,
		ArgPerigeeRad:  argp,
		TrueAnomalyRad: trueAnom,
	}
}

// StateFromElements converts classical elements to an ECI Cartesian state
// at the given epoch via the perifocal frame rotation.
func StateFromElements(el OrbitalElements, epoch time.Time) model.OrbitalState {
	a := el.SemiMajorAxisM
	e := el.Eccentricity
	nu := el.TrueAnomalyRad

	p := a * (1 - e*e)
	rMag := p / (1 + e*math.Cos(nu))
	vFactor := math.Sqrt(MuEarth / p)

	posPQW := model.Vec3{X: rMag * math.Cos(nu), Y: rMag * math.Sin(nu)}
	velPQW := model.Vec3{X: -vFactor * math.Sin(nu), Y: vFactor * (e + math.Cos(nu))}

	cO, sO := math.Cos(el.RAANRad), math.Sin(el.RAANRad)
	co, so := math.Cos(el.ArgPerigeeRad), math.Sin(el.ArgPerigeeRad)
	ci, si := math.Cos(el.InclinationRad), math.Sin(el.InclinationRad)

	rot := [3][3]float64{
		{cO*co - sO*so*ci, -cO*so - sO*co*ci, sO * si},
		{sO*co + cO*so*ci, -sO*so + cO*co*ci, -cO * si},
		{so * si, co * si, ci},
	}

	rotate := func(v model.Vec3) model.Vec3 {
		return model.Vec3{
			X: rot[0][0]*v.X + rot[0][1]*v.Y + rot[0][2]*v.Z,
			Y: rot[1][0]*v.X + rot[1][1]*v.Y + rot[1][2]*v.Z,
			Z: rot[2][0]*v.X + rot[2][1]*v.Y + rot[2][2]*v.Z,
		}
	}
	return model.NewOrbitalState(epoch, rotate(posPQW), rotate(velPQW))
}

// MeanMotion returns the two-body mean motion (rad/s) for a semi-major axis.
func MeanMotion(smaM float64) float64 {
	return math.Sqrt(MuEarth / (smaM * smaM * smaM))
}

// J2RAANDriftRate returns the secular nodal regression rate (rad/s) caused
// by J2: -(3/2) n J2 (Re/p)^2 cos i.
func J2RAANDriftRate(el OrbitalElements) float64 {
	n := MeanMotion(el.SemiMajorAxisM)
	p := el.SemiMajorAxisM * (1 - el.Eccentricity*el.Eccentricity)
	ratio := EarthRadiusM / p
	return -1.5 * n * J2Earth * ratio * ratio * math.Cos(el.InclinationRad)
}

// SSOInclinationDeg returns the Sun-synchronous inclination for a circular
// orbit at the given altitude, from the J2-based SSO condition.
func SSOInclinationDeg(altitudeKm float64) float64 {
	r := altitudeKm*1000 + EarthRadiusM
	cosI := -(2 * SSONodalRate / (3 * J2Earth * EarthRadiusM * EarthRadiusM)) *
		(math.Pow(r, 3.5) / math.Sqrt(MuEarth))
	return math.Acos(cosI) * 180 / math.Pi
}

// HohmannPlan is a two-impulse coplanar transfer between circular orbits.
type HohmannPlan struct {
	DeltaV1MS       float64
	DeltaV2MS       float64
	TotalDeltaVMS   float64
	TransferSeconds float64
}

// HohmannTransfer computes the transfer between circular orbits of radius
// r1 and r2 (metres).
func HohmannTransfer(r1, r2 float64) HohmannPlan {
	aTransfer := (r1 + r2) / 2

	v1 := math.Sqrt(MuEarth / r1)
	v2 := math.Sqrt(MuEarth / r2)
	vPeri := math.Sqrt(MuEarth * (2/r1 - 1/aTransfer))
	vApo := math.Sqrt(MuEarth * (2/r2 - 1/aTransfer))

	dv1 := math.Abs(vPeri - v1)
	dv2 := math.Abs(v2 - vApo)
	return HohmannPlan{
		DeltaV1MS:       dv1,
		DeltaV2MS:       dv2,
		TotalDeltaVMS:   dv1 + dv2,
		TransferSeconds: math.Pi * math.Sqrt(aTransfer*aTransfer*aTransfer/MuEarth),
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
