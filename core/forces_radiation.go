package core

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// julianDate converts a UTC instant to a Julian date.
func julianDate(t time.Time) float64 {
	t = t.UTC()
	const unixEpochJD = 2440587.5
	return unixEpochJD + float64(t.UnixNano())/1e9/86400.0
}

// sunPositionApprox returns the Sun's geocentric ECI position (m) from the
// low-precision analytic series (accurate to ~0.01 deg, plenty for
// perturbation work).
func sunPositionApprox(epoch time.Time) model.Vec3 {
	n := julianDate(epoch) - 2451545.0 // days since J2000

	meanLon := math.Mod(280.460+0.9856474*n, 360.0)
	meanAnom := math.Mod(357.528+0.9856003*n, 360.0) * math.Pi / 180.0

	eclLon := (meanLon+1.915*math.Sin(meanAnom)+0.020*math.Sin(2*meanAnom)) * math.Pi / 180.0
	distAU := 1.00014 - 0.01671*math.Cos(meanAnom) - 0.00014*math.Cos(2*meanAnom)
	obliquity := (23.439 - 0.0000004*n) * math.Pi / 180.0

	r := distAU * AstronomicalUnit
	return model.Vec3{
		X: r * math.Cos(eclLon),
		Y: r * math.Cos(obliquity) * math.Sin(eclLon),
		Z: r * math.Sin(obliquity) * math.Sin(eclLon),
	}
}

// inEarthShadow reports whether a satellite at pos is inside Earth's
// cylindrical shadow for the given Sun position: on the anti-Sun side with
// its perpendicular offset from the shadow axis under one Earth radius.
func inEarthShadow(pos, sunPos model.Vec3) bool {
	sunDir := sunPos.Unit()
	along := pos.Dot(sunDir)
	if along > 0 {
		return false
	}
	perp := pos.Sub(sunDir.Scale(along))
	return perp.Norm() < EarthRadiusM
}

// SolarRadiationPressure models direct solar photon pressure on a
// spacecraft, with a cylindrical eclipse model.
type SolarRadiationPressure struct {
	Cr     float64 // reflectivity coefficient, 1.0-2.0
	AreaM2 float64
	MassKg float64
}

func (s SolarRadiationPressure) Name() string { return "srp" }

func (s SolarRadiationPressure) validate() error {
	if s.Cr <= 0 {
		return fmt.Errorf("%w: srp: cr must be > 0, got %v", ErrConfiguration, s.Cr)
	}
	if s.AreaM2 <= 0 {
		return fmt.Errorf("%w: srp: area must be > 0, got %v", ErrConfiguration, s.AreaM2)
	}
	if s.MassKg <= 0 {
		return fmt.Errorf("%w: srp: mass must be > 0, got %v", ErrConfiguration, s.MassKg)
	}
	return nil
}

func (s SolarRadiationPressure) Acceleration(epoch time.Time, pos, _ model.Vec3) model.Vec3 {
	sun := sunPositionApprox(epoch)
	if inEarthShadow(pos, sun) {
		return model.Vec3{}
	}
	fromSun := pos.Sub(sun)
	d := fromSun.Norm()
	// Pressure falls off with the square of the actual Sun distance.
	scale := AstronomicalUnit / d
	p := SolarPressure * scale * scale
	return fromSun.Unit().Scale(p * s.Cr * s.AreaM2 / s.MassKg)
}

// EarthAlbedo models sunlight reflected off the sunlit Earth disk, pushing
// the spacecraft radially outward. The reflected flux scales with the
// surface albedo, the inverse-square view of the Earth disk, and how much of
// the sunlit hemisphere the spacecraft sees; it is exactly zero in eclipse.
type EarthAlbedo struct {
	Albedo float64 // Bond albedo, ~0.3 for Earth
	Cr     float64
	AreaM2 float64
	MassKg float64
}

func (e EarthAlbedo) Name() string { return "earth_albedo" }

func (e EarthAlbedo) validate() error {
	if e.Albedo <= 0 || e.Albedo > 1 {
		return fmt.Errorf("%w: earth_albedo: albedo must be in (0, 1], got %v", ErrConfiguration, e.Albedo)
	}
	if e.Cr <= 0 {
		return fmt.Errorf("%w: earth_albedo: cr must be > 0, got %v", ErrConfiguration, e.Cr)
	}
	if e.AreaM2 <= 0 {
		return fmt.Errorf("%w: earth_albedo: area must be > 0, got %v", ErrConfiguration, e.AreaM2)
	}
	if e.MassKg <= 0 {
		return fmt.Errorf("%w: earth_albedo: mass must be > 0, got %v", ErrConfiguration, e.MassKg)
	}
	return nil
}

func (e EarthAlbedo) Acceleration(epoch time.Time, pos, _ model.Vec3) model.Vec3 {
	sun := sunPositionApprox(epoch)
	if inEarthShadow(pos, sun) {
		return model.Vec3{}
	}
	r := pos.Norm()
	rHat := pos.Unit()
	// Fraction of the visible Earth disk that is sunlit, clamped at the
	// terminator.
	sunlit := rHat.Dot(sun.Unit())
	if sunlit <= 0 {
		return model.Vec3{}
	}
	view := EarthRadiusM / r
	p := e.Albedo * SolarPressure * view * view * sunlit
	return rHat.Scale(p * e.Cr * e.AreaM2 / e.MassKg)
}
