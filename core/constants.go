package core

// Physical constants shared by the force models and element conversions.
// Gravitational parameters are IAU values; the Earth radius is the mean
// radius, matching the atmosphere table's altitude reference.
const (
	// MuEarth is Earth's gravitational parameter (m^3/s^2).
	MuEarth = 3.986004418e14
	// EarthRadiusM is the mean Earth radius (m).
	EarthRadiusM = 6371000.0
	// J2Earth is the dominant oblateness coefficient.
	J2Earth = 1.08263e-3
	// J3Earth is the pear-shape harmonic coefficient.
	J3Earth = -2.53215306e-6
	// EarthRotationRate is the sidereal rotation rate (rad/s), used for the
	// rotating-atmosphere relative velocity in the drag model.
	EarthRotationRate = 7.2921159e-5
	// SSONodalRate is the Sun-synchronous nodal regression target (rad/s),
	// one revolution per tropical year.
	SSONodalRate = 1.99e-7

	// SpeedOfLight (m/s), exact by definition.
	SpeedOfLight = 299792458.0
	// SolarPressure is the solar radiation pressure at 1 AU (N/m^2).
	SolarPressure = 4.56e-6
	// AstronomicalUnit (m).
	AstronomicalUnit = 1.495978707e11

	// MuSun and MuMoon are third-body gravitational parameters (m^3/s^2).
	MuSun  = 1.32712440018e20
	MuMoon = 4.9048695e12

	// EarthAngularMomentum is Earth's spin angular momentum per unit mass
	// (m^2/s), entering the Lense-Thirring frame-dragging term.
	EarthAngularMomentum = 9.8e8
)
