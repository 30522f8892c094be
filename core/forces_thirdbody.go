package core

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// ThirdBodyName identifies a supported perturbing body.
type ThirdBodyName string

const (
	ThirdBodySun  ThirdBodyName = "sun"
	ThirdBodyMoon ThirdBodyName = "moon"
)

// moonPositionApprox returns the Moon's geocentric ECI position (m) from a
// truncated Meeus series: mean longitude plus the dominant elliptic term in
// longitude and latitude.
func moonPositionApprox(epoch time.Time) model.Vec3 {
	n := julianDate(epoch) - 2451545.0
	deg := math.Pi / 180.0

	lon := math.Mod(218.316+13.176396*n, 360.0) * deg
	anom := math.Mod(134.963+13.064993*n, 360.0) * deg
	lat := math.Mod(93.272+13.229350*n, 360.0) * deg

	eclLon := lon + 6.289*deg*math.Sin(anom)
	eclLat := 5.128 * deg * math.Sin(lat)
	distM := (385001.0 - 20905.0*math.Cos(anom)) * 1000.0

	obliquity := (23.439 - 0.0000004*n) * deg

	cl, sl := math.Cos(eclLon), math.Sin(eclLon)
	cb, sb := math.Cos(eclLat), math.Sin(eclLat)
	ce, se := math.Cos(obliquity), math.Sin(obliquity)
	return model.Vec3{
		X: distM * cb * cl,
		Y: distM * (cb*sl*ce - sb*se),
		Z: distM * (cb*sl*se + sb*ce),
	}
}

// ThirdBody is the point-mass perturbation of the Sun or Moon, in the
// standard direct-minus-indirect form so the acceleration is expressed in
// the Earth-centered frame.
type ThirdBody struct {
	Body ThirdBodyName
}

func (t ThirdBody) Name() string { return "third_body_" + string(t.Body) }

func (t ThirdBody) validate() error {
	switch t.Body {
	case ThirdBodySun, ThirdBodyMoon:
		return nil
	default:
		return fmt.Errorf("%w: third_body: unknown body %q", ErrConfiguration, t.Body)
	}
}

func (t ThirdBody) Acceleration(epoch time.Time, pos, _ model.Vec3) model.Vec3 {
	var bodyPos model.Vec3
	var mu float64
	switch t.Body {
	case ThirdBodyMoon:
		bodyPos = moonPositionApprox(epoch)
		mu = MuMoon
	default:
		bodyPos = sunPositionApprox(epoch)
		mu = MuSun
	}

	toBody := bodyPos.Sub(pos)
	d := toBody.Norm()
	rb := bodyPos.Norm()

	direct := toBody.Scale(mu / (d * d * d))
	indirect := bodyPos.Scale(mu / (rb * rb * rb))
	return direct.Sub(indirect)
}
