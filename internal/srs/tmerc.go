package srs

import (
	"math"

	"github.com/rotisserie/eris"
)

// WGS84 ellipsoid and UTM constants.
const (
	wgs84A     = 6378137.0
	wgs84RF    = 298.257223563
	utmK0      = 0.9996
	utmFalseE  = 500000.0
	utmFalseNS = 10000000.0
	radToDeg   = 180 / math.Pi
)

// tmercOrder is the number of terms in each series.
const tmercOrder = 6

// tmerc holds the series coefficients of the Poder/Engsager extended transverse
// Mercator on the WGS84 ellipsoid. The inverse follows PROJ's exact tmerc, so grid
// vertices come out bit-for-bit as OGR reports them.
type tmerc struct {
	qn  float64             // meridian quadrant scaled by k0 / a
	cgb [tmercOrder]float64 // Gaussian -> geodetic latitude
	utg [tmercOrder]float64 // normalized UTM -> Gaussian
}

var wgs84Tmerc = newTmerc(utmK0)

func newTmerc(k0 float64) *tmerc {
	f0 := 1 / wgs84RF
	es := 2*f0 - f0*f0
	f := es / (1 + math.Sqrt(1-es))
	n := f / (2 - f)

	t := &tmerc{}
	np := n
	t.cgb[0] = n * (2 + n*(-2/3.0+n*(-2+n*(116/45.0+n*(26/45.0+n*(-2854/675.0))))))
	np *= n
	t.cgb[1] = np * (7/3.0 + n*(-8/5.0+n*(-227/45.0+n*(2704/315.0+n*(2323/945.0)))))
	np *= n
	t.cgb[2] = np * (56/15.0 + n*(-136/35.0+n*(-1262/105.0+n*(73814/2835.0))))
	np *= n
	t.cgb[3] = np * (4279/630.0 + n*(-332/35.0+n*(-399572/14175.0)))
	np *= n
	t.cgb[4] = np * (4174/315.0 + n*(-144838/6237.0))
	np *= n
	t.cgb[5] = np * (601676 / 22275.0)

	np = n * n
	t.qn = k0 / (1 + n) * (1 + np*(1/4.0+np*(1/64.0+np/256.0)))

	t.utg[0] = n * (-0.5 + n*(2/3.0+n*(-37/96.0+n*(1/360.0+n*(81/512.0+n*(-96199/604800.0))))))
	t.utg[1] = np * (-1/48.0 + n*(-1/15.0+n*(437/1440.0+n*(-46/105.0+n*(1118711/3870720.0)))))
	np *= n
	t.utg[2] = np * (-17/480.0 + n*(37/840.0+n*(209/4480.0+n*(-5569/90720.0))))
	np *= n
	t.utg[3] = np * (-4397/161280.0 + n*(11/504.0+n*(830251/7257600.0)))
	np *= n
	t.utg[4] = np * (-4583/161280.0 + n*(108847/3991680.0))
	np *= n
	t.utg[5] = np * (-20648693 / 638668800.0)
	return t
}

// inverse maps normalized easting/northing (meters / a, false origin removed) to
// longitude offset from the central meridian and geodetic latitude, in radians.
func (t *tmerc) inverse(x, y float64) (lam, phi float64, ok bool) {
	cn := y / t.qn
	ce := x / t.qn
	if math.Abs(ce) > 2.623395162778 {
		return 0, 0, false
	}

	dCn, dCe := clenshawComplex(t.utg[:], 2*cn, 2*ce)
	cn += dCn
	ce += dCe

	ce = math.Atan(math.Sinh(ce))
	sinCn, cosCn := math.Sin(cn), math.Cos(cn)
	sinCe, cosCe := math.Sin(ce), math.Cos(ce)
	ce = math.Atan2(sinCe, cosCe*cosCn)
	cn = math.Atan2(sinCn*cosCe, math.Hypot(sinCe, cosCe*cosCn))

	return ce, gaussToGeodetic(t.cgb[:], cn), true
}

// gaussToGeodetic evaluates the real Clenshaw sum for latitude b.
func gaussToGeodetic(p []float64, b float64) float64 {
	cos2B, sin2B := math.Cos(2*b), math.Sin(2*b)
	var h, h2 float64
	h1 := p[len(p)-1]
	for i := len(p) - 2; i >= 0; i-- {
		h = -h2 + 2*cos2B*h1 + p[i]
		h2 = h1
		h1 = h
	}
	return b + h*sin2B
}

// clenshawComplex evaluates the complex Clenshaw sum at (argR, argI) and returns its
// real and imaginary parts.
func clenshawComplex(a []float64, argR, argI float64) (float64, float64) {
	sinR, cosR := math.Sin(argR), math.Cos(argR)
	sinhI, coshI := math.Sinh(argI), math.Cosh(argI)
	r := 2 * cosR * coshI
	i := -2 * sinR * sinhI

	var hr1, hi, hi1, hr2, hi2 float64
	hr := a[len(a)-1]
	for k := len(a) - 2; k >= 0; k-- {
		hr2, hi2 = hr1, hi1
		hr1, hi1 = hr, hi
		hr = -hr2 + r*hr1 - i*hi1 + a[k]
		hi = -hi2 + i*hr1 + r*hi1
	}

	r = sinR * coshI
	i = cosR * sinhI
	return r*hr - i*hi, r*hi + i*hr
}

type utmInverse struct {
	zone  int
	north bool
}

// Transform maps easting/northing to longitude/latitude.
func (u utmInverse) Transform(x, y float64) (float64, float64, error) {
	ny := y
	if !u.north {
		ny -= utmFalseNS
	}
	lam, phi, ok := wgs84Tmerc.inverse((x-utmFalseE)*(1/wgs84A), ny*(1/wgs84A))
	if !ok {
		return 0, 0, eris.Errorf("srs: utm zone %d (%.3f, %.3f) outside the projection domain", u.zone, x, y)
	}
	lam0 := (float64(u.zone)-1+0.5)*math.Pi/30 - math.Pi
	return (lam + lam0) * radToDeg, phi * radToDeg, nil
}
