package colour

import "math"

// 25^7, used by the chroma compensation terms.
const pow25To7 = 6103515625.0

// Distance returns the CIEDE2000 colour difference between two Lab colours
// with unit weighting factors (kL = kC = kH = 1).
//
// The result is symmetric, non-negative and zero for identical inputs.
// https://www.ece.rochester.edu/~gsharma/ciede2000/ciede2000noteCRNA.pdf
func Distance(x, y Lab) float64 {
	// Chroma compensation of the a* axis.
	c1 := math.Hypot(x.A, x.B)
	c2 := math.Hypot(y.A, y.B)
	cBar7 := math.Pow((c1+c2)/2.0, 7)
	g := 0.5 * (1.0 - math.Sqrt(cBar7/(cBar7+pow25To7)))

	a1 := (1.0 + g) * x.A
	a2 := (1.0 + g) * y.A
	c1p := math.Hypot(a1, x.B)
	c2p := math.Hypot(a2, y.B)
	h1p := hueAngle(a1, x.B)
	h2p := hueAngle(a2, y.B)

	dL := y.L - x.L
	dC := c2p - c1p

	// Hue difference, wrapped into [-180, 180].
	chromaProduct := c1p * c2p
	var dh float64
	switch {
	case chromaProduct == 0:
		dh = 0
	case math.Abs(h2p-h1p) <= 180:
		dh = h2p - h1p
	case h2p-h1p > 180:
		dh = h2p - h1p - 360
	default:
		dh = h2p - h1p + 360
	}
	dH := 2.0 * math.Sqrt(chromaProduct) * math.Sin(radians(dh/2.0))

	lBar := (x.L + y.L) / 2.0
	cBar := (c1p + c2p) / 2.0

	var hBar float64
	switch {
	case chromaProduct == 0:
		hBar = h1p + h2p
	case math.Abs(h1p-h2p) <= 180:
		hBar = (h1p + h2p) / 2.0
	case h1p+h2p < 360:
		hBar = (h1p + h2p + 360) / 2.0
	default:
		hBar = (h1p + h2p - 360) / 2.0
	}

	t := 1.0 -
		0.17*math.Cos(radians(hBar-30)) +
		0.24*math.Cos(radians(2*hBar)) +
		0.32*math.Cos(radians(3*hBar+6)) -
		0.20*math.Cos(radians(4*hBar-63))

	lBar50 := (lBar - 50) * (lBar - 50)
	sL := 1.0 + 0.015*lBar50/math.Sqrt(20+lBar50)
	sC := 1.0 + 0.045*cBar
	sH := 1.0 + 0.015*cBar*t

	// Rotation term for the blue region.
	dTheta := 30.0 * math.Exp(-((hBar-275)/25)*((hBar-275)/25))
	cBarp7 := math.Pow(cBar, 7)
	rC := 2.0 * math.Sqrt(cBarp7/(cBarp7+pow25To7))
	rT := -math.Sin(radians(2*dTheta)) * rC

	lTerm := dL / sL
	cTerm := dC / sC
	hTerm := dH / sH

	return math.Sqrt(lTerm*lTerm + cTerm*cTerm + hTerm*hTerm + rT*cTerm*hTerm)
}

// DistanceRGB returns the CIEDE2000 difference between two sRGB colours.
func DistanceRGB(a, b RGB) float64 {
	return Distance(a.Lab(), b.Lab())
}

// hueAngle returns atan2(b, a) in degrees normalised to [0, 360).
func hueAngle(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	h := math.Atan2(b, a) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
