package healpix

import "math"

const (
	degPerRad = 180.0 / math.Pi
	radPerDeg = math.Pi / 180.0
)

// AngToGalactic converts a (theta, phi) direction in radians to galactic
// longitude l and latitude b in degrees: l = phi, b = 90 - theta.
func AngToGalactic(theta, phi float64) (l, b float64) {
	return degPerRad * phi, 90.0 - degPerRad*theta
}

// GalacticToAng is the inverse of AngToGalactic.
func GalacticToAng(l, b float64) (theta, phi float64) {
	return radPerDeg * (90.0 - b), radPerDeg * l
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * degPerRad }

// PixelCenter returns the galactic coordinates (degrees) of pix's centre.
func (b *Base) PixelCenter(pix int64) (l, lat float64, err error) {
	theta, phi, err := b.Pix2Ang(pix)
	if err != nil {
		return 0, 0, err
	}
	l, lat = AngToGalactic(theta, phi)
	return l, lat, nil
}

// GalacticToPix returns the pixel containing galactic (l, b) in degrees.
func (b *Base) GalacticToPix(l, lat float64) int64 {
	theta, phi := GalacticToAng(l, lat)
	return b.Ang2Pix(theta, phi)
}
