package healpix

import (
	"errors"
	"fmt"
	"math"
)

// MaxNside is the largest supported resolution. 12*MaxNside^2 still fits
// comfortably in an int64 and the bit interleaving below uses 32-bit halves.
const MaxNside = 1 << 29

// ErrInvalidNside is returned for resolutions the requested ordering cannot
// represent.
var ErrInvalidNside = errors.New("healpix: invalid nside")

// ErrInvalidPixel is returned for pixel indices outside [0, Npix(nside)).
var ErrInvalidPixel = errors.New("healpix: pixel index out of range")

const (
	halfPi   = math.Pi / 2
	twoThird = 2.0 / 3.0
)

// face layout tables: ring index (in units of nside) of each base face's
// southern vertex, and its longitude offset in units of pi/4.
var (
	jrll = [12]int64{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int64{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// Base describes one pixelization: a resolution and an ordering.
type Base struct {
	Nside  int64
	Nested bool

	npface int64
	ncap   int64
	npix   int64
	fact1  float64
	fact2  float64
}

// New returns the pixelization for nside under the requested ordering.
func New(nside int64, nested bool) (*Base, error) {
	if err := ValidateNside(nside, nested); err != nil {
		return nil, err
	}
	npix := Npix(nside)
	fact2 := 4.0 / float64(npix)
	return &Base{
		Nside:  nside,
		Nested: nested,
		npface: nside * nside,
		ncap:   2 * nside * (nside - 1),
		npix:   npix,
		fact2:  fact2,
		fact1:  float64(2*nside) * fact2,
	}, nil
}

// ValidateNside checks nside against the ordering's constraints.
func ValidateNside(nside int64, nested bool) error {
	if nside < 1 || nside > MaxNside {
		return fmt.Errorf("%w: %d (must be in [1, %d])", ErrInvalidNside, nside, MaxNside)
	}
	if nested && nside&(nside-1) != 0 {
		return fmt.Errorf("%w: %d is not a power of two (required for nested ordering)", ErrInvalidNside, nside)
	}
	return nil
}

// Npix returns the number of pixels covering the sphere at nside.
func Npix(nside int64) int64 {
	return 12 * nside * nside
}

// PixelArea returns the solid angle of one pixel in steradians.
func PixelArea(nside int64) float64 {
	return 4 * math.Pi / float64(Npix(nside))
}

// PixelLength returns the characteristic angular size of a pixel,
// sqrt(PixelArea), in radians.
func PixelLength(nside int64) float64 {
	return math.Sqrt(PixelArea(nside))
}

// Npix returns the number of pixels of b.
func (b *Base) Npix() int64 { return b.npix }

// Pix2Ang returns the colatitude theta and longitude phi (radians) of the
// centre of pixel pix.
func (b *Base) Pix2Ang(pix int64) (theta, phi float64, err error) {
	if pix < 0 || pix >= b.npix {
		return 0, 0, fmt.Errorf("%w: %d (nside=%d has %d pixels)", ErrInvalidPixel, pix, b.Nside, b.npix)
	}
	var z float64
	if b.Nested {
		z, phi = b.nestPix2Loc(pix)
	} else {
		z, phi = b.ringPix2Loc(pix)
	}
	return math.Acos(z), phi, nil
}

// Ang2Pix returns the pixel containing the direction (theta, phi). Theta is
// clamped to [0, pi]; phi may take any finite value and is wrapped.
func (b *Base) Ang2Pix(theta, phi float64) int64 {
	if theta < 0 {
		theta = 0
	} else if theta > math.Pi {
		theta = math.Pi
	}
	return b.loc2pix(math.Cos(theta), phi)
}

func (b *Base) loc2pix(z, phi float64) int64 {
	nside := b.Nside
	za := math.Abs(z)
	tt := fmodulo(phi/halfPi, 4.0) // in [0,4)

	if za <= twoThird {
		temp1 := float64(nside) * (0.5 + tt)
		temp2 := float64(nside) * z * 0.75
		jp := int64(temp1 - temp2) // ascending edge line
		jm := int64(temp1 + temp2) // descending edge line

		if !b.Nested {
			ir := nside + 1 + jp - jm // ring counted from z=2/3, in [1, 2*nside+1]
			kshift := 1 - (ir & 1)
			nl4 := 4 * nside
			t1 := jp + jm - nside + kshift + 1 + 2*nl4
			ip := (t1 >> 1) % nl4
			return b.ncap + (ir-1)*nl4 + ip
		}

		ifp := jp / nside
		ifm := jm / nside
		var face int64
		switch {
		case ifp == ifm:
			face = ifp | 4
		case ifp < ifm:
			face = ifp
		default:
			face = ifm + 8
		}
		ix := jm & (nside - 1)
		iy := nside - (jp & (nside - 1)) - 1
		return b.xyf2nest(ix, iy, face)
	}

	// polar caps
	ntt := int64(tt)
	if ntt > 3 {
		ntt = 3
	}
	tp := tt - float64(ntt)
	tmp := float64(nside) * math.Sqrt(3*(1-za))

	jp := int64(tp * tmp)
	jm := int64((1.0 - tp) * tmp)
	if jp > nside-1 {
		jp = nside - 1
	}
	if jm > nside-1 {
		jm = nside - 1
	}

	if !b.Nested {
		ir := jp + jm + 1 // ring counted from the closest pole
		ip := int64(tt * float64(ir))
		if ip >= 4*ir {
			ip = 4*ir - 1
		}
		if z > 0 {
			return 2*ir*(ir-1) + ip
		}
		return b.npix - 2*ir*(ir+1) + ip
	}

	if z > 0 {
		return b.xyf2nest(nside-jm-1, nside-jp-1, ntt)
	}
	return b.xyf2nest(jp, jm, ntt+8)
}

func (b *Base) ringPix2Loc(pix int64) (z, phi float64) {
	nside := b.Nside
	switch {
	case pix < b.ncap: // north polar cap
		iring := (1 + isqrt(1+2*pix)) >> 1
		iphi := (pix + 1) - 2*iring*(iring-1)
		z = 1 - float64(iring*iring)*b.fact2
		phi = (float64(iphi) - 0.5) * halfPi / float64(iring)
	case pix < b.npix-b.ncap: // equatorial belt
		nl4 := 4 * nside
		ip := pix - b.ncap
		tmp := ip / nl4
		iring := tmp + nside
		iphi := ip - nl4*tmp + 1
		fodd := 0.5
		if (iring+nside)&1 != 0 {
			fodd = 1
		}
		z = float64(2*nside-iring) * b.fact1
		phi = (float64(iphi) - fodd) * math.Pi * 0.75 * b.fact1
	default: // south polar cap
		ip := b.npix - pix
		iring := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))
		z = float64(iring*iring)*b.fact2 - 1
		phi = (float64(iphi) - 0.5) * halfPi / float64(iring)
	}
	return z, phi
}

func (b *Base) nestPix2Loc(pix int64) (z, phi float64) {
	nside := b.Nside
	ix, iy, face := b.nest2xyf(pix)
	jr := jrll[face]*nside - ix - iy - 1

	var nr int64
	switch {
	case jr < nside:
		nr = jr
		z = 1 - float64(nr*nr)*b.fact2
	case jr > 3*nside:
		nr = 4*nside - jr
		z = float64(nr*nr)*b.fact2 - 1
	default:
		nr = nside
		z = float64(2*nside-jr) * b.fact1
	}

	tmp := jpll[face]*nr + ix - iy
	if tmp < 0 {
		tmp += 8 * nr
	}
	if nr == nside {
		phi = 0.75 * halfPi * float64(tmp) * b.fact1
	} else {
		phi = (0.5 * halfPi * float64(tmp)) / float64(nr)
	}
	return z, phi
}

func (b *Base) xyf2nest(ix, iy, face int64) int64 {
	return face*b.npface + spreadBits(ix) + (spreadBits(iy) << 1)
}

func (b *Base) nest2xyf(pix int64) (ix, iy, face int64) {
	face = pix / b.npface
	pix &= b.npface - 1
	return compressBits(pix), compressBits(pix >> 1), face
}

// spreadBits interleaves the low 32 bits of v with zeros: bit i moves to 2i.
func spreadBits(v int64) int64 {
	x := uint64(v) & 0xffffffff
	x = (x | (x << 16)) & 0x0000ffff0000ffff
	x = (x | (x << 8)) & 0x00ff00ff00ff00ff
	x = (x | (x << 4)) & 0x0f0f0f0f0f0f0f0f
	x = (x | (x << 2)) & 0x3333333333333333
	x = (x | (x << 1)) & 0x5555555555555555
	return int64(x)
}

// compressBits is the inverse of spreadBits: it gathers the even bits of v.
func compressBits(v int64) int64 {
	x := uint64(v) & 0x5555555555555555
	x = (x | (x >> 1)) & 0x3333333333333333
	x = (x | (x >> 2)) & 0x0f0f0f0f0f0f0f0f
	x = (x | (x >> 4)) & 0x00ff00ff00ff00ff
	x = (x | (x >> 8)) & 0x0000ffff0000ffff
	x = (x | (x >> 16)) & 0x00000000ffffffff
	return int64(x)
}

func isqrt(v int64) int64 {
	r := int64(math.Sqrt(float64(v) + 0.5))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}

func fmodulo(v, m float64) float64 {
	if v >= 0 {
		if v < m {
			return v
		}
		return math.Mod(v, m)
	}
	r := math.Mod(v, m) + m
	if r == m {
		return 0
	}
	return r
}
