package healpix

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNside(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		nside  int64
		nested bool
		ok     bool
	}{
		{"ring one", 1, false, true},
		{"ring odd", 3, false, true},
		{"nested power of two", 512, true, true},
		{"nested not power of two", 3, true, false},
		{"zero", 0, false, false},
		{"negative", -4, true, false},
		{"too large", MaxNside * 2, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNside(tc.nside, tc.nested)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidNside), "got %v", err)
			}
		})
	}
}

func TestPixelAreaCoversSphere(t *testing.T) {
	t.Parallel()
	for _, nside := range []int64{1, 2, 4, 64, 512} {
		total := PixelArea(nside) * float64(Npix(nside))
		assert.InDelta(t, 4*math.Pi, total, 1e-9, "nside=%d", nside)
		assert.InDelta(t, math.Sqrt(PixelArea(nside)), PixelLength(nside), 1e-15)
	}
}

func TestRoundTripAllPixels(t *testing.T) {
	t.Parallel()
	for _, nested := range []bool{false, true} {
		for _, nside := range []int64{1, 2, 4, 8, 16} {
			b, err := New(nside, nested)
			require.NoError(t, err)
			for pix := int64(0); pix < b.Npix(); pix++ {
				theta, phi, err := b.Pix2Ang(pix)
				require.NoError(t, err)
				require.GreaterOrEqual(t, theta, 0.0)
				require.LessOrEqual(t, theta, math.Pi)
				got := b.Ang2Pix(theta, phi)
				require.Equal(t, pix, got, "nside=%d nested=%v", nside, nested)
			}
		}
	}
}

func TestRoundTripRingOddNside(t *testing.T) {
	t.Parallel()
	b, err := New(5, false)
	require.NoError(t, err)
	for pix := int64(0); pix < b.Npix(); pix++ {
		theta, phi, err := b.Pix2Ang(pix)
		require.NoError(t, err)
		assert.Equal(t, pix, b.Ang2Pix(theta, phi))
	}
}

func TestKnownCenters(t *testing.T) {
	t.Parallel()

	ring, err := New(1, false)
	require.NoError(t, err)
	// nside=1: four pixels per ring at z = 2/3, 0, -2/3.
	theta, phi, err := ring.Pix2Ang(0)
	require.NoError(t, err)
	assert.InDelta(t, math.Acos(2.0/3.0), theta, 1e-12)
	assert.InDelta(t, math.Pi/4, phi, 1e-12)

	theta, phi, err = ring.Pix2Ang(4)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, theta, 1e-12)
	assert.InDelta(t, 0.0, phi, 1e-12)

	// nested face 4 is the equatorial face centred on phi=0.
	nest, err := New(1, true)
	require.NoError(t, err)
	theta, phi, err = nest.Pix2Ang(4)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, theta, 1e-12)
	assert.InDelta(t, 0.0, phi, 1e-12)
}

func TestNestedRingAgreeOnDirections(t *testing.T) {
	t.Parallel()
	ring, err := New(8, false)
	require.NoError(t, err)
	nest, err := New(8, true)
	require.NoError(t, err)

	// Every nested pixel centre must land in some ring pixel whose own centre
	// is the same direction.
	for pix := int64(0); pix < nest.Npix(); pix++ {
		theta, phi, err := nest.Pix2Ang(pix)
		require.NoError(t, err)
		rp := ring.Ang2Pix(theta, phi)
		rt, rph, err := ring.Pix2Ang(rp)
		require.NoError(t, err)
		assert.InDelta(t, theta, rt, 1e-9)
		assert.InDelta(t, math.Cos(phi), math.Cos(rph), 1e-9)
		assert.InDelta(t, math.Sin(phi), math.Sin(rph), 1e-9)
	}
}

func TestAng2PixWrapsLongitude(t *testing.T) {
	t.Parallel()
	b, err := New(16, true)
	require.NoError(t, err)
	theta := 1.1
	assert.Equal(t, b.Ang2Pix(theta, 0.3), b.Ang2Pix(theta, 0.3+2*math.Pi))
	assert.Equal(t, b.Ang2Pix(theta, 0.3), b.Ang2Pix(theta, 0.3-2*math.Pi))
	assert.Equal(t, b.Ang2Pix(0, 0), b.Ang2Pix(-0.1, 0))
}

func TestPix2AngOutOfRange(t *testing.T) {
	t.Parallel()
	b, err := New(4, true)
	require.NoError(t, err)
	_, _, err = b.Pix2Ang(-1)
	assert.True(t, errors.Is(err, ErrInvalidPixel))
	_, _, err = b.Pix2Ang(b.Npix())
	assert.True(t, errors.Is(err, ErrInvalidPixel))
}

func TestBitInterleave(t *testing.T) {
	t.Parallel()
	for _, v := range []int64{0, 1, 2, 3, 5, 255, 1023, 1<<29 - 1} {
		assert.Equal(t, v, compressBits(spreadBits(v)))
	}
	assert.Equal(t, int64(0b1010), spreadBits(0b11)<<1)
	assert.Equal(t, int64(0b0101), spreadBits(0b11))
}

func TestGalacticConversions(t *testing.T) {
	t.Parallel()
	l, b := AngToGalactic(math.Pi/2, math.Pi)
	assert.InDelta(t, 180.0, l, 1e-12)
	assert.InDelta(t, 0.0, b, 1e-12)

	theta, phi := GalacticToAng(90, 30)
	assert.InDelta(t, math.Pi/3, theta, 1e-12)
	assert.InDelta(t, math.Pi/2, phi, 1e-12)

	base, err := New(32, true)
	require.NoError(t, err)
	pl, pb, err := base.PixelCenter(1234)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), base.GalacticToPix(pl, pb))
}
