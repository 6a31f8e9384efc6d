package bayestar

import "fmt"

// NBands is the number of photometric passbands per star.
const NBands = 5

// Defaults written into the pixel header of every request.
const (
	DefaultHealpixIndex = 1
	DefaultNside        = 512
	DefaultNested       = true
)

// StarRecord is one star of the input photometry table.
type StarRecord struct {
	ObjID    uint64         `json:"obj_id"`
	L        float64        `json:"l"`
	B        float64        `json:"b"`
	Mag      Photometry     `json:"mag"`
	Err      Photometry     `json:"err"`
	MagLimit Photometry     `json:"maglimit"`
	NDet     [NBands]uint32 `json:"nDet"`
	EBV      float32        `json:"EBV"`
}

// TrueParams records the generating parameters of a simulated star.
type TrueParams struct {
	ObjID uint64  `json:"obj_id"`
	L     float64 `json:"l"`
	B     float64 `json:"b"`
	DM    float32 `json:"DM"`
	EBV   float32 `json:"EBV"`
	Mr    float32 `json:"Mr"`
	FeH   float32 `json:"FeH"`
}

// PixelInfo is the header attached to the photometry table.
type PixelInfo struct {
	HealpixIndex uint64  `json:"healpix_index"`
	Nested       bool    `json:"nested"`
	Nside        uint32  `json:"nside"`
	L            float64 `json:"l"`
	B            float64 `json:"b"`
	EBV          float64 `json:"EBV"`
}

// Request is a batch of stars sharing one line of sight.
type Request struct {
	Pixel      PixelInfo    `json:"pixel"`
	Stars      []StarRecord `json:"photometry"`
	Parameters []TrueParams `json:"parameters,omitempty"`
}

// NewRequest builds a request for len(mag) stars at (l, b). err must match
// mag in length; maglimit may hold a single entry shared by every star.
// Each star gets ObjID equal to its index, one detection per band and
// ebvGuess as its starting E(B-V).
func NewRequest(mag, err, maglimit []Photometry, l, b float64, ebvGuess float32) (*Request, error) {
	n := len(mag)
	if len(err) != n {
		return nil, fmt.Errorf("got %d uncertainty rows for %d stars", len(err), n)
	}
	if len(maglimit) != 1 && len(maglimit) != n {
		return nil, fmt.Errorf("got %d magnitude limit rows for %d stars (expected 1 or %d)", len(maglimit), n, n)
	}

	req := &Request{
		Pixel: PixelInfo{
			HealpixIndex: DefaultHealpixIndex,
			Nested:       DefaultNested,
			Nside:        DefaultNside,
			L:            l,
			B:            b,
		},
		Stars: make([]StarRecord, n),
	}
	for i := range req.Stars {
		limit := maglimit[0]
		if len(maglimit) == n {
			limit = maglimit[i]
		}
		s := StarRecord{
			ObjID:    uint64(i),
			L:        l,
			B:        b,
			Mag:      mag[i],
			Err:      err[i],
			MagLimit: limit,
			EBV:      ebvGuess,
		}
		for k := range s.NDet {
			s.NDet[k] = 1
		}
		req.Stars[i] = s
	}
	return req, nil
}

// AddTrueParams attaches simulated parameters, one per star, keyed by the
// same ObjID as the photometry.
func (r *Request) AddTrueParams(dm, ebv, mr, feh []float32) error {
	n := len(dm)
	if len(ebv) != n || len(mr) != n || len(feh) != n {
		return fmt.Errorf("parameter columns differ in length: DM=%d EBV=%d Mr=%d FeH=%d", n, len(ebv), len(mr), len(feh))
	}
	r.Parameters = make([]TrueParams, n)
	for i := range r.Parameters {
		r.Parameters[i] = TrueParams{
			ObjID: uint64(i),
			L:     r.Pixel.L,
			B:     r.Pixel.B,
			DM:    dm[i],
			EBV:   ebv[i],
			Mr:    mr[i],
			FeH:   feh[i],
		}
	}
	return nil
}
