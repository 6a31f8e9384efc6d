package extinction

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dustmap/internal/clouds"
)

// DefaultBands are the percentile bands drawn around the mean profile.
var DefaultBands = []float64{5, 25, 75, 95}

// Profile is extinction as a function of distance modulus, summarised over
// every (pixel, sample) pair.
type Profile struct {
	Mu          []float64   `json:"mu"`
	Mean        []float64   `json:"mean"`
	Percentiles []float64   `json:"percentiles"`
	Bands       [][]float64 `json:"bands"` // Bands[i][k] is Percentiles[i] at Mu[k]
}

// DistanceProfile evaluates the model at steps evenly spaced distance moduli
// in [muMin, muMax].
func DistanceProfile(p *clouds.Profiles, muMin, muMax float64, steps int, percentiles []float64) (*Profile, error) {
	if steps < 2 {
		return nil, fmt.Errorf("distance profile needs at least 2 steps, got %d", steps)
	}
	if !(muMax > muMin) {
		return nil, fmt.Errorf("distance profile range [%v, %v] is empty", muMin, muMax)
	}
	q := Percentiles{P: percentiles}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	out := &Profile{
		Mu:          floats.Span(make([]float64, steps), muMin, muMax),
		Mean:        make([]float64, steps),
		Percentiles: append([]float64(nil), percentiles...),
		Bands:       make([][]float64, len(percentiles)),
	}
	for i := range out.Bands {
		out.Bands[i] = make([]float64, steps)
	}

	bands := make([]float64, len(percentiles))
	for k, mu := range out.Mu {
		m, err := Total(p, mu)
		if err != nil {
			return nil, err
		}
		all := Flatten(m)
		out.Mean[k] = stat.Mean(all, nil)
		q.ReduceRow(bands, all)
		for i, v := range bands {
			out.Bands[i][k] = v
		}
	}
	return out, nil
}
