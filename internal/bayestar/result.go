package bayestar

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Chain parameter columns, after the leading ln(p) column is split off.
const (
	ParamEBV = iota
	ParamDM
	ParamMr
	ParamFeH
)

// Result is the decoded program output for one request.
type Result struct {
	// Bounds is (DM_min, DM_max, EBV_min, EBV_max) for every surface.
	Bounds [4]float64 `json:"bounds"`
	// Surfaces[i] is star i's (DM, E(B-V)) probability surface.
	Surfaces  [][][]float64 `json:"surfaces"`
	Converged []bool        `json:"converged"`
	LnZ       []float64     `json:"ln_z"`
	// Chains[i][step] holds EBV, DM, Mr, FeH.
	Chains [][][]float64 `json:"chains"`
	LnP    [][]float64   `json:"ln_p"`
	Log    string        `json:"log,omitempty"`
}

// Stars returns the number of stars in the result.
func (r *Result) Stars() int { return len(r.Surfaces) }

// output is the program's output document.
type output struct {
	PDFs struct {
		Min      [2]float64    `json:"min"`
		Max      [2]float64    `json:"max"`
		Surfaces [][][]float64 `json:"surfaces"`
	} `json:"stellar_pdfs"`
	Chains struct {
		Converged []bool      `json:"converged"`
		LnZ       []Float     `json:"ln_z"`
		Samples   [][][]Float `json:"samples"`
	} `json:"stellar_chains"`
}

// result splits each chain sample into its ln(p) column and parameters.
func (o *output) result() (*Result, error) {
	n := len(o.PDFs.Surfaces)
	if len(o.Chains.Samples) != n || len(o.Chains.Converged) != n || len(o.Chains.LnZ) != n {
		return nil, fmt.Errorf("output covers %d surfaces, %d chains, %d convergence flags and %d evidences",
			n, len(o.Chains.Samples), len(o.Chains.Converged), len(o.Chains.LnZ))
	}
	res := &Result{
		Bounds:    [4]float64{o.PDFs.Min[0], o.PDFs.Max[0], o.PDFs.Min[1], o.PDFs.Max[1]},
		Surfaces:  o.PDFs.Surfaces,
		Converged: o.Chains.Converged,
		LnZ:       make([]float64, n),
		Chains:    make([][][]float64, n),
		LnP:       make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		res.LnZ[i] = float64(o.Chains.LnZ[i])
		steps := o.Chains.Samples[i]
		res.Chains[i] = make([][]float64, len(steps))
		res.LnP[i] = make([]float64, len(steps))
		for k, sample := range steps {
			if len(sample) < 2 {
				return nil, fmt.Errorf("star %d step %d has %d columns, expected ln(p) and parameters", i, k, len(sample))
			}
			res.LnP[i][k] = float64(sample[0])
			params := make([]float64, len(sample)-1)
			for j, v := range sample[1:] {
				params[j] = float64(v)
			}
			res.Chains[i][k] = params
		}
	}
	return res, nil
}

// SummarizeChain returns the mean and population standard deviation of
// one parameter across a chain.
func SummarizeChain(chain [][]float64, param int) (mean, std float64, err error) {
	if len(chain) == 0 {
		return 0, 0, fmt.Errorf("empty chain")
	}
	col := make([]float64, len(chain))
	for k, sample := range chain {
		if param < 0 || param >= len(sample) {
			return 0, 0, fmt.Errorf("step %d has no parameter %d", k, param)
		}
		col[k] = sample[param]
	}
	mean, std = stat.PopMeanStdDev(col, nil)
	return mean, std, nil
}
