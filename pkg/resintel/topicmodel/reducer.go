package topicmodel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// PCA is a fitted linear projection: (X - Mean) * Components.
type PCA struct {
	Mean       []float64   `yaml:"mean"`
	Components [][]float64 `yaml:"components"` // d rows, k columns
}

// Dims returns the input and output widths.
func (p *PCA) Dims() (in, out int) {
	if p == nil || len(p.Components) == 0 {
		return 0, 0
	}
	return len(p.Components), len(p.Components[0])
}

// Transform projects X. The width of X must match the fitted input width.
func (p *PCA) Transform(X *mat.Dense) (*mat.Dense, error) {
	in, out := p.Dims()
	if in == 0 || out == 0 {
		return nil, fmt.Errorf("%w: reducer has no components", internalerr.ErrModelUnavailable)
	}
	n, d := X.Dims()
	if d != in || len(p.Mean) != in {
		return nil, fmt.Errorf("%w: reducer expects width %d, embeddings have %d",
			internalerr.ErrModelUnavailable, in, d)
	}

	centered := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		src := X.RawRowView(i)
		dst := centered.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] - p.Mean[j]
		}
	}
	W := mat.NewDense(in, out, nil)
	for i, row := range p.Components {
		if len(row) != out {
			return nil, fmt.Errorf("%w: ragged reducer components", internalerr.ErrModelUnavailable)
		}
		W.SetRow(i, row)
	}

	var Y mat.Dense
	Y.Mul(centered, W)
	return &Y, nil
}

// FitPCA fits k principal components to the rows of X.
func FitPCA(X *mat.Dense, k int) (*PCA, error) {
	n, d := X.Dims()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows to fit a reducer", internalerr.ErrInsufficientData)
	}
	if k <= 0 || k > min(n, d) {
		return nil, fmt.Errorf("%w: %d components for a %dx%d matrix", internalerr.ErrInvalidInput, k, n, d)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return nil, fmt.Errorf("%w: principal component decomposition failed", internalerr.ErrModelUnavailable)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}
	components := make([][]float64, d)
	for i := 0; i < d; i++ {
		components[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			components[i][j] = vecs.At(i, j)
		}
	}
	return &PCA{Mean: mean, Components: components}, nil
}
