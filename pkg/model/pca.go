package model

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"mlviz/pkg/core"
	"mlviz/pkg/stats"
)

// PCA projects data onto its top K principal components, computed by SVD.
type PCA struct {
	K          int
	Means      []float64
	Components [][]float64 // K x p, each a unit vector
	Explained  []float64   // variance along each component
	TotalVar   float64     // variance of the centered data over all directions
}

// NewPCA creates and returns a new PCA model.
func NewPCA(k int) *PCA {
	return &PCA{K: k}
}

// Fit computes the principal directions of X. When X has fewer than K
// features the missing components stay zero vectors.
func (pca *PCA) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("input data cannot be empty")
	}
	if pca.K < 1 {
		return errors.New("number of components must be at least 1")
	}
	n, d := len(X), len(X[0])
	if d == 0 {
		return errors.New("input data has no features")
	}

	pca.Means = stats.ColumnMeans(X)
	pca.Components = make([][]float64, pca.K)
	pca.Explained = make([]float64, pca.K)
	for k := range pca.Components {
		pca.Components[k] = make([]float64, d)
	}
	if n < 2 {
		return nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(center(X, pca.Means), nil); !ok {
		return errors.New("pca: singular value decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)
	pca.TotalVar = stats.Sum(vars)

	_, nc := vecs.Dims()
	for k := 0; k < pca.K && k < nc; k++ {
		mat.Col(pca.Components[k], k, &vecs)
		pca.Explained[k] = vars[k]
	}
	return nil
}

// Transform projects X onto the fitted components.
func (pca *PCA) Transform(X [][]float64) ([][]float64, error) {
	if len(X) == 0 {
		return nil, errors.New("input data cannot be empty")
	}
	if len(X[0]) != len(pca.Means) {
		return nil, errors.New("feature count mismatch between input and training data")
	}

	comps := core.FromRows(pca.Components)
	var proj mat.Dense
	proj.Mul(center(X, pca.Means), comps.T())
	return core.ToRows(&proj), nil
}

// FitTransform fits on X and returns its projection.
func (pca *PCA) FitTransform(X [][]float64) ([][]float64, error) {
	if err := pca.Fit(X); err != nil {
		return nil, err
	}
	return pca.Transform(X)
}

// ExplainedVarianceRatio returns each component's share of the total variance.
func (pca *PCA) ExplainedVarianceRatio() []float64 {
	out := make([]float64, len(pca.Explained))
	if pca.TotalVar == 0 {
		return out
	}
	for i, v := range pca.Explained {
		out[i] = v / pca.TotalVar
	}
	return out
}

func center(X [][]float64, means []float64) *mat.Dense {
	m := core.FromRows(X)
	r, _ := m.Dims()
	for i := range r {
		row := m.RawRowView(i)
		for j := range row {
			row[j] -= means[j]
		}
	}
	return m
}
