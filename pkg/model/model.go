package model

import "context"

// Classifier is a supervised model over integer class labels.
type Classifier interface {
	FitContext(ctx context.Context, X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) [][]float64 // columns follow Classes()
	Classes() []int
}

// Clusterer is for unsupervised clustering.
type Clusterer interface {
	FitContext(ctx context.Context, X [][]float64) error
	Predict(X [][]float64) ([]int, error) // cluster assignments
}

// Transformer is for preprocessing steps (fit on train, transform both).
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
	FitTransform(X [][]float64) ([][]float64, error)
}

var (
	_ Classifier  = (*DecisionTreeClassifier)(nil)
	_ Classifier  = (*MLPClassifier)(nil)
	_ Clusterer   = (*KMeans)(nil)
	_ Transformer = (*PCA)(nil)
)
