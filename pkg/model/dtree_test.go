package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlviz/pkg/model"
)

func separable() ([][]float64, []int) {
	X := [][]float64{
		{0.1, 5.5}, {0.4, 4.2}, {0.35, 6.1}, {0.2, 5.0},
		{2.1, 5.2}, {2.6, 4.9}, {2.3, 6.3}, {2.9, 5.7},
	}
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}
	return X, y
}

func TestDecisionTree_FitsSeparableData(t *testing.T) {
	X, y := separable()
	tree := model.NewDecisionTreeClassifier(model.WithRandomState(1))

	require.NoError(t, tree.Fit(X, y))

	assert.Equal(t, y, tree.Predict(X))
	assert.Equal(t, []int{0, 1}, tree.Classes())
	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 2, tree.NumLeaves())

	root := tree.Export()
	require.NotNil(t, root)
	assert.False(t, root.Leaf)
	assert.Equal(t, 0, root.Feature)
	assert.Equal(t, len(X), root.Samples)
	assert.Equal(t, []int{4, 4}, root.Value)
	assert.True(t, root.Left.Leaf)
	assert.Equal(t, 0, root.Left.Class)
	assert.Equal(t, 1, root.Right.Class)
}

func TestDecisionTree_PredictProba(t *testing.T) {
	X, y := separable()
	tree := model.NewDecisionTreeClassifier()
	require.NoError(t, tree.Fit(X, y))

	for _, p := range tree.PredictProba(X) {
		require.Len(t, p, 2)
		assert.InDelta(t, 1.0, p[0]+p[1], 1e-12)
	}
}

func TestDecisionTree_MaxDepth(t *testing.T) {
	// x0 > 0.5 && x1 > 0.5 needs two levels
	X := [][]float64{{0.1, 0.1}, {0.1, 0.9}, {0.9, 0.1}, {0.9, 0.9}, {0.2, 0.2}, {0.2, 0.8}, {0.8, 0.2}, {0.8, 0.8}}
	y := []int{0, 0, 0, 1, 0, 0, 0, 1}

	shallow := model.NewDecisionTreeClassifier(model.WithMaxDepth(1))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.Depth(), 1)

	deep := model.NewDecisionTreeClassifier()
	require.NoError(t, deep.Fit(X, y))
	assert.Equal(t, 2, deep.Depth())
	assert.Equal(t, 1.0, model.Accuracy(y, deep.Predict(X)))
}

func TestDecisionTree_FitErrors(t *testing.T) {
	tree := model.NewDecisionTreeClassifier()

	assert.Error(t, tree.Fit(nil, nil))
	assert.Error(t, tree.Fit([][]float64{{1}, {2}}, []int{0}))
	assert.Error(t, tree.Fit([][]float64{{1, 2}, {2}}, []int{0, 1}))
}

func TestDecisionTree_MarshalBinary(t *testing.T) {
	X, y := separable()
	tree := model.NewDecisionTreeClassifier(model.WithCriterion("entropy"))
	require.NoError(t, tree.Fit(X, y))

	blob, err := tree.MarshalBinary()
	require.NoError(t, err)

	restored := model.NewDecisionTreeClassifier()
	require.NoError(t, restored.UnmarshalBinary(blob))

	assert.Equal(t, tree.Predict(X), restored.Predict(X))
	assert.Equal(t, tree.Export(), restored.Export())
}

func TestDecisionTree_PruneReducedError(t *testing.T) {
	X, y := separable()
	// one mislabeled point forces an extra split that validation does not support
	X = append(X, []float64{0.3, 9.0})
	y = append(y, 1)

	tree := model.NewDecisionTreeClassifier()
	require.NoError(t, tree.Fit(X, y))
	leavesBefore := tree.NumLeaves()

	Xval := [][]float64{{0.25, 8.5}, {0.15, 4.0}, {2.5, 8.0}, {2.2, 4.5}}
	yval := []int{0, 0, 1, 1}
	before := model.Accuracy(yval, tree.Predict(Xval))

	pruned, err := tree.PruneReducedError(Xval, yval)
	require.NoError(t, err)

	assert.Positive(t, pruned)
	assert.Less(t, tree.NumLeaves(), leavesBefore)
	assert.GreaterOrEqual(t, model.Accuracy(yval, tree.Predict(Xval)), before)
}

func TestDecisionTree_PruneUnfitted(t *testing.T) {
	_, err := model.NewDecisionTreeClassifier().PruneReducedError([][]float64{{1}}, []int{0})
	assert.Error(t, err)
}
