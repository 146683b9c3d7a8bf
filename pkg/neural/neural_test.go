package neural_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlviz/pkg/neural"
)

func TestSoftmaxInPlace(t *testing.T) {
	row := []float64{1000, 1000, 1000}
	neural.SoftmaxInPlace(row)

	for _, p := range row {
		assert.InDelta(t, 1.0/3.0, p, 1e-12)
	}

	row = []float64{0, math.Log(3)}
	neural.SoftmaxInPlace(row)
	assert.InDelta(t, 0.25, row[0], 1e-12)
	assert.InDelta(t, 0.75, row[1], 1e-12)
}

func TestCrossEntropy(t *testing.T) {
	loss := neural.CrossEntropy([]int{0, 1}, [][]float64{{0.5, 0.5}, {0.25, 0.75}})

	assert.InDelta(t, -(math.Log(0.5)+math.Log(0.75))/2, loss, 1e-12)
	assert.Equal(t, 0.0, neural.CrossEntropy(nil, nil))
	assert.False(t, math.IsInf(neural.CrossEntropy([]int{0}, [][]float64{{0, 1}}), 0))
}

func TestL2Penalty(t *testing.T) {
	assert.InDelta(t, 0.5*0.1*14/2, neural.L2Penalty(0.1, 2, []float64{1, 2}, []float64{3}), 1e-12)
}

func TestActivationByName(t *testing.T) {
	tests := []struct {
		name  string
		x     float64
		want  float64
		deriv float64
	}{
		{"relu", -1, 0, 0},
		{"", 2, 2, 1},
		{"logistic", 0, 0.5, 0.25},
		{"tanh", 0, 0, 1},
		{"identity", -3, -3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := neural.ActivationByName(tt.name)
			require.NoError(t, err)
			a := act.F(tt.x)
			assert.InDelta(t, tt.want, a, 1e-12)
			assert.InDelta(t, tt.deriv, act.DerivFromOutput(a), 1e-12)
		})
	}

	_, err := neural.ActivationByName("swish")
	assert.Error(t, err)
}
