package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mlviz/pkg/stats"
)

func TestMinMax(t *testing.T) {
	lo, hi := stats.MinMax([]float64{3, -1, 7, 2})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 7.0, hi)

	lo, hi = stats.MinMax(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestColumnMeans(t *testing.T) {
	assert.Equal(t, []float64{2, 5}, stats.ColumnMeans([][]float64{{1, 4}, {3, 6}}))
	assert.Nil(t, stats.ColumnMeans(nil))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, stats.Argmax([]float64{0.1, 0.3, 0.6}))
	assert.Equal(t, 0, stats.Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, 6.0, stats.Sum([]float64{1, 2, 3}))
}
