package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAxisGrid(t *testing.T) {
	small := axisGrid([]float64{0, 1})
	assert.InDelta(t, -1, small[0], 1e-12)
	assert.InDelta(t, 0.02, small[1]-small[0], 1e-12)
	assert.LessOrEqual(t, small[len(small)-1], 2.0+1e-9)

	wide := axisGrid([]float64{-100, 100})
	assert.LessOrEqual(t, len(wide), maxGridCells+1)
	assert.InDelta(t, 1.01, wide[1]-wide[0], 1e-9)
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "[[ 5  1]\n [ 0 12]]", formatCounts([][]int{{5, 1}, {0, 12}}))
}
