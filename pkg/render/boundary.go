package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"mlviz/pkg/dataprep"
	"mlviz/pkg/stats"
)

const (
	maxGridCells = 200
	minGridStep  = 0.02
	gridPadding  = 1.0
)

// Predictor labels rows of a feature matrix.
type Predictor func(X [][]float64) []int

type classPalette []color.Color

func (p classPalette) Colors() []color.Color { return p }

// boundaryGrid holds predicted class codes on a regular lattice; z[r][c]
// is the class at (xs[c], ys[r]).
type boundaryGrid struct {
	xs, ys []float64
	z      [][]int
}

func (g boundaryGrid) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g boundaryGrid) Z(c, r int) float64 { return float64(g.z[r][c]) }
func (g boundaryGrid) X(c int) float64    { return g.xs[c] }
func (g boundaryGrid) Y(r int) float64    { return g.ys[r] }

// DecisionBoundary shades the regions predict assigns to each class over the
// span of the two columns of X and overlays the training points.
func DecisionBoundary(predict Predictor, X [][]float64, y []int, features, classes []string, title, path string) error {
	if len(X) == 0 || len(X[0]) != 2 {
		return fmt.Errorf("decision boundary: need a non-empty matrix with 2 features")
	}
	xs := axisGrid(dataprep.Column(X, 0))
	ys := axisGrid(dataprep.Column(X, 1))

	lattice := make([][]float64, 0, len(xs)*len(ys))
	for _, yv := range ys {
		for _, xv := range xs {
			lattice = append(lattice, []float64{xv, yv})
		}
	}
	pred := predict(lattice)
	grid := boundaryGrid{xs: xs, ys: ys, z: make([][]int, len(ys))}
	for r := range ys {
		grid.z[r] = pred[r*len(xs) : (r+1)*len(xs)]
	}

	k := len(classes)
	for _, c := range y {
		k = max(k, c+1)
	}
	k = max(k, 2)
	pal := make(classPalette, k)
	for i := range pal {
		pal[i] = lighten(plotutil.Color(i), 0.6)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = nameAt(features, 0)
	p.Y.Label.Text = nameAt(features, 1)

	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = 0, float64(k-1)
	p.Add(hm)

	for c := range k {
		pts := make(plotter.XYs, 0)
		for i, label := range y {
			if label == c {
				pts = append(pts, plotter.XY{X: X[i][0], Y: X[i][1]})
			}
		}
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("decision boundary: %w", err)
		}
		s.Color = plotutil.Color(c)
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(className(classes, c), s)
	}

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("decision boundary: %w", err)
	}
	return nil
}

// axisGrid spans the values padded on both sides, at most maxGridCells
// points with a step of at least minGridStep.
func axisGrid(vals []float64) []float64 {
	lo, hi := stats.MinMax(vals)
	lo, hi = lo-gridPadding, hi+gridPadding
	step := math.Max(minGridStep, (hi-lo)/maxGridCells)
	n := int(math.Floor((hi-lo)/step)) + 1
	out := make([]float64, 0, n)
	for i := range n {
		out = append(out, lo+float64(i)*step)
	}
	return out
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("Feature %d", i+1)
}

func lighten(c color.Color, amount float64) color.Color {
	r, g, b, _ := c.RGBA()
	mix := func(v uint32) uint8 {
		f := float64(v>>8)/255*(1-amount) + amount
		return uint8(math.Round(f * 255))
	}
	return color.RGBA{R: mix(r), G: mix(g), B: mix(b), A: 255}
}
