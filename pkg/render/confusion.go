package render

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg/draw"
)

// cmGrid lays a confusion matrix out as a heat map grid: column c is the
// predicted class, row r counts from the bottom so true class 0 is on top.
type cmGrid struct{ cm [][]int }

func (g cmGrid) Dims() (c, r int)   { return len(g.cm), len(g.cm) }
func (g cmGrid) Z(c, r int) float64 { return float64(g.cm[len(g.cm)-1-r][c]) }
func (g cmGrid) X(c int) float64    { return float64(c) }
func (g cmGrid) Y(r int) float64    { return float64(r) }

// ConfusionMatrix draws cm (rows true class, columns predicted class) as an
// annotated heat map.
func ConfusionMatrix(cm [][]int, classes []string, path string) error {
	k := len(cm)
	if k == 0 {
		return fmt.Errorf("confusion matrix plot: empty matrix")
	}
	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted label"
	p.Y.Label.Text = "True label"

	hi := 0
	for _, row := range cm {
		for _, v := range row {
			hi = max(hi, v)
		}
	}
	hm := plotter.NewHeatMap(cmGrid{cm}, palette.Heat(32, 1))
	hm.Min, hm.Max = 0, float64(max(hi, 1))
	p.Add(hm)

	var cells plotter.XYLabels
	for r := range k {
		for c := range k {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c), Y: float64(k - 1 - r)})
			cells.Labels = append(cells.Labels, strconv.Itoa(cm[r][c]))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return fmt.Errorf("confusion matrix plot: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
		labels.TextStyle[i].Color = color.Black
	}
	p.Add(labels)

	xticks := make([]plot.Tick, k)
	yticks := make([]plot.Tick, k)
	for i := range k {
		xticks[i] = plot.Tick{Value: float64(i), Label: className(classes, i)}
		yticks[i] = plot.Tick{Value: float64(k - 1 - i), Label: className(classes, i)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xticks)
	p.Y.Tick.Marker = plot.ConstantTicks(yticks)
	p.X.Min, p.X.Max = -0.5, float64(k)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(k)-0.5

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("confusion matrix plot: %w", err)
	}
	return nil
}
