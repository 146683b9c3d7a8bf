package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// ClusterScatter plots 2-D points coloured by cluster label. centers, when
// not nil, are drawn as crosses. The image format follows the extension of path.
func ClusterScatter(points [][]float64, labels []int, centers [][]float64, path string) error {
	if len(points) != len(labels) {
		return fmt.Errorf("cluster plot: %d points but %d labels", len(points), len(labels))
	}
	p := plot.New()
	p.Title.Text = "Clusters Visualization"
	p.X.Label.Text = "PCA 1"
	p.Y.Label.Text = "PCA 2"

	numClusters := 0
	for _, a := range labels {
		numClusters = max(numClusters, a+1)
	}
	for k := range numClusters {
		pts := make(plotter.XYs, 0)
		for i, a := range labels {
			if a == k && len(points[i]) >= 2 {
				pts = append(pts, plotter.XY{X: points[i][0], Y: points[i][1]})
			}
		}
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("cluster plot: %w", err)
		}
		s.Color = plotutil.Color(k)
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("Cluster %d", k), s)
	}

	if len(centers) > 0 {
		centroidPts := make(plotter.XYs, len(centers))
		for i, c := range centers {
			if len(c) >= 2 {
				centroidPts[i] = plotter.XY{X: c[0], Y: c[1]}
			}
		}
		c, err := plotter.NewScatter(centroidPts)
		if err != nil {
			return fmt.Errorf("cluster plot: %w", err)
		}
		c.Color = color.RGBA{A: 255}
		c.Shape = draw.CrossGlyph{}
		c.Radius = vg.Points(5)
		p.Add(c)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("cluster plot: %w", err)
	}
	return nil
}
