package render_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlviz/pkg/model"
	"mlviz/pkg/render"
)

var pngMagic = []byte("\x89PNG")

func fittedTree(t *testing.T) *model.DecisionTreeClassifier {
	t.Helper()
	X := [][]float64{{0.1, 1.5}, {0.3, 2.5}, {2.2, 1.0}, {2.8, 3.0}}
	y := []int{0, 0, 1, 1}
	tree := model.NewDecisionTreeClassifier()
	require.NoError(t, tree.Fit(X, y))
	return tree
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, b)
	return b
}

func TestTreeSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.svg")

	require.NoError(t, render.TreeSVG(fittedTree(t).Export(), []string{"A", "B"}, []string{"no", "yes"}, path))

	svg := string(readFile(t, path))
	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, "A &lt;= ")
	assert.Contains(t, svg, "class = yes")
}

func TestTreeDOT(t *testing.T) {
	dot, err := render.TreeDOT(fittedTree(t).Export(), []string{"A", "B"}, []string{"no", "yes"})
	require.NoError(t, err)

	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, "samples = 4")
	assert.Contains(t, dot, "True")
	assert.Contains(t, dot, "fontname=helvetica")
}

func TestTreeSVG_Concurrent(t *testing.T) {
	root := fittedTree(t).Export()
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for g := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 10 {
				path := filepath.Join(dir, fmt.Sprintf("tree-%d-%d.svg", g, i))
				if err := render.TreeSVG(root, []string{"A", "B"}, []string{"no", "yes"}, path); err != nil {
					errs[g] = err
					return
				}
				if _, err := render.TreeDOT(root, []string{"A", "B"}, []string{"no", "yes"}); err != nil {
					errs[g] = err
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 160)
}

func TestTreeSVG_Unfitted(t *testing.T) {
	err := render.TreeSVG(nil, nil, nil, filepath.Join(t.TempDir(), "tree.svg"))
	assert.Error(t, err)
}

func TestClusterScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.png")
	points := [][]float64{{0, 0}, {0.5, 0.2}, {4, 4}, {4.2, 3.9}}

	require.NoError(t, render.ClusterScatter(points, []int{0, 0, 1, 1}, [][]float64{{0.25, 0.1}, {4.1, 3.95}}, path))

	assert.True(t, bytes.HasPrefix(readFile(t, path), pngMagic))
}

func TestClusterScatter_LengthMismatch(t *testing.T) {
	err := render.ClusterScatter([][]float64{{0, 0}}, nil, nil, filepath.Join(t.TempDir(), "c.png"))
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cm.png")

	require.NoError(t, render.ConfusionMatrix([][]int{{5, 1}, {0, 4}}, []string{"no", "yes"}, path))

	assert.True(t, bytes.HasPrefix(readFile(t, path), pngMagic))
}

func TestDecisionBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundary.png")
	X := [][]float64{{0, 0}, {1, 1}, {3, 3}, {4, 4}}
	y := []int{0, 0, 1, 1}
	calls := 0
	predict := func(rows [][]float64) []int {
		calls++
		out := make([]int, len(rows))
		for i, r := range rows {
			if r[0]+r[1] > 4 {
				out[i] = 1
			}
		}
		return out
	}

	require.NoError(t, render.DecisionBoundary(predict, X, y, []string{"A", "B"}, []string{"no", "yes"}, "Decision boundary of MLP", path))

	assert.Equal(t, 1, calls)
	assert.True(t, bytes.HasPrefix(readFile(t, path), pngMagic))
}

func TestDecisionBoundary_NeedsTwoFeatures(t *testing.T) {
	err := render.DecisionBoundary(nil, [][]float64{{1, 2, 3}}, []int{0}, nil, nil, "", filepath.Join(t.TempDir(), "b.png"))
	assert.Error(t, err)
}

func TestPerceptronReport(t *testing.T) {
	X := [][]float64{{0, 0}, {0, 1}, {5, 5}, {5, 6}}
	y := []int{0, 0, 1, 1}
	mlp := model.NewMLPClassifier([]int{2, 2}, model.WithMaxIter(10), model.WithSeed(1))
	require.NoError(t, mlp.Fit(X, y))

	report := render.PerceptronReport(mlp, X, y, []string{"no", "yes"})

	assert.True(t, strings.HasPrefix(report, "Multilayer Perceptron Report\n\nWeights of each layer:\n"))
	for _, want := range []string{"Layer 0:", "Layer 1:", "Layer 2:", "Accuracy: ", "Confusion Matrix:\n[[", "Classification Report:", "weighted avg"} {
		assert.Contains(t, report, want)
	}
	assert.NotContains(t, report, "Layer 3:")

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, render.WriteText(path, report))
	assert.Equal(t, report, string(readFile(t, path)))
}
