package render

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/plot/plotutil"

	"mlviz/pkg/model"
)

// graphvizMu serialises every use of the Graphviz C library, whose global
// state is not safe for concurrent use.
var graphvizMu sync.Mutex

// TreeSVG draws a fitted decision tree to an SVG file. features names the
// columns of the training matrix and classes[code] names each class code.
func TreeSVG(root *model.TreeNode, features, classes []string, path string) error {
	graphvizMu.Lock()
	defer graphvizMu.Unlock()

	g, graph, err := treeGraph(root, features, classes)
	if err != nil {
		return err
	}
	defer closeGraph(g, graph)
	if err := g.RenderFilename(graph, graphviz.SVG, path); err != nil {
		return fmt.Errorf("render tree: %w", err)
	}
	return nil
}

// TreeDOT returns the DOT source of the same diagram TreeSVG draws.
func TreeDOT(root *model.TreeNode, features, classes []string) (string, error) {
	graphvizMu.Lock()
	defer graphvizMu.Unlock()

	g, graph, err := treeGraph(root, features, classes)
	if err != nil {
		return "", err
	}
	defer closeGraph(g, graph)
	var buf bytes.Buffer
	if err := g.Render(graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("render tree: %w", err)
	}
	return buf.String(), nil
}

func closeGraph(g *graphviz.Graphviz, graph *cgraph.Graph) {
	_ = graph.Close()
	_ = g.Close()
}

func treeGraph(root *model.TreeNode, features, classes []string) (*graphviz.Graphviz, *cgraph.Graph, error) {
	if root == nil {
		return nil, nil, fmt.Errorf("render tree: tree is not fitted")
	}
	g := graphviz.New()
	graph, err := g.Graph()
	if err != nil {
		_ = g.Close()
		return nil, nil, fmt.Errorf("render tree: %w", err)
	}
	d := treeDrawer{graph: graph, features: features, classes: classes}
	if _, err := d.add(root); err != nil {
		closeGraph(g, graph)
		return nil, nil, fmt.Errorf("render tree: %w", err)
	}
	return g, graph, nil
}

type treeDrawer struct {
	graph    *cgraph.Graph
	features []string
	classes  []string
	next     int
}

func (d *treeDrawer) add(n *model.TreeNode) (*cgraph.Node, error) {
	node, err := d.graph.CreateNode(strconv.Itoa(d.next))
	if err != nil {
		return nil, err
	}
	d.next++
	node.SetShape(cgraph.BoxShape).
		SetStyle(cgraph.FilledNodeStyle).
		SetFillColor(nodeColor(n)).
		SetLabel(d.label(n))
	if rc := node.SafeSet("fontname", "helvetica", ""); rc != 0 {
		return nil, fmt.Errorf("set fontname on node %s: agsafeset returned %d", node.Name(), rc)
	}
	if n.Leaf {
		return node, nil
	}

	for i, child := range []*model.TreeNode{n.Left, n.Right} {
		c, err := d.add(child)
		if err != nil {
			return nil, err
		}
		e, err := d.graph.CreateEdge(fmt.Sprintf("%s-%s", node.Name(), c.Name()), node, c)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			e.SetLabel("True")
		} else {
			e.SetLabel("False")
		}
	}
	return node, nil
}

func (d *treeDrawer) label(n *model.TreeNode) string {
	var lines []string
	if !n.Leaf {
		op := "<="
		if n.Equality {
			op = "=="
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", d.feature(n.Feature), op, strconv.FormatFloat(n.Threshold, 'f', 3, 64)))
	}
	values := make([]string, len(n.Value))
	for i, v := range n.Value {
		values[i] = strconv.Itoa(v)
	}
	lines = append(lines,
		fmt.Sprintf("impurity = %.3f", n.Impurity),
		fmt.Sprintf("samples = %d", n.Samples),
		fmt.Sprintf("value = [%s]", strings.Join(values, ", ")),
		"class = "+className(d.classes, n.Class),
	)
	// graphviz line break escape
	return strings.Join(lines, `\n`)
}

func (d *treeDrawer) feature(j int) string {
	if j >= 0 && j < len(d.features) {
		return d.features[j]
	}
	return fmt.Sprintf("x[%d]", j)
}

func className(classes []string, code int) string {
	if code >= 0 && code < len(classes) {
		return classes[code]
	}
	return strconv.Itoa(code)
}

// nodeColor shades the class colour by how pure the node is.
func nodeColor(n *model.TreeNode) string {
	total, best := 0, 0
	for _, v := range n.Value {
		total += v
		best = max(best, v)
	}
	alpha := uint8(255)
	if k := len(n.Value); k > 1 && total > 0 {
		p := float64(best) / float64(total)
		floor := 1 / float64(k)
		alpha = uint8(255 * (p - floor) / (1 - floor))
	}
	return hexColor(plotutil.Color(n.Class), alpha)
}

func hexColor(c color.Color, alpha uint8) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x%02x", r>>8, g>>8, b>>8, alpha)
}
