package model

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeClassifier is a CART-style classifier.
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => use all features, >0 => number of features to sample when looking for split
	MinImpurityDecrease float64 // minimal impurity decrease to accept a split
	RandomState         int64   // seed for randomness (feature subsampling)

	// internals
	root      *dtNode
	classes   []int // sorted class labels, the order used by counts and probas
	nFeatures int
}

// dtNode holds a node in the tree.
type dtNode struct {
	isLeaf    bool
	feature   int
	threshold float64 // numeric threshold: x <= threshold => left
	isCat     bool    // true if this split is a categorical equality split (x == threshold)
	left      *dtNode
	right     *dtNode

	n         int
	counts    []int // samples per class reaching this node
	impurity  float64
	predIndex int // index into classes for predicted class (majority)
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MaxDepth:            0, // 0 => no explicit max (stopping by other criteria)
		MinSamplesSplit:     2,
		MinSamplesLeaf:      1,
		Criterion:           "gini",
		MaxFeatures:         0,
		MinImpurityDecrease: 0.0,
		RandomState:         time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API
// ---------------------------

// Fit trains the decision tree on X (n x p) and y (n class labels).
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	return t.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation. Once ctx is done no further splits are
// attempted and ctx.Err() is returned.
func (t *DecisionTreeClassifier) FitContext(ctx context.Context, X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("dtree: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("dtree: X and y length mismatch")
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("dtree: X has no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return errors.New("dtree: inconsistent number of features in X rows")
		}
	}

	seen := map[int]struct{}{}
	t.classes = t.classes[:0]
	for _, lab := range y {
		if _, ok := seen[lab]; !ok {
			seen[lab] = struct{}{}
			t.classes = append(t.classes, lab)
		}
	}
	sort.Ints(t.classes)
	t.nFeatures = p

	// map labels to class positions once
	pos := make(map[int]int, len(t.classes))
	for i, c := range t.classes {
		pos[c] = i
	}
	yi := make([]int, n)
	for i, lab := range y {
		yi[i] = pos[lab]
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	b := &builder{
		tree:     t,
		X:        X,
		y:        yi,
		nClasses: len(t.classes),
		rnd:      rand.New(rand.NewSource(t.RandomState)),
		impurity: giniFromCounts,
	}
	if t.Criterion == "entropy" {
		b.impurity = entropyFromCounts
	}
	t.root = b.build(ctx, idx, 0)
	return ctx.Err()
}

// Predict returns predicted class labels.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		out[i] = t.classes[t.leaf(X[i]).predIndex]
	}
	return out
}

// PredictProba returns the per-class probability vectors for rows in X,
// aligned with Classes().
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = countsToProbas(t.leaf(X[i]).counts)
	}
	return out
}

// Classes returns the sorted class labels seen during Fit.
func (t *DecisionTreeClassifier) Classes() []int { return append([]int(nil), t.classes...) }

// Depth returns the depth of the deepest leaf (a lone root has depth 0).
func (t *DecisionTreeClassifier) Depth() int { return depth(t.root) }

// NumLeaves returns the number of leaves.
func (t *DecisionTreeClassifier) NumLeaves() int { return leaves(t.root) }

// PruneReducedError performs reduced-error post-pruning on validation data.
// An internal node whose children are both leaves is collapsed when doing so
// does not lower validation accuracy. Returns the number of pruned nodes.
func (t *DecisionTreeClassifier) PruneReducedError(Xval [][]float64, yval []int) (int, error) {
	if t.root == nil {
		return 0, errors.New("dtree: tree not trained")
	}
	if len(Xval) == 0 || len(yval) != len(Xval) {
		return 0, errors.New("dtree: invalid validation set")
	}
	baseline := Accuracy(yval, t.Predict(Xval))
	return t.pruneNode(t.root, Xval, yval, &baseline), nil
}

func (t *DecisionTreeClassifier) pruneNode(node *dtNode, Xval [][]float64, yval []int, baseline *float64) int {
	if node == nil || node.isLeaf {
		return 0
	}
	pruned := t.pruneNode(node.left, Xval, yval, baseline) + t.pruneNode(node.right, Xval, yval, baseline)
	if !node.left.isLeaf || !node.right.isLeaf {
		return pruned
	}

	left, right, pred := node.left, node.right, node.predIndex
	node.isLeaf, node.left, node.right = true, nil, nil
	node.predIndex = argmax(node.counts)
	if acc := Accuracy(yval, t.Predict(Xval)); acc >= *baseline {
		*baseline = acc
		return pruned + 1
	}
	// revert
	node.isLeaf, node.left, node.right, node.predIndex = false, left, right, pred
	return pruned
}

// TreeNode is a read-only view of a fitted node, used for rendering and persistence.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Equality  bool // split tests x == Threshold instead of x <= Threshold
	Impurity  float64
	Samples   int
	Value     []int // samples per class, aligned with Classes()
	Class     int   // predicted class label
	Left      *TreeNode
	Right     *TreeNode
}

// Export returns the fitted tree, or nil before Fit.
func (t *DecisionTreeClassifier) Export() *TreeNode {
	return t.export(t.root)
}

func (t *DecisionTreeClassifier) export(n *dtNode) *TreeNode {
	if n == nil {
		return nil
	}
	return &TreeNode{
		Leaf:      n.isLeaf,
		Feature:   n.feature,
		Threshold: n.threshold,
		Equality:  n.isCat,
		Impurity:  n.impurity,
		Samples:   n.n,
		Value:     append([]int(nil), n.counts...),
		Class:     t.classes[n.predIndex],
		Left:      t.export(n.left),
		Right:     t.export(n.right),
	}
}

type savedTree struct {
	MaxDepth, MinSamplesSplit, MinSamplesLeaf, MaxFeatures int
	Criterion                                              string
	MinImpurityDecrease                                    float64
	RandomState                                            int64
	Classes                                                []int
	NFeatures                                              int
	Root                                                   *TreeNode
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	if t.root == nil {
		return nil, errors.New("dtree: tree not trained")
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(savedTree{
		MaxDepth:            t.MaxDepth,
		MinSamplesSplit:     t.MinSamplesSplit,
		MinSamplesLeaf:      t.MinSamplesLeaf,
		MaxFeatures:         t.MaxFeatures,
		Criterion:           t.Criterion,
		MinImpurityDecrease: t.MinImpurityDecrease,
		RandomState:         t.RandomState,
		Classes:             t.classes,
		NFeatures:           t.nFeatures,
		Root:                t.Export(),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var s savedTree
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf, t.MaxFeatures = s.MaxDepth, s.MinSamplesSplit, s.MinSamplesLeaf, s.MaxFeatures
	t.Criterion, t.MinImpurityDecrease, t.RandomState = s.Criterion, s.MinImpurityDecrease, s.RandomState
	t.classes, t.nFeatures = s.Classes, s.NFeatures

	pos := make(map[int]int, len(s.Classes))
	for i, c := range s.Classes {
		pos[c] = i
	}
	var rebuild func(n *TreeNode) *dtNode
	rebuild = func(n *TreeNode) *dtNode {
		if n == nil {
			return nil
		}
		return &dtNode{
			isLeaf:    n.Leaf,
			feature:   n.Feature,
			threshold: n.Threshold,
			isCat:     n.Equality,
			impurity:  n.Impurity,
			n:         n.Samples,
			counts:    n.Value,
			predIndex: pos[n.Class],
			left:      rebuild(n.Left),
			right:     rebuild(n.Right),
		}
	}
	t.root = rebuild(s.Root)
	return nil
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

type builder struct {
	tree     *DecisionTreeClassifier
	X        [][]float64
	y        []int // class positions, not labels
	nClasses int
	rnd      *rand.Rand
	impurity func([]int) float64
}

// A struct to hold the results of a single feature's best split search.
type splitResult struct {
	gain      float64
	feature   int
	threshold float64
	isCat     bool
}

// pair is a named type for a value and its original index.
type pair struct {
	v float64
	i int
}

func (b *builder) counts(idx []int) []int {
	c := make([]int, b.nClasses)
	for _, ii := range idx {
		c[b.y[ii]]++
	}
	return c
}

func (b *builder) leaf(node *dtNode) *dtNode {
	node.isLeaf = true
	node.predIndex = argmax(node.counts)
	return node
}

func (b *builder) build(ctx context.Context, idx []int, depth int) *dtNode {
	t := b.tree
	counts := b.counts(idx)
	node := &dtNode{n: len(idx), counts: counts, impurity: b.impurity(counts)}

	// make leaf if pure, too few samples, depth reached or cancelled
	if isPure(counts) || len(idx) < t.MinSamplesSplit || ctx.Err() != nil {
		return b.leaf(node)
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return b.leaf(node)
	}

	p := len(b.X[0])
	featIndices := make([]int, p)
	for j := range featIndices {
		featIndices[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		b.rnd.Shuffle(p, func(i, j int) { featIndices[i], featIndices[j] = featIndices[j], featIndices[i] })
		featIndices = featIndices[:t.MaxFeatures]
	}

	// Parallel search for the best split for each feature.
	results := make([]splitResult, len(featIndices))
	var wg sync.WaitGroup
	for k, f := range featIndices {
		wg.Add(1)
		go func(k, f int) {
			defer wg.Done()
			results[k] = b.bestSplitForFeature(idx, f, node.impurity)
		}(k, f)
	}
	wg.Wait()

	// Ties keep the lowest feature index so fits are reproducible.
	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && (r.gain > best.gain || best.feature < 0 ||
			r.gain == best.gain && r.feature < best.feature) {
			best = r
		}
	}
	if best.feature == -1 || best.gain <= t.MinImpurityDecrease {
		return b.leaf(node)
	}

	var leftIdx, rightIdx []int
	for _, ii := range idx {
		if goesLeft(b.X[ii][best.feature], best.threshold, best.isCat) {
			leftIdx = append(leftIdx, ii)
		} else {
			rightIdx = append(rightIdx, ii)
		}
	}

	node.feature = best.feature
	node.threshold = best.threshold
	node.isCat = best.isCat
	node.predIndex = argmax(counts)
	node.left = b.build(ctx, leftIdx, depth+1)
	node.right = b.build(ctx, rightIdx, depth+1)
	return node
}

// bestSplitForFeature is a goroutine-safe helper that finds the best split for a single feature.
func (b *builder) bestSplitForFeature(idx []int, f int, parentImpurity float64) splitResult {
	result := splitResult{feature: -1}
	minLeaf := b.tree.MinSamplesLeaf
	total := float64(len(idx))

	valid := make([]pair, 0, len(idx))
	for _, ii := range idx {
		valid = append(valid, pair{b.X[ii][f], ii})
	}
	sort.Slice(valid, func(a, c int) bool { return valid[a].v < valid[c].v })

	gainOf := func(lc, rc []int, nl, nr int) float64 {
		weighted := float64(nl)/total*b.impurity(lc) + float64(nr)/total*b.impurity(rc)
		return parentImpurity - weighted
	}

	// try categorical-equality splits if values are integer-like and small unique set
	uniqueVals := uniqueValuesFromPairs(valid)
	if len(uniqueVals) > 1 && len(uniqueVals) <= 30 && allInt(uniqueVals) {
		for _, uv := range uniqueVals {
			lc := make([]int, b.nClasses)
			nl := 0
			for _, pv := range valid {
				if pv.v == uv {
					lc[b.y[pv.i]]++
					nl++
				}
			}
			nr := len(valid) - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rc := b.counts(idx)
			for c := range rc {
				rc[c] -= lc[c]
			}
			if g := gainOf(lc, rc, nl, nr); g > result.gain {
				result = splitResult{gain: g, feature: f, threshold: uv, isCat: true}
			}
		}
	}

	// ---- NUMERIC splits: scan thresholds between distinct sorted values ----
	lc := make([]int, b.nClasses)
	rc := b.counts(idx)
	for s := 1; s < len(valid); s++ {
		c := b.y[valid[s-1].i]
		lc[c]++
		rc[c]--
		if valid[s].v == valid[s-1].v {
			continue
		}
		if s < minLeaf || len(valid)-s < minLeaf {
			continue
		}
		if g := gainOf(lc, rc, s, len(valid)-s); g > result.gain {
			result = splitResult{gain: g, feature: f, threshold: (valid[s-1].v + valid[s].v) / 2.0}
		}
	}
	return result
}

func goesLeft(v, threshold float64, isCat bool) bool {
	if isCat {
		return v == threshold
	}
	return v <= threshold
}

func (t *DecisionTreeClassifier) leaf(x []float64) *dtNode {
	node := t.root
	for !node.isLeaf {
		if goesLeft(x[node.feature], node.threshold, node.isCat) {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node
}

// ---------------------------
// Utilities: impurity & misc
// ---------------------------

func allInt(vals []float64) bool {
	for _, v := range vals {
		if math.IsInf(v, 0) {
			return false
		}
		_, frac := math.Modf(math.Abs(v))
		if frac > 1e-9 && frac < 1-1e-9 {
			return false
		}
	}
	return true
}

func uniqueValuesFromPairs(sorted []pair) []float64 {
	out := make([]float64, 0, 8)
	for i, p := range sorted {
		if i == 0 || p.v != sorted[i-1].v {
			out = append(out, p.v)
		}
	}
	return out
}

func giniFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := float64(c) / n
		res -= p * p
	}
	return res
}

func entropyFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbas(counts []int) []float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i := range counts {
		p[i] = float64(counts[i]) / float64(n)
	}
	return p
}

func argmax(counts []int) int {
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	return best
}

func depth(n *dtNode) int {
	if n == nil || n.isLeaf {
		return 0
	}
	return 1 + max(depth(n.left), depth(n.right))
}

func leaves(n *dtNode) int {
	if n == nil {
		return 0
	}
	if n.isLeaf {
		return 1
	}
	return leaves(n.left) + leaves(n.right)
}
