package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"mlviz/pkg/core"
	"mlviz/pkg/data"
	"mlviz/pkg/neural"
	"mlviz/pkg/optim"
	"mlviz/pkg/stats"
)

// MLPClassifier is a fully connected feed-forward network with a softmax
// output layer, trained on cross-entropy loss with an L2 penalty.
type MLPClassifier struct {
	HiddenLayers  []int
	Activation    string  // "relu" (default), "logistic", "tanh" or "identity"
	Solver        string  // "adam" (default) or "sgd"
	Alpha         float64 // L2 penalty
	LearningRate  float64
	BatchSize     int // 0 => min(200, n)
	MaxIter       int // epochs
	Tol           float64
	NIterNoChange int
	Seed          int64

	act        neural.Activation
	coefs      []*mat.Dense // coefs[l] is fanIn x fanOut
	intercepts [][]float64
	classes    []int
	lossCurve  []float64
	nIter      int
	converged  bool
}

// MLPOption configures an MLPClassifier.
type MLPOption func(*MLPClassifier)

func WithActivation(name string) MLPOption { return func(m *MLPClassifier) { m.Activation = name } }
func WithSolver(name string) MLPOption     { return func(m *MLPClassifier) { m.Solver = name } }
func WithAlpha(a float64) MLPOption        { return func(m *MLPClassifier) { m.Alpha = a } }
func WithLearningRate(lr float64) MLPOption {
	return func(m *MLPClassifier) { m.LearningRate = lr }
}
func WithBatchSize(n int) MLPOption { return func(m *MLPClassifier) { m.BatchSize = n } }
func WithMaxIter(n int) MLPOption   { return func(m *MLPClassifier) { m.MaxIter = n } }
func WithSeed(seed int64) MLPOption { return func(m *MLPClassifier) { m.Seed = seed } }

// NewMLPClassifier builds an unfitted network with the given hidden layer sizes.
func NewMLPClassifier(hidden []int, opts ...MLPOption) *MLPClassifier {
	m := &MLPClassifier{
		HiddenLayers:  append([]int(nil), hidden...),
		Activation:    "relu",
		Solver:        "adam",
		Alpha:         1e-4,
		LearningRate:  1e-3,
		MaxIter:       200,
		Tol:           1e-4,
		NIterNoChange: 10,
		Seed:          time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Fit trains the network on X and class labels y.
func (m *MLPClassifier) Fit(X [][]float64, y []int) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between mini-batches.
func (m *MLPClassifier) FitContext(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	if n == 0 || len(X[0]) == 0 {
		return errors.New("mlp: empty training data")
	}
	if len(y) != n {
		return errors.New("mlp: X and y length mismatch")
	}
	for _, h := range m.HiddenLayers {
		if h < 1 {
			return fmt.Errorf("mlp: hidden layer size must be positive, got %d", h)
		}
	}
	if m.MaxIter < 1 {
		return errors.New("mlp: max_iter must be at least 1")
	}
	act, err := neural.ActivationByName(m.Activation)
	if err != nil {
		return fmt.Errorf("mlp: %w", err)
	}
	m.act = act

	m.classes = sortedClasses(y)
	if len(m.classes) < 2 {
		return errors.New("mlp: need samples of at least 2 classes")
	}
	pos := make(map[int]int, len(m.classes))
	for i, c := range m.classes {
		pos[c] = i
	}
	yIdx := make([]int, n)
	for i, c := range y {
		yIdx[i] = pos[c]
	}

	rnd := rand.New(rand.NewSource(m.Seed))
	sizes := append(append([]int{len(X[0])}, m.HiddenLayers...), len(m.classes))
	m.initWeights(sizes, rnd)

	var opt optim.Optimizer
	switch m.Solver {
	case "", "adam":
		opt = optim.NewAdam(m.LearningRate)
	case "sgd":
		opt = optim.NewSGD(m.LearningRate)
	default:
		return fmt.Errorf("mlp: unknown solver %q", m.Solver)
	}

	batch := m.BatchSize
	if batch <= 0 {
		batch = min(200, n)
	}

	m.lossCurve = m.lossCurve[:0]
	m.nIter, m.converged = 0, false
	best, noImprove := math.Inf(1), 0
	for epoch := 0; epoch < m.MaxIter; epoch++ {
		total := 0.0
		for b := range data.Batches(ctx, X, yIdx, batch, rnd) {
			total += m.step(b, opt) * float64(len(b.X))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		loss := total / float64(n)
		m.lossCurve = append(m.lossCurve, loss)
		m.nIter = epoch + 1

		if loss > best-m.Tol {
			noImprove++
		} else {
			noImprove = 0
		}
		if loss < best {
			best = loss
		}
		if noImprove > m.NIterNoChange {
			m.converged = true
			break
		}
	}
	return nil
}

func (m *MLPClassifier) initWeights(sizes []int, rnd *rand.Rand) {
	m.coefs = make([]*mat.Dense, len(sizes)-1)
	m.intercepts = make([][]float64, len(sizes)-1)
	for l := range m.coefs {
		fanIn, fanOut := sizes[l], sizes[l+1]
		bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
		w := make([]float64, fanIn*fanOut)
		for i := range w {
			w[i] = (2*rnd.Float64() - 1) * bound
		}
		b := make([]float64, fanOut)
		for i := range b {
			b[i] = (2*rnd.Float64() - 1) * bound
		}
		m.coefs[l] = mat.NewDense(fanIn, fanOut, w)
		m.intercepts[l] = b
	}
}

// forward returns the activations of every layer, input included.
func (m *MLPClassifier) forward(X *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, 0, len(m.coefs)+1)
	acts = append(acts, X)
	last := len(m.coefs) - 1
	for l, w := range m.coefs {
		z := &mat.Dense{}
		z.Mul(acts[l], w)
		core.AddRowVector(z, m.intercepts[l])
		if l == last {
			r, _ := z.Dims()
			for i := range r {
				neural.SoftmaxInPlace(z.RawRowView(i))
			}
		} else {
			z.Apply(func(_, _ int, v float64) float64 { return m.act.F(v) }, z)
		}
		acts = append(acts, z)
	}
	return acts
}

// step runs one forward/backward pass on b, updates the weights and returns the batch loss.
func (m *MLPClassifier) step(b data.Batch, opt optim.Optimizer) float64 {
	size := len(b.X)
	acts := m.forward(core.FromRows(b.X))
	out := acts[len(acts)-1]

	weights := make([][]float64, len(m.coefs))
	for l, w := range m.coefs {
		weights[l] = w.RawMatrix().Data
	}
	loss := neural.CrossEntropy(b.Y, core.ToRows(out)) + neural.L2Penalty(m.Alpha, size, weights...)

	// softmax + cross-entropy gradient
	delta := &mat.Dense{}
	delta.Sub(out, core.OneHot(b.Y, len(m.classes)))
	delta.Scale(1/float64(size), delta)

	gradW := make([][]float64, len(m.coefs))
	gradB := make([][]float64, len(m.coefs))
	for l := len(m.coefs) - 1; l >= 0; l-- {
		g := &mat.Dense{}
		g.Mul(acts[l].T(), delta)
		reg := &mat.Dense{}
		reg.Scale(m.Alpha/float64(size), m.coefs[l])
		g.Add(g, reg)
		gradW[l] = g.RawMatrix().Data
		gradB[l] = core.ColSums(delta)

		if l > 0 {
			next := &mat.Dense{}
			next.Mul(delta, m.coefs[l].T())
			a := acts[l]
			next.Apply(func(i, j int, v float64) float64 {
				return v * m.act.DerivFromOutput(a.At(i, j))
			}, next)
			delta = next
		}
	}

	params := make([][]float64, 0, 2*len(m.coefs))
	grads := make([][]float64, 0, 2*len(m.coefs))
	for l := range m.coefs {
		params = append(params, weights[l], m.intercepts[l])
		grads = append(grads, gradW[l], gradB[l])
	}
	opt.Step(params, grads)
	return loss
}

// PredictProba returns class probabilities aligned with Classes(). X must
// have the number of features seen during Fit.
func (m *MLPClassifier) PredictProba(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	acts := m.forward(core.FromRows(X))
	return core.ToRows(acts[len(acts)-1])
}

// Predict returns the most probable class label for every row.
func (m *MLPClassifier) Predict(X [][]float64) []int {
	proba := m.PredictProba(X)
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = m.classes[stats.Argmax(p)]
	}
	return out
}

// Score returns the mean accuracy on X, y.
func (m *MLPClassifier) Score(X [][]float64, y []int) float64 {
	return Accuracy(y, m.Predict(X))
}

// Classes returns the sorted class labels seen during Fit.
func (m *MLPClassifier) Classes() []int { return append([]int(nil), m.classes...) }

// Coefs returns a copy of every layer's weight matrix (fanIn x fanOut).
func (m *MLPClassifier) Coefs() []*mat.Dense {
	out := make([]*mat.Dense, len(m.coefs))
	for i, w := range m.coefs {
		out[i] = mat.DenseCopyOf(w)
	}
	return out
}

// Intercepts returns a copy of every layer's bias vector.
func (m *MLPClassifier) Intercepts() [][]float64 {
	out := make([][]float64, len(m.intercepts))
	for i, b := range m.intercepts {
		out[i] = append([]float64(nil), b...)
	}
	return out
}

// LossCurve returns the mean training loss of each epoch.
func (m *MLPClassifier) LossCurve() []float64 { return append([]float64(nil), m.lossCurve...) }

// NIter is the number of epochs run by the last Fit.
func (m *MLPClassifier) NIter() int { return m.nIter }

// Converged reports whether training stopped on the tolerance rather than MaxIter.
func (m *MLPClassifier) Converged() bool { return m.converged }

func sortedClasses(y []int) []int {
	seen := map[int]struct{}{}
	for _, c := range y {
		seen[c] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
