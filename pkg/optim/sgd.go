package optim

// Optimizer updates parameter groups in place from their gradients.
// params[i] and grads[i] must have the same length on every call.
type Optimizer interface {
	Step(params, grads [][]float64)
}

// Stochastic Gradient Descent optimizer with learning rate and momentum.
type SGD struct {
	LearningRate float64
	Momentum     float64
	velocity     [][]float64
}

func NewSGD(lr float64) *SGD { return &SGD{LearningRate: lr, Momentum: 0.9} }

func (o *SGD) Step(params, grads [][]float64) { // in-place update using pointer receiver
	if o.velocity == nil {
		o.velocity = zerosLike(params)
	}
	for g := range params {
		w, d, v := params[g], grads[g], o.velocity[g]
		for i := range w {
			v[i] = o.Momentum*v[i] - o.LearningRate*d[i]
			w[i] += v[i]
		}
	}
}

func zerosLike(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = make([]float64, len(p))
	}
	return out
}
