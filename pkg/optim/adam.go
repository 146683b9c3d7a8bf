package optim

import "math"

// Adam is the adaptive moment estimation optimizer.
type Adam struct {
	LearningRate float64
	Beta1, Beta2 float64
	Epsilon      float64

	t    int
	m, v [][]float64
}

// NewAdam returns Adam with the usual defaults for the moment decay rates.
func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

func (o *Adam) Step(params, grads [][]float64) {
	if o.m == nil {
		o.m, o.v = zerosLike(params), zerosLike(params)
	}
	o.t++
	// bias correction folded into the step size
	lr := o.LearningRate * math.Sqrt(1-math.Pow(o.Beta2, float64(o.t))) / (1 - math.Pow(o.Beta1, float64(o.t)))
	for g := range params {
		w, d, m, v := params[g], grads[g], o.m[g], o.v[g]
		for i := range w {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*d[i]
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*d[i]*d[i]
			w[i] -= lr * m[i] / (math.Sqrt(v[i]) + o.Epsilon)
		}
	}
}
