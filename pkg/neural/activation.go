package neural

import (
	"fmt"
	"math"
)

func Sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func ReLU(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Activation is an element-wise function whose derivative is expressed in
// terms of the function's output, which is what backpropagation keeps around.
type Activation struct {
	Name string
	F    func(x float64) float64
	// DerivFromOutput returns f'(x) given a = f(x).
	DerivFromOutput func(a float64) float64
}

var (
	ReLUActivation = Activation{
		Name: "relu",
		F:    ReLU,
		DerivFromOutput: func(a float64) float64 {
			if a > 0 {
				return 1
			}
			return 0
		},
	}
	LogisticActivation = Activation{
		Name:            "logistic",
		F:               Sigmoid,
		DerivFromOutput: func(a float64) float64 { return a * (1 - a) },
	}
	TanhActivation = Activation{
		Name:            "tanh",
		F:               math.Tanh,
		DerivFromOutput: func(a float64) float64 { return 1 - a*a },
	}
	IdentityActivation = Activation{
		Name:            "identity",
		F:               func(x float64) float64 { return x },
		DerivFromOutput: func(float64) float64 { return 1 },
	}
)

// ActivationByName looks up one of the built-in activations.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "", "relu":
		return ReLUActivation, nil
	case "logistic":
		return LogisticActivation, nil
	case "tanh":
		return TanhActivation, nil
	case "identity":
		return IdentityActivation, nil
	}
	return Activation{}, fmt.Errorf("unknown activation %q", name)
}

// SoftmaxInPlace turns every row of logits into probabilities.
func SoftmaxInPlace(row []float64) {
	hi := math.Inf(-1)
	for _, v := range row {
		hi = math.Max(hi, v)
	}
	sum := 0.0
	for i, v := range row {
		row[i] = math.Exp(v - hi)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}
