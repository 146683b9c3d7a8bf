package neural

import "math"

// CrossEntropy returns the mean negative log-likelihood of the true classes
// under the predicted class probabilities.
// Use this loss with a softmax output layer.
func CrossEntropy(y []int, proba [][]float64) float64 {
	if len(y) == 0 {
		return 0
	}
	s := 0.0
	for i, c := range y {
		p := math.Min(math.Max(proba[i][c], 1e-12), 1-1e-12)
		s -= math.Log(p)
	}
	return s / float64(len(y))
}

// L2Penalty returns alpha/2 * sum of squared weights, divided by the batch size
// so it is on the same scale as the mean loss.
func L2Penalty(alpha float64, n int, weights ...[]float64) float64 {
	s := 0.0
	for _, w := range weights {
		for _, v := range w {
			s += v * v
		}
	}
	return 0.5 * alpha * s / float64(n)
}
