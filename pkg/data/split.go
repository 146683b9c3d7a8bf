package data

import "math/rand"

// TrainTestSplit splits X, Y into train and test sets by ratio. Row order is
// shuffled with rnd first.
func TrainTestSplit(X [][]float64, Y []int, testRatio float64, rnd *rand.Rand) (XTrain, XTest [][]float64, YTrain, YTest []int) {
	n := len(X)
	indices := rnd.Perm(n)
	nTest := int(float64(n) * testRatio)
	for i := range n {
		if i < nTest {
			XTest = append(XTest, X[indices[i]])
			YTest = append(YTest, Y[indices[i]])
		} else {
			XTrain = append(XTrain, X[indices[i]])
			YTrain = append(YTrain, Y[indices[i]])
		}
	}
	return
}
