package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"mlviz/pkg/core"
)

// KMeans is an unsupervised learning model that partitions data points into K clusters.
type KMeans struct {
	K         int
	MaxIter   int
	Tol       float64 // stop when no centroid moves more than Tol
	Seed      int64
	Centroids [][]float64
	Labels    []int   // cluster of every training row
	Inertia   float64 // Sum of squared distances to nearest centroid
	NIter     int
}

// NewKMeans creates and returns a new KMeans model with specified K and max iterations.
func NewKMeans(k int, maxIter int) *KMeans {
	return &KMeans{
		K:       k,
		MaxIter: maxIter,
		Tol:     1e-4,
		Seed:    time.Now().UnixNano(),
	}
}

// Fit trains the KMeans model by iteratively finding centroids.
func (m *KMeans) Fit(X [][]float64) error {
	return m.FitContext(context.Background(), X)
}

// FitContext is Fit with cancellation checked between iterations.
func (m *KMeans) FitContext(ctx context.Context, X [][]float64) error {
	if len(X) == 0 {
		return errors.New("input data cannot be empty")
	}
	if m.K < 1 {
		return errors.New("number of clusters must be at least 1")
	}
	n, p := len(X), len(X[0])
	if n < m.K {
		return errors.New("number of data points is less than K")
	}
	if m.MaxIter < 1 {
		m.MaxIter = 300
	}

	rnd := rand.New(rand.NewSource(m.Seed))
	m.Centroids = initCenters(X, m.K, rnd)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for it := 0; it < m.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.NIter = it + 1

		// === Parallel Assignment Step ===
		var changed atomic.Bool
		core.ParallelRange(n, func(start, end int) {
			for i := start; i < end; i++ {
				best, _ := nearest(X[i], m.Centroids)
				if assign[i] != best {
					changed.Store(true)
				}
				assign[i] = best
			}
		})

		// === Update Step ===
		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i := 0; i < n; i++ {
			k := assign[i]
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += X[i][j]
			}
		}

		shift := 0.0
		for k := 0; k < m.K; k++ {
			if counts[k] == 0 {
				continue // keep the old centroid of an empty cluster
			}
			for j := 0; j < p; j++ {
				c := sums[k][j] / float64(counts[k])
				shift = math.Max(shift, math.Abs(c-m.Centroids[k][j]))
				m.Centroids[k][j] = c
			}
		}

		if !changed.Load() || shift <= m.Tol {
			break
		}
	}

	m.Labels = make([]int, n)
	m.Inertia = 0
	for i := range X {
		k, d2 := nearest(X[i], m.Centroids)
		m.Labels[i] = k
		m.Inertia += d2
	}
	return nil
}

// Predict assigns each data point to its nearest centroid and returns the cluster assignments.
func (m *KMeans) Predict(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, errors.New("input data for prediction cannot be empty")
	}
	if len(m.Centroids) == 0 {
		return nil, errors.New("model is not fitted")
	}
	if len(X[0]) != len(m.Centroids[0]) {
		return nil, errors.New("feature count mismatch between input data and model centroids")
	}

	assignments := make([]int, len(X))
	core.ParallelRange(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			assignments[i], _ = nearest(X[i], m.Centroids)
		}
	})
	return assignments, nil
}

func nearest(x []float64, centroids [][]float64) (int, float64) {
	best, bestD := 0, math.MaxFloat64
	for k, c := range centroids {
		if d := euclidSquared(x, c); d < bestD {
			best, bestD = k, d
		}
	}
	return best, bestD
}

func euclidSquared(a, b []float64) float64 {
	s := 0.0
	for j := range a {
		d := a[j] - b[j]
		s += d * d
	}
	return s
}

// initCenters picks k starting centroids with k-means++ seeding.
func initCenters(X [][]float64, k int, rnd *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rnd.Intn(n)]...))

	distSq := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, x := range X {
			_, d2 := nearest(x, centroids)
			distSq[i] = d2
			total += d2
		}

		// all remaining points coincide with a centroid: fall back to uniform choice
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), X[rnd.Intn(n)]...))
			continue
		}

		r := rnd.Float64() * total
		cumulative := 0.0
		chosen := n - 1
		for i, d2 := range distSq {
			cumulative += d2
			if cumulative >= r {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), X[chosen]...))
	}
	return centroids
}
