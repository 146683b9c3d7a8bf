package core

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// FromRows copies a nested slice into a dense matrix. All rows must have the
// length of the first one.
func FromRows(a [][]float64) *mat.Dense {
	r := len(a)
	if r == 0 || len(a[0]) == 0 {
		return &mat.Dense{}
	}
	c := len(a[0])
	data := make([]float64, 0, r*c)
	for _, row := range a {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

// ToRows copies a matrix back into a nested slice.
func ToRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range r {
		row := make([]float64, c)
		for j := range c {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}

// OneHot builds an n x k indicator matrix from class codes.
func OneHot(y []int, k int) *mat.Dense {
	m := mat.NewDense(len(y), k, nil)
	for i, c := range y {
		m.Set(i, c, 1)
	}
	return m
}

// AddRowVector adds v to every row of m in place.
func AddRowVector(m *mat.Dense, v []float64) {
	r, _ := m.Dims()
	for i := range r {
		row := m.RawRowView(i)
		for j := range row {
			row[j] += v[j]
		}
	}
}

// ColSums returns the sum of each column of m.
func ColSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	for i := range r {
		for j, v := range m.RawRowView(i) {
			out[j] += v
		}
	}
	return out
}

// ParallelRange splits [0, n) into one chunk per CPU and runs fn on each
// chunk concurrently. It returns when every chunk is done.
func ParallelRange(n int, fn func(start, end int)) {
	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
