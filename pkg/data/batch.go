package data

import (
	"context"
	"math/rand"
)

// Batch is a mini-batch of rows and their class codes.
type Batch struct {
	X [][]float64
	Y []int
}

// Batches shuffles the row order with rnd and emits mini-batches of at most
// size rows on the returned channel. The channel is closed after the last batch
// or as soon as ctx is done.
func Batches(ctx context.Context, X [][]float64, Y []int, size int, rnd *rand.Rand) <-chan Batch {
	out := make(chan Batch)
	if size <= 0 {
		size = len(X)
	}
	order := rnd.Perm(len(X))

	go func() {
		defer close(out)
		for start := 0; start < len(order); start += size {
			end := min(start+size, len(order))
			b := Batch{X: make([][]float64, 0, end-start), Y: make([]int, 0, end-start)}
			for _, i := range order[start:end] {
				b.X = append(b.X, X[i])
				b.Y = append(b.Y, Y[i])
			}
			select {
			case <-ctx.Done():
				return
			case out <- b:
			}
		}
	}()
	return out
}
