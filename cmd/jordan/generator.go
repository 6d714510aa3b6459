package main

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/23skdu/longbow-jordan/internal/solver"
)

// generated is a random system together with the solution it was built from.
type generated struct {
	system solver.System
	want   []float64
}

// generateSystems builds n random size×size systems A·x = b. A is drawn from
// a standard normal, x uniformly from [-10, 10) and b = A·x, so almost every
// system has the unique solution x.
func generateSystems(n, size int, seed uint64) []generated {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	coef := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	sol := distuv.Uniform{Min: -10, Max: 10, Src: src}

	out := make([]generated, n)
	for i := range out {
		a := mat.NewDense(size, size, nil)
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				a.Set(r, c, coef.Rand())
			}
		}
		x := make([]float64, size)
		for j := range x {
			x[j] = sol.Rand()
		}

		var b mat.VecDense
		b.MulVec(a, mat.NewVecDense(size, x))

		rows := make([][]float64, size)
		for r := range rows {
			row := make([]float64, size+1)
			copy(row, a.RawRowView(r))
			row[size] = b.AtVec(r)
			rows[r] = row
		}
		out[i] = generated{
			system: solver.System{ID: fmt.Sprintf("gen-%d", i), Rows: rows},
			want:   x,
		}
	}
	return out
}
