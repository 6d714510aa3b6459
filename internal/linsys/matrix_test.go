package linsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatrix_Accessors(t *testing.T) {
	data := []float64{
		1, 2, 3,
		4, 5, 6,
	}
	m, err := NewMatrix(2, 3, data)
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, m.NumVariables())
	assert.Equal(t, 6.0, m.At(1, 2))

	m.Set(0, 1, 9)
	assert.Equal(t, 9.0, data[1], "Set must write through to the caller buffer")
	assert.Equal(t, []float64{4, 5, 6}, m.Row(1))
	assert.Equal(t, []float64{3, 6}, m.RHS())
	assert.Equal(t, [][]float64{{1, 9, 3}, {4, 5, 6}}, m.ToRows())

	clone := m.Clone()
	clone.Set(0, 0, 100)
	assert.Equal(t, 1.0, m.At(0, 0))
}

func TestMatrix_OutOfRangePanics(t *testing.T) {
	m, err := NewMatrix(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	for _, idx := range [][2]int{{-1, 0}, {2, 0}, {0, 2}, {0, -1}} {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r, "At(%d,%d) did not panic", idx[0], idx[1])
				err, ok := r.(error)
				require.True(t, ok)
				assert.ErrorIs(t, err, ErrIndexOutOfRange)
			}()
			_ = m.At(idx[0], idx[1])
		}()
	}

	assert.Panics(t, func() { m.Set(5, 5, 1) })
	assert.Panics(t, func() { m.Row(2) })
}

func TestMatrix_RowAppendDoesNotClobber(t *testing.T) {
	m, err := NewMatrix(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	row := append(m.Row(0), 42)
	assert.Len(t, row, 3)
	assert.Equal(t, 3.0, m.At(1, 0))
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, float32(4), m.At(1, 1))

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = FromRows[float64](nil)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = FromRows([][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestMatrix_SwapRows(t *testing.T) {
	m, err := FromRows([][]float64{{0, 1, 2}, {0, 3, 4}})
	require.NoError(t, err)

	m.SwapRows(0, 1, 1)
	assert.Equal(t, [][]float64{{0, 3, 4}, {0, 1, 2}}, m.ToRows())

	m.SwapRows(1, 1, 0)
	assert.Equal(t, [][]float64{{0, 3, 4}, {0, 1, 2}}, m.ToRows())
}

func TestAugmentAndCoefficients(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewVecDense(2, []float64{5, 6})

	m, err := Augment(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 5}, {3, 4, 6}}, m.ToRows())
	assert.True(t, mat.Equal(a, m.Coefficients()))

	_, err = Augment(a, mat.NewVecDense(3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Residual(a, []float64{1}, []float64{5, 6})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = m.Residual([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestTolerance(t *testing.T) {
	assert.Equal(t, float32(Epsilon32), DefaultEpsilon[float32]())
	assert.Equal(t, Epsilon64, DefaultEpsilon[float64]())

	assert.True(t, IsZero(0.0, 1e-9))
	assert.True(t, IsZero(-5e-10, 1e-9))
	assert.False(t, IsZero(1e-9, 1e-9))
	assert.False(t, IsZero(-2e-9, 1e-9))

	assert.Equal(t, 1e-3, epsilonFor[float64](1e-3))
	assert.Equal(t, Epsilon64, epsilonFor[float64](0))
}

func TestSolve_EpsilonOverride(t *testing.T) {
	// With a coarse tolerance the tiny second pivot counts as zero.
	rows := [][]float64{{1, 1, 2}, {1, 1 + 1e-6, 2}}

	_, rep := solveRows(t, rows, 1)
	assert.Equal(t, UniqueSolution, rep.Result)

	m, err := FromRows(rows)
	require.NoError(t, err)
	rep, err = SolveContext(t.Context(), m, Config{Threads: 1, Epsilon: 1e-4})
	require.NoError(t, err)
	assert.Equal(t, InfiniteSolutions, rep.Result)
}

func TestResult_Text(t *testing.T) {
	for _, r := range []Result{NoSolution, UniqueSolution, InfiniteSolutions} {
		b, err := r.MarshalText()
		require.NoError(t, err)
		var back Result
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, r, back)
	}
	assert.Equal(t, 0, int(NoSolution))
	assert.Equal(t, 1, int(UniqueSolution))
	assert.Equal(t, 2, int(InfiniteSolutions))

	_, err := Result(7).MarshalText()
	assert.Error(t, err)
	var r Result
	assert.Error(t, r.UnmarshalText([]byte("maybe")))
	assert.Equal(t, "Result(7)", Result(7).String())
}

func TestParsePivotStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    PivotStrategy
		wantErr bool
	}{
		{"", PivotFirstNonZero, false},
		{"first", PivotFirstNonZero, false},
		{"MaxAbs", PivotMaxAbs, false},
		{" partial ", PivotMaxAbs, false},
		{"complete", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePivotStrategy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownPivot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.String(), mustParse(t, got.String()).String())
		})
	}
}

func mustParse(t *testing.T, s string) PivotStrategy {
	t.Helper()
	p, err := ParsePivotStrategy(s)
	require.NoError(t, err)
	return p
}

func TestFindPivot(t *testing.T) {
	m, err := FromRows([][]float64{{0, 1}, {-3, 1}, {5, 1}, {1e-12, 1}})
	require.NoError(t, err)

	assert.Equal(t, 1, findPivot(m, 0, 0, 1e-9, PivotFirstNonZero))
	assert.Equal(t, 2, findPivot(m, 0, 0, 1e-9, PivotMaxAbs))
	assert.Equal(t, -1, findPivot(m, 0, 3, 1e-9, PivotFirstNonZero))
	assert.Equal(t, -1, findPivot(m, 0, 3, 1e-9, PivotMaxAbs))
}
