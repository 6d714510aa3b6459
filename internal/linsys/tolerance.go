package linsys

import (
	"math"
	"unsafe"

	"github.com/23skdu/longbow-jordan/internal/simd"
)

// Float is the element type of an augmented matrix.
type Float = simd.Float

const (
	// Epsilon64 is the zero threshold for float64 elements.
	Epsilon64 = 1e-9
	// Epsilon32 is the zero threshold for float32 elements. Single precision
	// carries ~7 significant digits, so 1e-9 would never trigger after a few
	// rounds of elimination.
	Epsilon32 = 1e-5
)

// DefaultEpsilon returns the zero threshold matching the width of T.
func DefaultEpsilon[T Float]() T {
	var zero T
	if unsafe.Sizeof(zero) == 4 {
		return T(Epsilon32)
	}
	return T(Epsilon64)
}

// epsilonFor resolves a Config override (0 = default) into T.
func epsilonFor[T Float](override float64) T {
	if override > 0 {
		return T(override)
	}
	return DefaultEpsilon[T]()
}

// IsZero reports whether |x| < eps.
func IsZero[T Float](x, eps T) bool {
	if x < 0 {
		x = -x
	}
	return x < eps
}

func isFinite[T Float](x T) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
