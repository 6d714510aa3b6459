package linsys

import "errors"

// Precondition and resource failures. Numerical degeneracy is never an
// error: it is reported through Result.
var (
	// ErrInvalidDimensions is returned when rows <= 0 or cols <= 1.
	ErrInvalidDimensions = errors.New("linsys: rows must be > 0 and cols must be > 1")

	// ErrBufferTooSmall is returned when the backing buffer holds fewer than rows*cols values.
	ErrBufferTooSmall = errors.New("linsys: buffer shorter than rows*cols")

	// ErrDimensionMismatch is returned for ragged row input or mismatched operands.
	ErrDimensionMismatch = errors.New("linsys: dimension mismatch")

	// ErrInvalidThreadCount is returned when the requested worker count is <= 0.
	ErrInvalidThreadCount = errors.New("linsys: thread count must be > 0")

	// ErrInvalidEpsilon is returned for a negative, NaN or infinite tolerance override.
	ErrInvalidEpsilon = errors.New("linsys: epsilon must be finite and >= 0")

	// ErrNonFinite is returned when the input contains NaN or ±Inf.
	ErrNonFinite = errors.New("linsys: NaN or Inf in input")

	// ErrNilMatrix is returned when a nil *Matrix is passed in.
	ErrNilMatrix = errors.New("linsys: nil matrix")

	// ErrIndexOutOfRange is the panic value of out-of-bounds accessors.
	ErrIndexOutOfRange = errors.New("linsys: index out of range")

	// ErrWorkerFailed is returned when an elimination worker aborts. The
	// matrix is left partially eliminated and must be discarded.
	ErrWorkerFailed = errors.New("linsys: elimination worker failed")

	// ErrCanceled wraps the context error when a solve is interrupted.
	ErrCanceled = errors.New("linsys: solve canceled")

	// ErrNotUnique is returned when a unique solution is requested from a
	// system classified otherwise.
	ErrNotUnique = errors.New("linsys: system has no unique solution")

	// ErrUnknownPivot is returned when parsing an unsupported pivot strategy name.
	ErrUnknownPivot = errors.New("linsys: unknown pivot strategy")
)
