package simd

// Float is the element constraint shared by every kernel in this package.
type Float interface {
	~float32 | ~float64
}

// AxpyUnrolled performs dst += src * alpha
func AxpyUnrolled[T Float](dst, src []T, alpha T) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	dst = dst[:n]
	src = src[:n]

	// Unrolled loop for better pipelining
	i := 0
	for ; i <= n-4; i += 4 {
		dst[i] += src[i] * alpha
		dst[i+1] += src[i+1] * alpha
		dst[i+2] += src[i+2] * alpha
		dst[i+3] += src[i+3] * alpha
	}
	// Handle remainder
	for ; i < n; i++ {
		dst[i] += src[i] * alpha
	}
}

// ScaleUnrolled performs dst *= alpha
func ScaleUnrolled[T Float](dst []T, alpha T) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] *= alpha
		dst[i+1] *= alpha
		dst[i+2] *= alpha
		dst[i+3] *= alpha
	}
	for ; i < len(dst); i++ {
		dst[i] *= alpha
	}
}

// DivUnrolled performs dst /= d.
// Division is kept instead of multiplying by 1/d so that results match a
// plain element-wise divide bit for bit.
func DivUnrolled[T Float](dst []T, d T) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] /= d
		dst[i+1] /= d
		dst[i+2] /= d
		dst[i+3] /= d
	}
	for ; i < len(dst); i++ {
		dst[i] /= d
	}
}

// Swap exchanges the contents of a and b element by element.
func Swap[T Float](a, b []T) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		a[i], b[i] = b[i], a[i]
	}
}

// DotProduct computes the dot product of two vectors
func DotProduct[T Float](a, b []T) T {
	var sum T
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for ; i <= n-4; i += 4 {
		sum += a[i] * b[i]
		sum += a[i+1] * b[i+1]
		sum += a[i+2] * b[i+2]
		sum += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// MatVecMul performs dst = mat * vec where mat is rows x stride row-major and
// only the first len(vec) columns of each row take part.
func MatVecMul[T Float](dst, mat, vec []T, rows, stride int) {
	for i := 0; i < rows; i++ {
		rowStart := i * stride
		dst[i] = DotProduct(mat[rowStart:rowStart+len(vec)], vec)
	}
}

// MaxAbsIndex returns the index of the element with the largest magnitude,
// or -1 for an empty slice. Ties resolve to the lowest index.
func MaxAbsIndex[T Float](x []T) int {
	best := -1
	var bestAbs T
	for i, v := range x {
		if v < 0 {
			v = -v
		}
		if best < 0 || v > bestAbs {
			best = i
			bestAbs = v
		}
	}
	return best
}
