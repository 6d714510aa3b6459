package solver

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidVariables is returned when variable names do not match the
// coefficient columns.
var ErrInvalidVariables = errors.New("solver: invalid variable names")

// normalizeVariables returns NFC-normalized, trimmed names. Names that are
// equal after normalization count as duplicates. An empty list is allowed.
func normalizeVariables(names []string, nvars int) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if len(names) != nvars {
		return nil, fmt.Errorf("got %d names for %d variables: %w", len(names), nvars, ErrInvalidVariables)
	}
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		n = strings.TrimSpace(norm.NFC.String(n))
		if n == "" {
			return nil, fmt.Errorf("name %d is empty: %w", i, ErrInvalidVariables)
		}
		if j, dup := seen[n]; dup {
			return nil, fmt.Errorf("names %d and %d are both %q: %w", j, i, n, ErrInvalidVariables)
		}
		seen[n] = i
		out[i] = n
	}
	return out, nil
}

func nameValues(names []string, values []float64) map[string]float64 {
	if len(names) == 0 || len(values) != len(names) {
		return nil
	}
	out := make(map[string]float64, len(names))
	for i, n := range names {
		out[n] = values[i]
	}
	return out
}
