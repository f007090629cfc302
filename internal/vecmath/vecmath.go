// Package vecmath implements sparse term-weight vector operations.
package vecmath

import (
	"math"
	"sort"
)

// Vector is a sparse mapping from term to weight.
type Vector map[string]float64

// Dot returns the dot product of a and b.
func Dot(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for _, k := range sortedKeys(a) {
		if w, ok := b[k]; ok {
			sum += a[k] * w
		}
	}
	return sum
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v Vector) float64 {
	return math.Sqrt(sumSquares(v))
}

// CosineDistance returns 1 - cos(a, b). An empty or zero-magnitude vector
// on either side yields 1.
func CosineDistance(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	na, nb := sumSquares(a), sumSquares(b)
	if na == 0 || nb == 0 {
		return 1
	}
	// Summing in key order keeps Dot(v, v) bit-identical to sumSquares(v),
	// so CosineDistance(v, v) is exactly 0.
	return 1 - Dot(a, b)/math.Sqrt(na*nb)
}

// CosineSimilarity returns 1 - CosineDistance(a, b), clamped to [0, 1].
func CosineSimilarity(a, b Vector) float64 {
	s := 1 - CosineDistance(a, b)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Normalize returns v scaled to unit length. Zero vectors are returned as an
// empty copy.
func Normalize(v Vector) Vector {
	out := make(Vector, len(v))
	m := Magnitude(v)
	if m == 0 {
		return out
	}
	for k, w := range v {
		out[k] = w / m
	}
	return out
}

// Merge returns the weighted average of vectors. Missing or non-positive
// weights count as 1.
func Merge(vectors []Vector, weights []float64) Vector {
	out := make(Vector)
	var total float64
	for i, v := range vectors {
		w := 1.0
		if i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		total += w
		for k, x := range v {
			out[k] += x * w
		}
	}
	if total == 0 {
		return out
	}
	for k := range out {
		out[k] /= total
	}
	return out
}

func sumSquares(v Vector) float64 {
	var sum float64
	for _, k := range sortedKeys(v) {
		sum += v[k] * v[k]
	}
	return sum
}

func sortedKeys(v Vector) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
