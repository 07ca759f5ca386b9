// Package vecmath holds the small amount of float32 vector arithmetic needed for
// embedding comparison and story centroids.
package vecmath

import "math"

// Cosine returns the cosine similarity of a and b.
// Vectors of different length or with zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize returns a unit-length copy of v. A zero vector yields a zero vector.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// RunningMean folds vec into a mean that already covers count vectors and returns
// the new mean and count. An empty mean is seeded with vec. A vec whose dimension
// differs from the mean is ignored.
func RunningMean(mean []float32, count int, vec []float32) ([]float32, int) {
	if len(vec) == 0 {
		return mean, count
	}
	if len(mean) == 0 || count <= 0 {
		return append([]float32(nil), vec...), 1
	}
	if len(mean) != len(vec) {
		return mean, count
	}
	n := float64(count + 1)
	out := make([]float32, len(mean))
	for i := range mean {
		out[i] = float32(float64(mean[i]) + (float64(vec[i])-float64(mean[i]))/n)
	}
	return out, count + 1
}
