package fixtures

import "math"

// GenerateTestVector creates a deterministic vector of the given dimension.
//
// Example:
//
//	vec := GenerateTestVector(8, 0.1) // [0.1, 0.101, 0.102, ...]
func GenerateTestVector(dimension int, seed float32) []float32 {
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = seed + float32(i)*0.001
	}
	return vec
}

// UnitVector has 1.0 at index and 0.0 elsewhere.
func UnitVector(dimension, index int) []float32 {
	vec := make([]float32, dimension)
	if index >= 0 && index < dimension {
		vec[index] = 1.0
	}
	return vec
}

// NormalizedVector is GenerateTestVector scaled to unit length.
func NormalizedVector(dimension int, seed float32) []float32 {
	vec := GenerateTestVector(dimension, seed)
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if mag := float32(math.Sqrt(sum)); mag > 0 {
		for i := range vec {
			vec[i] /= mag
		}
	}
	return vec
}

// Blend returns a*(1-t) + b*t. Blending two orthogonal unit vectors moves the
// cosine similarity to a smoothly between 1 and 0.
func Blend(a, b []float32, t float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i]*(1-t) + b[i]*t
	}
	return out
}
