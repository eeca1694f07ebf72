package report

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientSamples is returned by spread statistics on fewer than two
// samples (sample standard deviation is undefined for <2 points).
var ErrInsufficientSamples = errors.New("insufficient samples: statistic requires more values")

// Stats is a mean/median/stdev triple. A nil field means the statistic is
// undefined for the available sample count: mean and median need one
// sample, stdev needs two.
type Stats struct {
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Stdev  *float64 `json:"stdev"`
}

// Mean returns the arithmetic mean of xs.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrInsufficientSamples
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), nil
}

// Median returns the middle value of xs (the mean of the two middle values
// for even-length input). xs is not modified.
func Median(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrInsufficientSamples
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}

// Stdev returns the sample standard deviation of xs.
func Stdev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, ErrInsufficientSamples
	}
	m, _ := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1)), nil
}

// describe computes all three statistics, leaving undefined ones nil.
func describe(xs []float64) Stats {
	var s Stats
	if m, err := Mean(xs); err == nil {
		s.Mean = &m
	}
	if m, err := Median(xs); err == nil {
		s.Median = &m
	}
	if sd, err := Stdev(xs); err == nil {
		s.Stdev = &sd
	}
	return s
}
