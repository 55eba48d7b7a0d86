// Package timeseries provides the shared year axis and missing-value aware
// summary statistics used throughout the pipeline.
//
// Missing cells are represented as NaN everywhere. A data quality exclusion
// is a missing cell, never a zero, and every summary in this package skips
// missing values rather than letting them poison the aggregate.
package timeseries

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Missing returns the canonical missing value.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is a missing cell.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Axis is a closed year interval with dense integer indexing.
type Axis struct {
	Start int
	End   int
}

// Len returns the number of years on the axis.
func (a Axis) Len() int {
	return a.End - a.Start + 1
}

// Index maps a calendar year to its axis position.
func (a Axis) Index(year int) (int, bool) {
	if year < a.Start || year > a.End {
		return 0, false
	}
	return year - a.Start, true
}

// Year maps an axis position back to its calendar year.
func (a Axis) Year(i int) int {
	return a.Start + i
}

// Years returns all calendar years on the axis in order.
func (a Axis) Years() []int {
	ys := make([]int, a.Len())
	for i := range ys {
		ys[i] = a.Start + i
	}
	return ys
}

// Present filters out missing values, preserving order.
func Present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean over present values, or missing if none are present.
func Mean(values []float64) float64 {
	p := Present(values)
	if len(p) == 0 {
		return Missing()
	}
	return stat.Mean(p, nil)
}

// StdDev returns the sample standard deviation over present values, or
// missing when fewer than two are present.
func StdDev(values []float64) float64 {
	p := Present(values)
	if len(p) < 2 {
		return Missing()
	}
	return stat.StdDev(p, nil)
}

// Median returns the median over present values, or missing if none.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Quantile returns the empirical q-quantile over present values, or missing
// if none are present.
func Quantile(values []float64, q float64) float64 {
	p := Present(values)
	if len(p) == 0 {
		return Missing()
	}
	sort.Float64s(p)
	return stat.Quantile(q, stat.Empirical, p, nil)
}

// Summary holds the scalar summary of one sampled quantity.
type Summary struct {
	Mean   float64
	SD     float64
	Lower  float64 // 2.5 percentile
	Q25    float64 // lower quartile
	Q75    float64 // upper quartile
	Upper  float64 // 97.5 percentile
	N      int     // number of present values summarized
}

// Summarize computes the standard summary over present values. A summary over
// zero present values has all fields missing and N zero.
func Summarize(values []float64) Summary {
	p := Present(values)
	if len(p) == 0 {
		return Summary{
			Mean: Missing(), SD: Missing(),
			Lower: Missing(), Q25: Missing(), Q75: Missing(), Upper: Missing(),
		}
	}
	sort.Float64s(p)
	s := Summary{
		Mean: stat.Mean(p, nil),
		SD:   Missing(),
		N:    len(p),
	}
	if len(p) > 1 {
		s.SD = stat.StdDev(p, nil)
	}
	s.Lower = stat.Quantile(0.025, stat.Empirical, p, nil)
	s.Q25 = stat.Quantile(0.25, stat.Empirical, p, nil)
	s.Q75 = stat.Quantile(0.75, stat.Empirical, p, nil)
	s.Upper = stat.Quantile(0.975, stat.Empirical, p, nil)
	return s
}
