package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats is the cached summary of a column. Numeric fields are zero for
// non-numeric columns; Count is then the number of non-null entries.
type Stats struct {
	Count    int
	Nulls    int
	Mean     float64
	Std      float64 // sample standard deviation
	Min      float64
	Max      float64
	Q1       float64
	Median   float64
	Q3       float64
	Skew     float64
	Kurtosis float64 // excess kurtosis
}

func computeStats(c *Column) Stats {
	s := Stats{Nulls: c.NullCount()}
	if c.kind != Numeric {
		s.Count = len(c.values) - s.Nulls
		return s
	}
	vals, _ := c.Floats()
	s.Count = len(vals)
	if s.Count == 0 {
		return s
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	s.Q1 = Quantile(sorted, 0.25)
	s.Median = Quantile(sorted, 0.5)
	s.Q3 = Quantile(sorted, 0.75)
	s.Mean, s.Std = MeanStd(vals)
	s.Skew = Skewness(vals)
	if s.Count > 3 && s.Std > 0 {
		s.Kurtosis = stat.ExKurtosis(vals, nil)
	}
	return s
}

// MeanStd returns the mean and sample standard deviation of vals.
func MeanStd(vals []float64) (mean, std float64) {
	switch len(vals) {
	case 0:
		return 0, 0
	case 1:
		return vals[0], 0
	}
	mean, std = stat.MeanStdDev(vals, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// Skewness is the adjusted Fisher-Pearson sample skewness. Fewer than three
// values or zero variance yield 0.
func Skewness(vals []float64) float64 {
	if len(vals) < 3 {
		return 0
	}
	if floats.Min(vals) == floats.Max(vals) {
		return 0
	}
	s := stat.Skew(vals, nil)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// Quantile interpolates linearly between the closest ranks of a sorted slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Median returns the median of unsorted values without modifying them.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	return Quantile(cp, 0.5)
}

// MedianMAD computes the median and the median absolute deviation of vals.
func MedianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	median = Median(vals)
	dev := make([]float64, len(vals))
	for i, v := range vals {
		dev[i] = math.Abs(v - median)
	}
	mad = Median(dev)
	return median, mad
}
