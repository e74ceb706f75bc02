package analysis

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultBins is the histogram resolution used when none is given.
	DefaultBins = 30
	// MaxBins bounds the histogram resolution.
	MaxBins = 1000
)

// Bin is one histogram bucket, [Lower, Upper) except the last which is closed.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// BoxStats are the statistics behind a box plot. Whiskers reach the most
// extreme values within 1.5 IQR of the quartiles.
type BoxStats struct {
	Min          float64 `json:"min"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	Max          float64 `json:"max"`
	LowerWhisker float64 `json:"lower_whisker"`
	UpperWhisker float64 `json:"upper_whisker"`
	Outliers     int     `json:"outliers"`
}

// DistributionResult describes one numeric column.
type DistributionResult struct {
	Column    string   `json:"column"`
	Count     int      `json:"count"`
	Mean      float64  `json:"mean"`
	Std       float64  `json:"std"`
	Histogram []Bin    `json:"histogram"`
	Box       BoxStats `json:"box"`
}

// Distribution builds a histogram and box statistics for column.
func Distribution(rows []Row, column string, bins int) (*DistributionResult, error) {
	get, err := measure(column)
	if err != nil {
		return nil, err
	}
	if bins > MaxBins {
		return nil, fmt.Errorf("%w: %d, at most %d", ErrInvalidBins, bins, MaxBins)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: cannot describe %q", ErrNoRows, column)
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	values := make([]float64, len(rows))
	var sum float64
	for i := range rows {
		values[i] = get(&rows[i])
		sum += values[i]
	}
	sort.Float64s(values)

	res := &DistributionResult{
		Column: column,
		Count:  len(values),
		Mean:   sum / float64(len(values)),
	}
	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			sq += (v - res.Mean) * (v - res.Mean)
		}
		res.Std = math.Sqrt(sq / float64(len(values)-1))
	}
	res.Histogram = histogram(values, bins)
	res.Box = boxStats(values)
	return res, nil
}

// histogram expects sorted values. A constant column gets a unit-wide range
// centred on its value.
func histogram(values []float64, bins int) []Bin {
	lo, hi := values[0], values[len(values)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		out[i].Count++
	}
	return out
}

func boxStats(sorted []float64) BoxStats {
	b := BoxStats{
		Min:    sorted[0],
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
	iqr := b.Q3 - b.Q1
	lowFence, highFence := b.Q1-1.5*iqr, b.Q3+1.5*iqr

	b.LowerWhisker, b.UpperWhisker = b.Max, b.Min
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			b.Outliers++
			continue
		}
		b.LowerWhisker = math.Min(b.LowerWhisker, v)
		b.UpperWhisker = math.Max(b.UpperWhisker, v)
	}
	return b
}

// quantile interpolates linearly between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
