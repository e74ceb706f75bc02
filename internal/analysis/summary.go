package analysis

import (
	"fmt"
	"sort"

	"salesdata/internal/sales"
)

// DefaultSummaryMetrics are used when SummaryTable gets no metrics.
var DefaultSummaryMetrics = []string{"total_amount", "profit", "quantity"}

// Stat holds sum, mean and count of one metric within a group.
type Stat struct {
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// SummaryRow is one group of a summary table.
type SummaryRow struct {
	Key   string          `json:"key"`
	Stats map[string]Stat `json:"stats"`
}

// SummaryTable computes sum, mean and count of each metric per group,
// rounded to cents and sorted by the first metric's sum, largest first.
func SummaryTable(rows []Row, groupBy string, metrics []string) ([]SummaryRow, error) {
	if len(metrics) == 0 {
		metrics = DefaultSummaryMetrics
	}
	getters := make([]measureFunc, len(metrics))
	for i, name := range metrics {
		get, err := measure(name)
		if err != nil {
			return nil, err
		}
		getters[i] = get
	}

	groups, err := groupRows(rows, []string{groupBy})
	if err != nil {
		return nil, fmt.Errorf("summary by %q: %w", groupBy, err)
	}

	out := make([]SummaryRow, 0, len(groups))
	for _, g := range groups {
		row := SummaryRow{Key: g.Key, Stats: make(map[string]Stat, len(metrics))}
		for i, name := range metrics {
			sum := sumOf(rows, g.rows, getters[i])
			row.Stats[name] = Stat{
				Sum:   sales.Round2(sum),
				Mean:  sales.Round2(sum / float64(len(g.rows))),
				Count: len(g.rows),
			}
		}
		out = append(out, row)
	}

	first := metrics[0]
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stats[first].Sum > out[j].Stats[first].Sum })
	return out, nil
}
