package analysis

import (
	"fmt"
	"sort"

	"salesdata/internal/sales"
)

// Performer is one entry of a top-N ranking.
type Performer struct {
	Key         string  `json:"key"`
	Name        string  `json:"name,omitempty"`
	Value       float64 `json:"value"`
	TotalAmount float64 `json:"total_amount,omitempty"`
	Profit      float64 `json:"profit,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
}

// TopPerformers ranks groups by the sum of metric. Grouping by product_id
// also reports the product name together with revenue, profit and units, in
// which case metric must be one of those three.
func TopPerformers(rows []Row, metric, groupBy string, n int) ([]Performer, error) {
	if metric == "" {
		metric = "total_amount"
	}
	if groupBy == "" {
		groupBy = "product_id"
	}
	if n <= 0 {
		n = 10
	}

	if groupBy == "product_id" {
		return topProducts(rows, metric, n)
	}

	groups, err := GroupAndAggregate(rows, Query{
		GroupBy:     []string{groupBy},
		Measure:     metric,
		Aggregation: AggSum,
		SortBy:      SortValueDesc,
		Limit:       n,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Performer, 0, len(groups))
	for _, g := range groups {
		out = append(out, Performer{Key: g.Key, Value: sales.Round2(g.Value)})
	}
	return out, nil
}

func topProducts(rows []Row, metric string, n int) ([]Performer, error) {
	var pick func(*Performer) float64
	switch metric {
	case "total_amount":
		pick = func(p *Performer) float64 { return p.TotalAmount }
	case "profit":
		pick = func(p *Performer) float64 { return p.Profit }
	case "quantity":
		pick = func(p *Performer) float64 { return float64(p.Quantity) }
	default:
		return nil, fmt.Errorf("%w: %q cannot rank products", ErrUnknownColumn, metric)
	}

	index := make(map[string]int)
	var out []Performer
	for _, r := range rows {
		pos, ok := index[r.ProductID]
		if !ok {
			pos = len(out)
			index[r.ProductID] = pos
			out = append(out, Performer{Key: r.ProductID, Name: r.ProductName})
		}
		out[pos].TotalAmount += r.TotalAmount
		out[pos].Profit += r.Profit
		out[pos].Quantity += r.Quantity
	}
	for i := range out {
		out[i].TotalAmount = sales.Round2(out[i].TotalAmount)
		out[i].Profit = sales.Round2(out[i].Profit)
		out[i].Value = pick(&out[i])
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
