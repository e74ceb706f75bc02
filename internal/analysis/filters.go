package analysis

import (
	"strings"

	"salesdata/internal/sales"
)

// Filters select rows. Dimension values are OR-combined within a column and
// AND-combined across columns, compared case-insensitively. Zero dates and
// nil totals do not restrict.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions"`
	From       sales.Date          `json:"from"`
	To         sales.Date          `json:"to"`
	MinTotal   *float64            `json:"min_total,omitempty"`
	MaxTotal   *float64            `json:"max_total,omitempty"`
}

// IsEmpty reports whether the filters would keep every row.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return f.From.IsZero() && f.To.IsZero() && f.MinTotal == nil && f.MaxTotal == nil
}

// Filter returns the rows matching f in their original order.
func Filter(rows []Row, f Filters) ([]Row, error) {
	if f.IsEmpty() {
		return rows, nil
	}

	type dimensionSet struct {
		get     dimensionFunc
		allowed map[string]bool
	}
	var sets []dimensionSet
	for name, allowed := range f.Dimensions {
		if len(allowed) == 0 {
			continue
		}
		get, err := dimension(name)
		if err != nil {
			return nil, err
		}
		sets = append(sets, dimensionSet{get: get, allowed: toLowerSet(allowed)})
	}

	out := make([]Row, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		if !f.From.IsZero() && r.OrderDate.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && r.OrderDate.After(f.To.Time) {
			continue
		}
		if f.MinTotal != nil && r.TotalAmount < *f.MinTotal {
			continue
		}
		if f.MaxTotal != nil && r.TotalAmount > *f.MaxTotal {
			continue
		}

		pass := true
		for _, set := range sets {
			if !set.allowed[strings.ToLower(set.get(r))] {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, *r)
		}
	}
	return out, nil
}

func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = true
	}
	return set
}
