package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Aggregations supported by GroupAndAggregate.
const (
	AggSum     = "sum"
	AggCount   = "count"
	AggAvg     = "avg"
	AggMean    = "mean"
	AggMin     = "min"
	AggMax     = "max"
	AggNUnique = "nunique"
)

// Sort modes supported by GroupAndAggregate.
const (
	SortValueDesc     = "value_desc"
	SortValueAsc      = "value_asc"
	SortLabelAsc      = "label_asc"
	SortLabelDesc     = "label_desc"
	SortChronological = "chronological"
)

// Query describes a group → aggregate → sort → limit pipeline.
type Query struct {
	GroupBy     []string `json:"group_by"`
	Measure     string   `json:"measure"`
	Aggregation string   `json:"aggregation"`
	SortBy      string   `json:"sort_by"`
	Limit       int      `json:"limit"`
}

// Group is one aggregated group. Keys holds one value per GroupBy column.
type Group struct {
	Key   string   `json:"key"`
	Keys  []string `json:"keys"`
	Value float64  `json:"value"`
	Count int      `json:"count"`

	rows []int
}

// GroupAndAggregate runs q over rows. Without GroupBy a single "Total" group
// is returned. Groups keep first-seen order unless q.SortBy says otherwise.
func GroupAndAggregate(rows []Row, q Query) ([]Group, error) {
	agg := strings.ToLower(q.Aggregation)
	if agg == "" {
		agg = AggSum
	}
	value, err := aggregator(agg, q.Measure)
	if err != nil {
		return nil, err
	}

	groups, err := groupRows(rows, q.GroupBy)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Count = len(groups[i].rows)
		groups[i].Value = value(rows, groups[i].rows)
	}

	if err := sortGroups(groups, q.SortBy); err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(groups) > q.Limit {
		groups = groups[:q.Limit]
	}
	return groups, nil
}

func groupRows(rows []Row, groupBy []string) ([]Group, error) {
	if len(groupBy) == 0 {
		all := make([]int, len(rows))
		for i := range rows {
			all[i] = i
		}
		return []Group{{Key: "Total", Keys: []string{"Total"}, rows: all}}, nil
	}

	getters := make([]dimensionFunc, len(groupBy))
	for i, name := range groupBy {
		get, err := dimension(name)
		if err != nil {
			return nil, err
		}
		getters[i] = get
	}

	index := make(map[string]int)
	var groups []Group
	for i := range rows {
		keys := make([]string, len(getters))
		for j, get := range getters {
			keys[j] = get(&rows[i])
		}
		key := strings.Join(keys, " / ")
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, Group{Key: key, Keys: keys})
		}
		groups[pos].rows = append(groups[pos].rows, i)
	}
	return groups, nil
}

type aggregateFunc func(rows []Row, idx []int) float64

func aggregator(agg, column string) (aggregateFunc, error) {
	if agg == AggCount {
		return func(_ []Row, idx []int) float64 { return float64(len(idx)) }, nil
	}
	if agg == AggNUnique {
		key, err := uniqueKey(column)
		if err != nil {
			return nil, err
		}
		return func(rows []Row, idx []int) float64 {
			seen := make(map[string]struct{}, len(idx))
			for _, i := range idx {
				seen[key(&rows[i])] = struct{}{}
			}
			return float64(len(seen))
		}, nil
	}

	get, err := measure(column)
	if err != nil {
		return nil, err
	}
	switch agg {
	case AggSum:
		return func(rows []Row, idx []int) float64 { return sumOf(rows, idx, get) }, nil
	case AggAvg, AggMean:
		return func(rows []Row, idx []int) float64 {
			if len(idx) == 0 {
				return 0
			}
			return sumOf(rows, idx, get) / float64(len(idx))
		}, nil
	case AggMin:
		return func(rows []Row, idx []int) float64 { return extremeOf(rows, idx, get, -1) }, nil
	case AggMax:
		return func(rows []Row, idx []int) float64 { return extremeOf(rows, idx, get, 1) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAggregation, agg)
	}
}

// uniqueKey resolves a column for distinct counting; dimensions win over measures.
func uniqueKey(column string) (dimensionFunc, error) {
	if get, ok := dimensions[column]; ok {
		return get, nil
	}
	get, err := measure(column)
	if err != nil {
		return nil, err
	}
	return func(r *Row) string { return strconv.FormatFloat(get(r), 'f', -1, 64) }, nil
}

func sumOf(rows []Row, idx []int, get measureFunc) float64 {
	var total float64
	for _, i := range idx {
		total += get(&rows[i])
	}
	return total
}

// extremeOf returns the max when sign is 1 and the min when sign is -1.
func extremeOf(rows []Row, idx []int, get measureFunc, sign float64) float64 {
	if len(idx) == 0 {
		return 0
	}
	best := math.Inf(-int(sign))
	for _, i := range idx {
		v := get(&rows[i])
		if v*sign > best*sign {
			best = v
		}
	}
	return best
}

func sortGroups(groups []Group, sortBy string) error {
	switch sortBy {
	case "":
	case SortValueDesc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case SortValueAsc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case SortLabelAsc, SortChronological:
		sort.SliceStable(groups, func(i, j int) bool { return keysLess(groups[i].Keys, groups[j].Keys) })
	case SortLabelDesc:
		sort.SliceStable(groups, func(i, j int) bool { return keysLess(groups[j].Keys, groups[i].Keys) })
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSort, sortBy)
	}
	return nil
}

func keysLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return labelLess(a[i], b[i])
		}
	}
	return len(a) < len(b)
}
