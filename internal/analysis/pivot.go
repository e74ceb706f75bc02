package analysis

import "salesdata/internal/sales"

// PivotTable is a dense cross tabulation. Values[i][j] belongs to Index[i]
// and Columns[j]; combinations without rows hold 0.
type PivotTable struct {
	Index   []string    `json:"index"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Pivot sums value over every (x, y) combination.
func Pivot(rows []Row, x, y, value string) (*PivotTable, error) {
	getX, err := dimension(x)
	if err != nil {
		return nil, err
	}
	getY, err := dimension(y)
	if err != nil {
		return nil, err
	}
	getV, err := measure(value)
	if err != nil {
		return nil, err
	}

	cells := make(map[[2]string]float64)
	xs := make(map[string]struct{})
	ys := make(map[string]struct{})
	for i := range rows {
		r := &rows[i]
		kx, ky := getX(r), getY(r)
		xs[kx] = struct{}{}
		ys[ky] = struct{}{}
		cells[[2]string{kx, ky}] += getV(r)
	}

	t := &PivotTable{Index: sortedSet(xs), Columns: sortedSet(ys)}
	t.Values = make([][]float64, len(t.Index))
	for i, kx := range t.Index {
		t.Values[i] = make([]float64, len(t.Columns))
		for j, ky := range t.Columns {
			t.Values[i][j] = sales.Round2(cells[[2]string{kx, ky}])
		}
	}
	return t, nil
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sortLabels(out)
	return out
}
