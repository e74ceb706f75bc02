package analysis

import (
	"fmt"
	"sort"

	"salesdata/internal/sales"
)

// Periods supported by Trends.
const (
	PeriodDay       = "day"
	PeriodWeek      = "week"
	PeriodMonth     = "month"
	PeriodQuarter   = "quarter"
	PeriodDayOfWeek = "day_of_week"
)

// TrendPoint aggregates one period.
type TrendPoint struct {
	Period      string  `json:"period"`
	TotalAmount float64 `json:"total_amount"`
	Profit      float64 `json:"profit"`
	Orders      int     `json:"orders"`
	Quantity    int     `json:"quantity"`
}

// Trends buckets rows by period and returns revenue, profit, distinct
// orders and units per bucket in chronological order.
func Trends(rows []Row, period string) ([]TrendPoint, error) {
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter, PeriodDayOfWeek:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	index := make(map[string]int)
	orders := make([]map[string]struct{}, 0)
	var points []TrendPoint
	for i := range rows {
		r := &rows[i]
		key := periodKey(r, period)
		pos, ok := index[key]
		if !ok {
			pos = len(points)
			index[key] = pos
			points = append(points, TrendPoint{Period: key})
			orders = append(orders, make(map[string]struct{}))
		}
		points[pos].TotalAmount += r.TotalAmount
		points[pos].Profit += r.Profit
		points[pos].Quantity += r.Quantity
		orders[pos][r.OrderID] = struct{}{}
	}
	for i := range points {
		points[i].Orders = len(orders[i])
		points[i].TotalAmount = sales.Round2(points[i].TotalAmount)
		points[i].Profit = sales.Round2(points[i].Profit)
	}

	sort.SliceStable(points, func(i, j int) bool { return labelLess(points[i].Period, points[j].Period) })
	return points, nil
}

// periodKey formats the order date of r as a sortable period label.
func periodKey(r *Row, period string) string {
	d := r.OrderDate
	switch period {
	case PeriodDay:
		return d.String()
	case PeriodWeek:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
	case PeriodQuarter:
		return fmt.Sprintf("%04d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	case PeriodDayOfWeek:
		return d.Weekday().String()
	}
	return ""
}
