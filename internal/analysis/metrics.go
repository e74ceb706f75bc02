package analysis

import (
	"fmt"

	"salesdata/internal/sales"
)

// BusinessMetrics are the headline numbers of a frame.
type BusinessMetrics struct {
	TotalRevenue      float64    `json:"total_revenue"`
	TotalProfit       float64    `json:"total_profit"`
	TotalOrders       int        `json:"total_orders"`
	TotalCustomers    int        `json:"total_customers"`
	TotalProductsSold int        `json:"total_products_sold"`
	AvgOrderValue     float64    `json:"avg_order_value"`
	AvgProfitMargin   float64    `json:"avg_profit_margin"`
	FirstOrder        sales.Date `json:"first_order"`
	LastOrder         sales.Date `json:"last_order"`
}

// Metrics computes BusinessMetrics. The average order value is the mean of
// per-order totals, not of individual lines.
func Metrics(rows []Row) (BusinessMetrics, error) {
	if len(rows) == 0 {
		return BusinessMetrics{}, fmt.Errorf("%w: cannot compute metrics", ErrNoRows)
	}

	var m BusinessMetrics
	orderTotals := make(map[string]float64)
	customers := make(map[string]struct{})
	var marginSum float64
	for i, r := range rows {
		m.TotalRevenue += r.TotalAmount
		m.TotalProfit += r.Profit
		m.TotalProductsSold += r.Quantity
		marginSum += r.ProfitMargin
		orderTotals[r.OrderID] += r.TotalAmount
		customers[r.CustomerID] = struct{}{}

		if i == 0 || r.OrderDate.Before(m.FirstOrder.Time) {
			m.FirstOrder = r.OrderDate
		}
		if i == 0 || r.OrderDate.After(m.LastOrder.Time) {
			m.LastOrder = r.OrderDate
		}
	}

	m.TotalOrders = len(orderTotals)
	m.TotalCustomers = len(customers)
	m.AvgOrderValue = sales.Round2(m.TotalRevenue / float64(m.TotalOrders))
	m.AvgProfitMargin = sales.Round2(marginSum / float64(len(rows)))
	m.TotalRevenue = sales.Round2(m.TotalRevenue)
	m.TotalProfit = sales.Round2(m.TotalProfit)
	return m, nil
}
