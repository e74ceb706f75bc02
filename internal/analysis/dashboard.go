package analysis

import "salesdata/internal/sales"

// Chart kinds used by dashboard panels.
const (
	ChartLine = "line"
	ChartBar  = "bar"
	ChartBarH = "barh"
	ChartPie  = "pie"
)

// ChartConfig is a render-ready chart.
type ChartConfig struct {
	ChartType string        `json:"chartType"`
	Title     string        `json:"title"`
	XAxis     string        `json:"xAxis,omitempty"`
	YAxis     string        `json:"yAxis,omitempty"`
	Series    []ChartSeries `json:"series"`
}

// ChartSeries is a named list of points.
type ChartSeries struct {
	Name string       `json:"name"`
	Data []ChartPoint `json:"data"`
}

// ChartPoint is a single labelled value.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DashboardView groups the panels of the sales dashboard.
type DashboardView struct {
	Title  string        `json:"title"`
	Panels []ChartConfig `json:"panels"`
}

type panelSpec struct {
	chartType string
	title     string
	xAxis     string
	yAxis     string
	query     Query
}

var dashboardPanels = []panelSpec{
	{ChartLine, "Monthly Revenue Trend", "Month", "Revenue ($)",
		Query{GroupBy: []string{"year_month"}, Measure: "total_amount", Aggregation: AggSum, SortBy: SortChronological}},
	{ChartBarH, "Revenue by Category", "Revenue ($)", "",
		Query{GroupBy: []string{"category"}, Measure: "total_amount", Aggregation: AggSum, SortBy: SortValueAsc}},
	{ChartPie, "Revenue by Customer Segment", "", "",
		Query{GroupBy: []string{"customer_segment"}, Measure: "total_amount", Aggregation: AggSum, SortBy: SortLabelAsc}},
	{ChartBar, "Sales by Day of Week", "", "Revenue ($)",
		Query{GroupBy: []string{"day_of_week"}, Measure: "total_amount", Aggregation: AggSum, SortBy: SortChronological}},
	{ChartBarH, "Avg Profit Margin by Category", "Profit Margin (%)", "",
		Query{GroupBy: []string{"category"}, Measure: "profit_margin", Aggregation: AggAvg, SortBy: SortValueAsc}},
	{ChartBar, "Quarterly Sales", "", "Revenue ($)",
		Query{GroupBy: []string{"year_quarter"}, Measure: "total_amount", Aggregation: AggSum, SortBy: SortChronological}},
}

// Dashboard computes the six panels of the sales performance dashboard.
func Dashboard(rows []Row) (*DashboardView, error) {
	view := &DashboardView{Title: "Sales Performance Dashboard"}
	for _, p := range dashboardPanels {
		groups, err := GroupAndAggregate(rows, p.query)
		if err != nil {
			return nil, err
		}
		points := make([]ChartPoint, 0, len(groups))
		for _, g := range groups {
			points = append(points, ChartPoint{Label: g.Key, Value: sales.Round2(g.Value)})
		}
		view.Panels = append(view.Panels, ChartConfig{
			ChartType: p.chartType,
			Title:     p.title,
			XAxis:     p.xAxis,
			YAxis:     p.yAxis,
			Series:    []ChartSeries{{Name: p.query.Measure, Data: points}},
		})
	}
	return view, nil
}
