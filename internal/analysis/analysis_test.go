package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdata/internal/sales"
)

func date(t *testing.T, s string) sales.Date {
	t.Helper()
	d, err := sales.ParseDate(s)
	require.NoError(t, err)
	return d
}

// fixture builds four sale lines over three orders:
//
//	S1 O1 Atlas x2        20.00  Premium  Mon 2024-01-01  Completed
//	S2 O1 Phone x1 -10%   90.00  Premium  Mon 2024-01-01  Completed
//	S3 O2 Phone x1       100.00  Basic    Tue 2024-01-02  Cancelled
//	S4 O3 Atlas x3        30.00  Premium  Mon 2024-04-15  Completed
func fixture(t *testing.T) []Row {
	t.Helper()
	atlas := sales.Product{ID: "P1", Name: "Atlas", Category: "Books", Subcategory: "Fiction", Price: 10, Cost: 4}
	phone := sales.Product{ID: "P2", Name: "Phone", Category: "Electronics", Subcategory: "Smartphones", Price: 100, Cost: 60}

	ds := &sales.Dataset{
		Customers: []sales.Customer{
			{ID: "C1", FirstName: "Ann", LastName: "Lee", Segment: "Premium", AgeGroup: "26-35"},
			{ID: "C2", FirstName: "Bob", LastName: "Ray", Segment: "Basic", AgeGroup: "55+"},
		},
		Products: []sales.Product{atlas, phone},
		Orders: []sales.Order{
			{ID: "O1", CustomerID: "C1", OrderDate: date(t, "2024-01-01"), ShippedDate: date(t, "2024-01-02"), DeliveredDate: date(t, "2024-01-05"), Status: sales.StatusCompleted},
			{ID: "O2", CustomerID: "C2", OrderDate: date(t, "2024-01-02"), ShippedDate: date(t, "2024-01-03"), DeliveredDate: date(t, "2024-01-04"), Status: sales.StatusCancelled},
			{ID: "O3", CustomerID: "C1", OrderDate: date(t, "2024-04-15"), ShippedDate: date(t, "2024-04-16"), DeliveredDate: date(t, "2024-04-20"), Status: sales.StatusCompleted},
		},
		Sales: []sales.Sale{
			sales.NewSale("S1", "O1", atlas, 2, 0),
			sales.NewSale("S2", "O1", phone, 1, 0.1),
			sales.NewSale("S3", "O2", phone, 1, 0),
			sales.NewSale("S4", "O3", atlas, 3, 0),
		},
	}
	return Merge(ds)
}

func saleIDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.SaleID
	}
	return ids
}

func TestMerge_DerivedColumns(t *testing.T) {
	rows := fixture(t)
	require.Len(t, rows, 4)

	r := rows[1]
	assert.Equal(t, "Phone", r.ProductName)
	assert.Equal(t, "Electronics", r.Category)
	assert.Equal(t, "Ann Lee", r.CustomerName)
	assert.Equal(t, "Premium", r.CustomerSegment)
	assert.Equal(t, 90.0, r.TotalAmount)
	assert.InDelta(t, 33.333, r.ProfitMargin, 0.001)
	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, 1, r.Month)
	assert.Equal(t, 1, r.Quarter)
	assert.Equal(t, "Monday", r.DayOfWeek)
	assert.Equal(t, "January", r.MonthName)
	assert.Equal(t, 4, r.DeliveryDays)

	assert.Equal(t, 2, rows[3].Quarter)
}

func TestMerge_MissingReferencesKeepZeroValues(t *testing.T) {
	rows := Merge(&sales.Dataset{Sales: []sales.Sale{{ID: "S9", OrderID: "nope", ProductID: "nope", TotalAmount: 0}}})
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Category)
	assert.Zero(t, rows[0].ProfitMargin)
	assert.Zero(t, rows[0].Year)
}

func bound(v float64) *float64 { return &v }

func TestFilter(t *testing.T) {
	rows := fixture(t)

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"empty keeps all", Filters{}, []string{"S1", "S2", "S3", "S4"}},
		{"single dimension", Filters{Dimensions: map[string][]string{"category": {"books"}}}, []string{"S1", "S4"}},
		{"and across, or within", Filters{Dimensions: map[string][]string{
			"category":         {"ELECTRONICS"},
			"customer_segment": {"basic", "premium"},
		}}, []string{"S2", "S3"}},
		{"date range", Filters{From: date(t, "2024-01-02")}, []string{"S3", "S4"}},
		{"closed range", Filters{From: date(t, "2024-01-01"), To: date(t, "2024-01-01")}, []string{"S1", "S2"}},
		{"min total", Filters{MinTotal: bound(50)}, []string{"S2", "S3"}},
		{"max total", Filters{MaxTotal: bound(25)}, []string{"S1"}},
		{"zero max total", Filters{MaxTotal: bound(0)}, []string{}},
		{"zero min total", Filters{MinTotal: bound(0)}, []string{"S1", "S2", "S3", "S4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(rows, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, saleIDs(got))
		})
	}

	_, err := Filter(rows, Filters{Dimensions: map[string][]string{"colour": {"red"}}})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestGroupAndAggregate(t *testing.T) {
	rows := fixture(t)

	t.Run("sum sorted by value", func(t *testing.T) {
		groups, err := GroupAndAggregate(rows, Query{GroupBy: []string{"category"}, Measure: "profit", SortBy: SortValueDesc})
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, "Electronics", groups[0].Key)
		assert.InDelta(t, 70, groups[0].Value, 1e-9)
		assert.Equal(t, 2, groups[0].Count)
		assert.InDelta(t, 30, groups[1].Value, 1e-9)
	})

	t.Run("distinct orders per customer", func(t *testing.T) {
		groups, err := GroupAndAggregate(rows, Query{GroupBy: []string{"customer_id"}, Measure: "order_id", Aggregation: AggNUnique, SortBy: SortLabelAsc})
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, []string{"C1"}, groups[0].Keys)
		assert.Equal(t, 2.0, groups[0].Value)
		assert.Equal(t, 1.0, groups[1].Value)
	})

	t.Run("multi column keys", func(t *testing.T) {
		groups, err := GroupAndAggregate(rows, Query{GroupBy: []string{"category", "order_status"}, Aggregation: AggCount, SortBy: SortLabelAsc})
		require.NoError(t, err)
		require.Len(t, groups, 3)
		assert.Equal(t, "Books / Completed", groups[0].Key)
		assert.Equal(t, 2.0, groups[0].Value)
		assert.Equal(t, []string{"Electronics", "Cancelled"}, groups[1].Keys)
	})

	t.Run("no grouping", func(t *testing.T) {
		for agg, want := range map[string]float64{AggSum: 240, AggAvg: 60, AggMin: 20, AggMax: 100, AggCount: 4} {
			groups, err := GroupAndAggregate(rows, Query{Measure: "total_amount", Aggregation: agg})
			require.NoError(t, err, agg)
			require.Len(t, groups, 1)
			assert.Equal(t, "Total", groups[0].Key)
			assert.InDelta(t, want, groups[0].Value, 1e-9, agg)
		}
	})

	t.Run("chronological weekdays and limit", func(t *testing.T) {
		groups, err := GroupAndAggregate(rows, Query{GroupBy: []string{"day_of_week"}, Measure: "quantity", SortBy: SortChronological, Limit: 1})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Monday", groups[0].Key)
		assert.Equal(t, 6.0, groups[0].Value)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := GroupAndAggregate(rows, Query{GroupBy: []string{"nope"}, Measure: "profit"})
		assert.ErrorIs(t, err, ErrUnknownColumn)
		_, err = GroupAndAggregate(rows, Query{Measure: "category"})
		assert.ErrorIs(t, err, ErrUnknownColumn)
		_, err = GroupAndAggregate(rows, Query{Measure: "profit", Aggregation: "median"})
		assert.ErrorIs(t, err, ErrUnknownAggregation)
		_, err = GroupAndAggregate(rows, Query{Measure: "profit", SortBy: "random"})
		assert.ErrorIs(t, err, ErrInvalidSort)
	})
}

func TestMetrics(t *testing.T) {
	m, err := Metrics(fixture(t))
	require.NoError(t, err)

	assert.Equal(t, 240.0, m.TotalRevenue)
	assert.Equal(t, 100.0, m.TotalProfit)
	assert.Equal(t, 3, m.TotalOrders)
	assert.Equal(t, 2, m.TotalCustomers)
	assert.Equal(t, 7, m.TotalProductsSold)
	assert.Equal(t, 80.0, m.AvgOrderValue)
	assert.Equal(t, 48.33, m.AvgProfitMargin)
	assert.Equal(t, "2024-01-01", m.FirstOrder.String())
	assert.Equal(t, "2024-04-15", m.LastOrder.String())

	_, err = Metrics(nil)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestTopPerformers(t *testing.T) {
	rows := fixture(t)

	top, err := TopPerformers(rows, "total_amount", "product_id", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, Performer{Key: "P2", Name: "Phone", Value: 190, TotalAmount: 190, Profit: 70, Quantity: 2}, top[0])

	top, err = TopPerformers(rows, "quantity", "product_id", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "P1", top[0].Key)
	assert.Equal(t, 5.0, top[0].Value)

	top, err = TopPerformers(rows, "profit", "customer_segment", 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, Performer{Key: "Premium", Value: 60}, top[0])

	_, err = TopPerformers(rows, "rating", "product_id", 5)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestTrends(t *testing.T) {
	rows := fixture(t)

	monthly, err := Trends(rows, PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Period: "2024-01", TotalAmount: 210, Profit: 82, Orders: 2, Quantity: 4},
		{Period: "2024-04", TotalAmount: 30, Profit: 18, Orders: 1, Quantity: 3},
	}, monthly)

	quarterly, err := Trends(rows, PeriodQuarter)
	require.NoError(t, err)
	require.Len(t, quarterly, 2)
	assert.Equal(t, "2024-Q1", quarterly[0].Period)
	assert.Equal(t, "2024-Q2", quarterly[1].Period)

	weekdays, err := Trends(rows, PeriodDayOfWeek)
	require.NoError(t, err)
	require.Len(t, weekdays, 2)
	assert.Equal(t, TrendPoint{Period: "Monday", TotalAmount: 140, Profit: 60, Orders: 2, Quantity: 6}, weekdays[0])
	assert.Equal(t, "Tuesday", weekdays[1].Period)

	weekly, err := Trends(rows, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, "2024-W01", weekly[0].Period)

	daily, err := Trends(rows, PeriodDay)
	require.NoError(t, err)
	assert.Len(t, daily, 3)

	_, err = Trends(rows, "fortnight")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestSummaryTable(t *testing.T) {
	summary, err := SummaryTable(fixture(t), "customer_segment", nil)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, "Premium", summary[0].Key)
	assert.Equal(t, Stat{Sum: 140, Mean: 46.67, Count: 3}, summary[0].Stats["total_amount"])
	assert.Equal(t, Stat{Sum: 6, Mean: 2, Count: 3}, summary[0].Stats["quantity"])
	assert.Equal(t, "Basic", summary[1].Key)
	assert.Equal(t, Stat{Sum: 40, Mean: 40, Count: 1}, summary[1].Stats["profit"])

	_, err = SummaryTable(fixture(t), "customer_segment", []string{"weight"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = SummaryTable(fixture(t), "planet", nil)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestPivot(t *testing.T) {
	p, err := Pivot(fixture(t), "category", "customer_segment", "total_amount")
	require.NoError(t, err)

	assert.Equal(t, []string{"Books", "Electronics"}, p.Index)
	assert.Equal(t, []string{"Basic", "Premium"}, p.Columns)
	assert.Equal(t, [][]float64{{0, 50}, {100, 90}}, p.Values)

	_, err = Pivot(fixture(t), "category", "customer_segment", "category")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestDistribution(t *testing.T) {
	d, err := Distribution(fixture(t), "quantity", 2)
	require.NoError(t, err)

	assert.Equal(t, 4, d.Count)
	assert.InDelta(t, 1.75, d.Mean, 1e-9)
	assert.Equal(t, []Bin{{Lower: 1, Upper: 2, Count: 2}, {Lower: 2, Upper: 3, Count: 2}}, d.Histogram)
	assert.Equal(t, BoxStats{Min: 1, Q1: 1, Median: 1.5, Q3: 2.25, Max: 3, LowerWhisker: 1, UpperWhisker: 3}, d.Box)

	d, err = Distribution(fixture(t)[:1], "total_amount", 0)
	require.NoError(t, err)
	assert.Len(t, d.Histogram, DefaultBins)
	assert.Equal(t, 20.0, d.Box.Median)

	_, err = Distribution(nil, "total_amount", 5)
	assert.ErrorIs(t, err, ErrNoRows)

	d, err = Distribution(fixture(t), "total_amount", MaxBins)
	require.NoError(t, err)
	assert.Len(t, d.Histogram, MaxBins)

	_, err = Distribution(fixture(t), "total_amount", MaxBins+1)
	assert.ErrorIs(t, err, ErrInvalidBins)
	_, err = Distribution(fixture(t), "total_amount", math.MaxInt)
	assert.ErrorIs(t, err, ErrInvalidBins)
}

func TestDashboard(t *testing.T) {
	view, err := Dashboard(fixture(t))
	require.NoError(t, err)
	require.Len(t, view.Panels, 6)

	monthly := view.Panels[0]
	assert.Equal(t, ChartLine, monthly.ChartType)
	assert.Equal(t, []ChartPoint{{Label: "2024-01", Value: 210}, {Label: "2024-04", Value: 30}}, monthly.Series[0].Data)

	weekdays := view.Panels[3].Series[0].Data
	require.Len(t, weekdays, 2)
	assert.Equal(t, "Monday", weekdays[0].Label)
}

func TestGeneratedDatasetAnalyses(t *testing.T) {
	ds, err := sales.Generate(sales.Options{
		Seed: 99, Customers: 30, Products: 20, Orders: 120,
		AsOf: sales.NewDate(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	rows := Merge(ds)

	m, err := Metrics(rows)
	require.NoError(t, err)
	assert.Equal(t, ds.Manifest.TotalRevenue, m.TotalRevenue)
	assert.Equal(t, ds.Manifest.Orders, m.TotalOrders)

	trend, err := Trends(rows, PeriodMonth)
	require.NoError(t, err)
	var total float64
	for _, p := range trend {
		total += p.TotalAmount
	}
	assert.InDelta(t, m.TotalRevenue, total, 0.05)

	_, err = Dashboard(rows)
	assert.NoError(t, err)
}
