// Package analysis answers questions over a generated sales dataset: it
// joins the normalized tables into one wide frame and filters, groups and
// aggregates it by column name.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"salesdata/internal/sales"
)

var (
	// ErrUnknownColumn is returned when a column name is not part of Row.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnknownAggregation is returned for an unsupported aggregation.
	ErrUnknownAggregation = errors.New("unknown aggregation")
	// ErrInvalidPeriod is returned by Trends for an unsupported period.
	ErrInvalidPeriod = errors.New("invalid time period")
	// ErrInvalidSort is returned for an unsupported sort mode.
	ErrInvalidSort = errors.New("invalid sort mode")
	// ErrNoRows is returned when an operation needs at least one row.
	ErrNoRows = errors.New("no rows")
	// ErrInvalidBins is returned for a histogram resolution above MaxBins.
	ErrInvalidBins = errors.New("invalid bin count")
)

// Row is one sale line with its order, product and customer attributes and
// the derived calendar and margin columns.
type Row struct {
	SaleID          string     `json:"sale_id"`
	OrderID         string     `json:"order_id"`
	ProductID       string     `json:"product_id"`
	ProductName     string     `json:"product_name"`
	Category        string     `json:"category"`
	Subcategory     string     `json:"subcategory"`
	Supplier        string     `json:"supplier"`
	CustomerID      string     `json:"customer_id"`
	CustomerName    string     `json:"customer_name"`
	CustomerSegment string     `json:"customer_segment"`
	AgeGroup        string     `json:"age_group"`
	City            string     `json:"city"`
	State           string     `json:"state"`
	Country         string     `json:"country"`
	ShippingMethod  string     `json:"shipping_method"`
	OrderStatus     string     `json:"order_status"`
	OrderDate       sales.Date `json:"order_date"`
	ShippedDate     sales.Date `json:"shipped_date"`
	DeliveredDate   sales.Date `json:"delivered_date"`

	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	DiscountRate   float64 `json:"discount_rate"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalPrice     float64 `json:"final_price"`
	TotalAmount    float64 `json:"total_amount"`
	CostPerUnit    float64 `json:"cost_per_unit"`
	TotalCost      float64 `json:"total_cost"`
	Profit         float64 `json:"profit"`
	ShippingCost   float64 `json:"shipping_cost"`
	Rating         float64 `json:"rating"`

	ProfitMargin float64 `json:"profit_margin"`
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	Quarter      int     `json:"quarter"`
	DayOfWeek    string  `json:"day_of_week"`
	MonthName    string  `json:"month_name"`
	DeliveryDays int     `json:"delivery_days"`
}

// Merge left-joins sales with orders, products and customers. Sales whose
// references are missing keep zero values for the joined columns.
func Merge(ds *sales.Dataset) []Row {
	orders := make(map[string]sales.Order, len(ds.Orders))
	for _, o := range ds.Orders {
		orders[o.ID] = o
	}
	products := make(map[string]sales.Product, len(ds.Products))
	for _, p := range ds.Products {
		products[p.ID] = p
	}
	customers := make(map[string]sales.Customer, len(ds.Customers))
	for _, c := range ds.Customers {
		customers[c.ID] = c
	}

	rows := make([]Row, 0, len(ds.Sales))
	for _, s := range ds.Sales {
		o := orders[s.OrderID]
		p := products[s.ProductID]
		c := customers[o.CustomerID]

		r := Row{
			SaleID:          s.ID,
			OrderID:         s.OrderID,
			ProductID:       s.ProductID,
			ProductName:     p.Name,
			Category:        p.Category,
			Subcategory:     p.Subcategory,
			Supplier:        p.Supplier,
			CustomerID:      o.CustomerID,
			CustomerName:    c.FullName(),
			CustomerSegment: c.Segment,
			AgeGroup:        c.AgeGroup,
			City:            c.City,
			State:           c.State,
			Country:         c.Country,
			ShippingMethod:  o.ShippingMethod,
			OrderStatus:     o.Status,
			OrderDate:       o.OrderDate,
			ShippedDate:     o.ShippedDate,
			DeliveredDate:   o.DeliveredDate,
			Quantity:        s.Quantity,
			UnitPrice:       s.UnitPrice,
			DiscountRate:    s.DiscountRate,
			DiscountAmount:  s.DiscountAmount,
			FinalPrice:      s.FinalPrice,
			TotalAmount:     s.TotalAmount,
			CostPerUnit:     s.CostPerUnit,
			TotalCost:       s.TotalCost,
			Profit:          s.Profit,
			ShippingCost:    o.ShippingCost,
			Rating:          p.Rating,
		}
		if s.TotalAmount != 0 {
			r.ProfitMargin = s.Profit / s.TotalAmount * 100
		}
		if !o.OrderDate.IsZero() {
			r.Year = o.OrderDate.Year()
			r.Month = int(o.OrderDate.Month())
			r.Quarter = (r.Month-1)/3 + 1
			r.DayOfWeek = o.OrderDate.Weekday().String()
			r.MonthName = o.OrderDate.Month().String()
			if !o.DeliveredDate.IsZero() {
				r.DeliveryDays = o.OrderDate.DaysUntil(o.DeliveredDate)
			}
		}
		rows = append(rows, r)
	}
	return rows
}

type dimensionFunc func(*Row) string

type measureFunc func(*Row) float64

var dimensions = map[string]dimensionFunc{
	"sale_id":          func(r *Row) string { return r.SaleID },
	"order_id":         func(r *Row) string { return r.OrderID },
	"product_id":       func(r *Row) string { return r.ProductID },
	"product_name":     func(r *Row) string { return r.ProductName },
	"category":         func(r *Row) string { return r.Category },
	"subcategory":      func(r *Row) string { return r.Subcategory },
	"supplier":         func(r *Row) string { return r.Supplier },
	"customer_id":      func(r *Row) string { return r.CustomerID },
	"customer_name":    func(r *Row) string { return r.CustomerName },
	"customer_segment": func(r *Row) string { return r.CustomerSegment },
	"age_group":        func(r *Row) string { return r.AgeGroup },
	"city":             func(r *Row) string { return r.City },
	"state":            func(r *Row) string { return r.State },
	"country":          func(r *Row) string { return r.Country },
	"shipping_method":  func(r *Row) string { return r.ShippingMethod },
	"order_status":     func(r *Row) string { return r.OrderStatus },
	"order_date":       func(r *Row) string { return r.OrderDate.String() },
	"day_of_week":      func(r *Row) string { return r.DayOfWeek },
	"month_name":       func(r *Row) string { return r.MonthName },
	"year":             func(r *Row) string { return strconv.Itoa(r.Year) },
	"quarter":          func(r *Row) string { return "Q" + strconv.Itoa(r.Quarter) },
	"month":            func(r *Row) string { return fmt.Sprintf("%02d", r.Month) },
	"year_month":       func(r *Row) string { return periodKey(r, "month") },
	"year_quarter":     func(r *Row) string { return periodKey(r, "quarter") },
	"quantity":         func(r *Row) string { return strconv.Itoa(r.Quantity) },
	"discount_rate":    func(r *Row) string { return strconv.FormatFloat(r.DiscountRate, 'f', -1, 64) },
}

var measures = map[string]measureFunc{
	"quantity":        func(r *Row) float64 { return float64(r.Quantity) },
	"unit_price":      func(r *Row) float64 { return r.UnitPrice },
	"discount_rate":   func(r *Row) float64 { return r.DiscountRate },
	"discount_amount": func(r *Row) float64 { return r.DiscountAmount },
	"final_price":     func(r *Row) float64 { return r.FinalPrice },
	"total_amount":    func(r *Row) float64 { return r.TotalAmount },
	"cost_per_unit":   func(r *Row) float64 { return r.CostPerUnit },
	"total_cost":      func(r *Row) float64 { return r.TotalCost },
	"profit":          func(r *Row) float64 { return r.Profit },
	"shipping_cost":   func(r *Row) float64 { return r.ShippingCost },
	"rating":          func(r *Row) float64 { return r.Rating },
	"profit_margin":   func(r *Row) float64 { return r.ProfitMargin },
	"delivery_days":   func(r *Row) float64 { return float64(r.DeliveryDays) },
	"year":            func(r *Row) float64 { return float64(r.Year) },
	"month":           func(r *Row) float64 { return float64(r.Month) },
	"quarter":         func(r *Row) float64 { return float64(r.Quarter) },
}

func dimension(name string) (dimensionFunc, error) {
	fn, ok := dimensions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a dimension", ErrUnknownColumn, name)
	}
	return fn, nil
}

func measure(name string) (measureFunc, error) {
	fn, ok := measures[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a measure", ErrUnknownColumn, name)
	}
	return fn, nil
}

// Dimensions lists the columns usable for grouping and filtering.
func Dimensions() []string {
	return sortedKeys(dimensions)
}

// Measures lists the numeric columns usable for aggregation.
func Measures() []string {
	return sortedKeys(measures)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var weekdayOrder = map[string]int{
	time.Monday.String():    0,
	time.Tuesday.String():   1,
	time.Wednesday.String(): 2,
	time.Thursday.String():  3,
	time.Friday.String():    4,
	time.Saturday.String():  5,
	time.Sunday.String():    6,
}

var monthOrder = func() map[string]int {
	m := make(map[string]int, 12)
	for i := time.January; i <= time.December; i++ {
		m[i.String()] = int(i)
	}
	return m
}()

// labelLess orders labels chronologically when both are weekday or month
// names and lexically otherwise. Period keys such as 2024-03 or 2024-Q1 sort
// correctly as strings.
func labelLess(a, b string) bool {
	if wa, ok := weekdayOrder[a]; ok {
		if wb, ok := weekdayOrder[b]; ok {
			return wa < wb
		}
	}
	if ma, ok := monthOrder[a]; ok {
		if mb, ok := monthOrder[b]; ok {
			return ma < mb
		}
	}
	return a < b
}

func sortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool { return labelLess(labels[i], labels[j]) })
}
