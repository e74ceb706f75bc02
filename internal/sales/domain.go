package sales

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date form used in CSV files and JSON payloads.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day, always in UTC.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in DateLayout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Customer is a synthetic shop customer.
type Customer struct {
	ID               string `json:"customer_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
	PostalCode       string `json:"postal_code"`
	RegistrationDate Date   `json:"registration_date"`
	Segment          string `json:"customer_segment"`
	AgeGroup         string `json:"age_group"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Product is an entry of the product catalog.
type Product struct {
	ID          string  `json:"product_id"`
	Name        string  `json:"product_name"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Supplier    string  `json:"supplier"`
	LaunchDate  Date    `json:"launch_date"`
	WeightKg    float64 `json:"weight_kg"`
	Rating      float64 `json:"rating"`
}

// Order is the header of a customer order.
type Order struct {
	ID             string  `json:"order_id"`
	CustomerID     string  `json:"customer_id"`
	OrderDate      Date    `json:"order_date"`
	ShippedDate    Date    `json:"shipped_date"`
	DeliveredDate  Date    `json:"delivered_date"`
	ShippingMethod string  `json:"shipping_method"`
	ShippingCost   float64 `json:"shipping_cost"`
	Status         string  `json:"order_status"`
}

// Sale is a single line item of an order.
type Sale struct {
	ID             string  `json:"sale_id"`
	OrderID        string  `json:"order_id"`
	ProductID      string  `json:"product_id"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	DiscountRate   float64 `json:"discount_rate"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalPrice     float64 `json:"final_price"`
	TotalAmount    float64 `json:"total_amount"`
	CostPerUnit    float64 `json:"cost_per_unit"`
	TotalCost      float64 `json:"total_cost"`
	Profit         float64 `json:"profit"`
}

// Record is one row of the flat order-record table: a sale line joined with
// the customer, product and date it belongs to.
type Record struct {
	OrderID      string  `json:"order_id"`
	SaleID       string  `json:"sale_id"`
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	Category     string  `json:"category"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	OrderDate    Date    `json:"order_date"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	DiscountRate float64 `json:"discount_rate"`
	TotalAmount  float64 `json:"total_amount"`
}

// Manifest describes one generated dataset.
type Manifest struct {
	RunID        string  `json:"run_id"`
	Seed         uint64  `json:"seed"`
	AsOf         Date    `json:"as_of"`
	Customers    int     `json:"customers"`
	Products     int     `json:"products"`
	Orders       int     `json:"orders"`
	Sales        int     `json:"sales"`
	TotalRevenue float64 `json:"total_revenue"`
	TotalProfit  float64 `json:"total_profit"`
	FirstOrder   Date    `json:"first_order"`
	LastOrder    Date    `json:"last_order"`
}

// Dataset is a complete generated dataset.
type Dataset struct {
	Manifest  Manifest   `json:"manifest"`
	Customers []Customer `json:"customers"`
	Products  []Product  `json:"products"`
	Orders    []Order    `json:"orders"`
	Sales     []Sale     `json:"sales"`
	Records   []Record   `json:"records"`
}

// Summary returns a human readable overview of the dataset.
func (m Manifest) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customers: %d records\n", m.Customers)
	fmt.Fprintf(&b, "Products: %d records\n", m.Products)
	fmt.Fprintf(&b, "Orders: %d records\n", m.Orders)
	fmt.Fprintf(&b, "Sales: %d records\n", m.Sales)
	fmt.Fprintf(&b, "Total Revenue: $%.2f\n", m.TotalRevenue)
	fmt.Fprintf(&b, "Total Profit: $%.2f\n", m.TotalProfit)
	fmt.Fprintf(&b, "Date Range: %s to %s\n", m.FirstOrder, m.LastOrder)
	return b.String()
}
