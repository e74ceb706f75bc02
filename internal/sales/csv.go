package sales

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedCSV is returned when a table file cannot be decoded.
var ErrMalformedCSV = errors.New("malformed csv")

// File names of a stored dataset.
const (
	CustomersFile = "customers.csv"
	ProductsFile  = "products.csv"
	OrdersFile    = "orders.csv"
	SalesFile     = "sales.csv"
	RecordsFile   = "sales_records.csv"
	ManifestFile  = "manifest.json"
)

// DatasetFiles lists every file of a stored dataset, manifest last.
var DatasetFiles = []string{CustomersFile, ProductsFile, OrdersFile, SalesFile, RecordsFile, ManifestFile}

// RecordColumns is the header of the flat order-record table.
var RecordColumns = []string{
	"order_id", "sale_id", "customer_id", "customer_name", "category", "product_id",
	"product_name", "order_date", "quantity", "unit_price", "discount_rate", "total_amount",
}

type table[T any] struct {
	file    string
	columns []string
	encode  func(T) []string
	decode  func(*rowReader) T
}

var customerTable = table[Customer]{
	file: CustomersFile,
	columns: []string{
		"customer_id", "first_name", "last_name", "email", "phone", "city", "state",
		"country", "postal_code", "registration_date", "customer_segment", "age_group",
	},
	encode: func(c Customer) []string {
		return []string{
			c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.City, c.State,
			c.Country, c.PostalCode, c.RegistrationDate.String(), c.Segment, c.AgeGroup,
		}
	},
	decode: func(r *rowReader) Customer {
		return Customer{
			ID:               r.str("customer_id"),
			FirstName:        r.str("first_name"),
			LastName:         r.str("last_name"),
			Email:            r.str("email"),
			Phone:            r.str("phone"),
			City:             r.str("city"),
			State:            r.str("state"),
			Country:          r.str("country"),
			PostalCode:       r.str("postal_code"),
			RegistrationDate: r.date("registration_date"),
			Segment:          r.str("customer_segment"),
			AgeGroup:         r.str("age_group"),
		}
	},
}

var productTable = table[Product]{
	file: ProductsFile,
	columns: []string{
		"product_id", "product_name", "category", "subcategory", "price", "cost",
		"supplier", "launch_date", "weight_kg", "rating",
	},
	encode: func(p Product) []string {
		return []string{
			p.ID, p.Name, p.Category, p.Subcategory, formatFloat(p.Price), formatFloat(p.Cost),
			p.Supplier, p.LaunchDate.String(), formatFloat(p.WeightKg), formatFloat(p.Rating),
		}
	},
	decode: func(r *rowReader) Product {
		return Product{
			ID:          r.str("product_id"),
			Name:        r.str("product_name"),
			Category:    r.str("category"),
			Subcategory: r.str("subcategory"),
			Price:       r.number("price"),
			Cost:        r.number("cost"),
			Supplier:    r.str("supplier"),
			LaunchDate:  r.date("launch_date"),
			WeightKg:    r.number("weight_kg"),
			Rating:      r.number("rating"),
		}
	},
}

var orderTable = table[Order]{
	file: OrdersFile,
	columns: []string{
		"order_id", "customer_id", "order_date", "shipped_date", "delivered_date",
		"shipping_method", "shipping_cost", "order_status",
	},
	encode: func(o Order) []string {
		return []string{
			o.ID, o.CustomerID, o.OrderDate.String(), o.ShippedDate.String(), o.DeliveredDate.String(),
			o.ShippingMethod, formatFloat(o.ShippingCost), o.Status,
		}
	},
	decode: func(r *rowReader) Order {
		return Order{
			ID:             r.str("order_id"),
			CustomerID:     r.str("customer_id"),
			OrderDate:      r.date("order_date"),
			ShippedDate:    r.date("shipped_date"),
			DeliveredDate:  r.date("delivered_date"),
			ShippingMethod: r.str("shipping_method"),
			ShippingCost:   r.number("shipping_cost"),
			Status:         r.str("order_status"),
		}
	},
}

var saleTable = table[Sale]{
	file: SalesFile,
	columns: []string{
		"sale_id", "order_id", "product_id", "quantity", "unit_price", "discount_rate",
		"discount_amount", "final_price", "total_amount", "cost_per_unit", "total_cost", "profit",
	},
	encode: func(s Sale) []string {
		return []string{
			s.ID, s.OrderID, s.ProductID, strconv.Itoa(s.Quantity), formatFloat(s.UnitPrice),
			formatFloat(s.DiscountRate), formatFloat(s.DiscountAmount), formatFloat(s.FinalPrice),
			formatFloat(s.TotalAmount), formatFloat(s.CostPerUnit), formatFloat(s.TotalCost), formatFloat(s.Profit),
		}
	},
	decode: func(r *rowReader) Sale {
		return Sale{
			ID:             r.str("sale_id"),
			OrderID:        r.str("order_id"),
			ProductID:      r.str("product_id"),
			Quantity:       r.integer("quantity"),
			UnitPrice:      r.number("unit_price"),
			DiscountRate:   r.number("discount_rate"),
			DiscountAmount: r.number("discount_amount"),
			FinalPrice:     r.number("final_price"),
			TotalAmount:    r.number("total_amount"),
			CostPerUnit:    r.number("cost_per_unit"),
			TotalCost:      r.number("total_cost"),
			Profit:         r.number("profit"),
		}
	},
}

var recordTable = table[Record]{
	file:    RecordsFile,
	columns: RecordColumns,
	encode: func(r Record) []string {
		return []string{
			r.OrderID, r.SaleID, r.CustomerID, r.CustomerName, r.Category, r.ProductID,
			r.ProductName, r.OrderDate.String(), strconv.Itoa(r.Quantity), formatFloat(r.UnitPrice),
			formatFloat(r.DiscountRate), formatFloat(r.TotalAmount),
		}
	},
	decode: func(r *rowReader) Record {
		return Record{
			OrderID:      r.str("order_id"),
			SaleID:       r.str("sale_id"),
			CustomerID:   r.str("customer_id"),
			CustomerName: r.str("customer_name"),
			Category:     r.str("category"),
			ProductID:    r.str("product_id"),
			ProductName:  r.str("product_name"),
			OrderDate:    r.date("order_date"),
			Quantity:     r.integer("quantity"),
			UnitPrice:    r.number("unit_price"),
			DiscountRate: r.number("discount_rate"),
			TotalAmount:  r.number("total_amount"),
		}
	},
}

// EncodeTables renders every table of ds plus its manifest, keyed by file name.
func EncodeTables(ds *Dataset) (map[string][]byte, error) {
	files := make(map[string][]byte, len(DatasetFiles))
	var err error
	if files[CustomersFile], err = writeTable(customerTable, ds.Customers); err != nil {
		return nil, err
	}
	if files[ProductsFile], err = writeTable(productTable, ds.Products); err != nil {
		return nil, err
	}
	if files[OrdersFile], err = writeTable(orderTable, ds.Orders); err != nil {
		return nil, err
	}
	if files[SalesFile], err = writeTable(saleTable, ds.Sales); err != nil {
		return nil, err
	}
	if files[RecordsFile], err = writeTable(recordTable, ds.Records); err != nil {
		return nil, err
	}
	if files[ManifestFile], err = json.MarshalIndent(ds.Manifest, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return files, nil
}

// DecodeTables is the inverse of EncodeTables. Every file must be present.
func DecodeTables(files map[string][]byte) (*Dataset, error) {
	for _, name := range DatasetFiles {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
		}
	}

	ds := &Dataset{}
	var err error
	if err = json.Unmarshal(files[ManifestFile], &ds.Manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCSV, ManifestFile, err)
	}
	if ds.Customers, err = readTable(customerTable, files[CustomersFile]); err != nil {
		return nil, err
	}
	if ds.Products, err = readTable(productTable, files[ProductsFile]); err != nil {
		return nil, err
	}
	if ds.Orders, err = readTable(orderTable, files[OrdersFile]); err != nil {
		return nil, err
	}
	if ds.Sales, err = readTable(saleTable, files[SalesFile]); err != nil {
		return nil, err
	}
	if ds.Records, err = readTable(recordTable, files[RecordsFile]); err != nil {
		return nil, err
	}
	return ds, nil
}

// ReadRecords decodes a standalone flat order-record file.
func ReadRecords(data []byte) ([]Record, error) {
	return readTable(recordTable, data)
}

func writeTable[T any](t table[T], rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.columns); err != nil {
		return nil, fmt.Errorf("failed to write %s header: %w", t.file, err)
	}
	for _, row := range rows {
		if err := w.Write(t.encode(row)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", t.file, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush %s: %w", t.file, err)
	}
	return buf.Bytes(), nil
}

func readTable[T any](t table[T], data []byte) ([]T, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read headers: %v", ErrMalformedCSV, t.file, err)
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimSpace(h)] = i
	}
	for _, col := range t.columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s: missing column %q", ErrMalformedCSV, t.file, col)
		}
	}

	var rows []T
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCSV, t.file, err)
		}
		r := &rowReader{index: index, fields: fields}
		row := t.decode(r)
		if r.err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedCSV, t.file, line, r.err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// rowReader pulls typed fields out of a CSV row and keeps the first error.
type rowReader struct {
	index  map[string]int
	fields []string
	err    error
}

func (r *rowReader) str(col string) string {
	i := r.index[col]
	if i >= len(r.fields) {
		r.fail(fmt.Errorf("column %q: row too short", col))
		return ""
	}
	return r.fields[i]
}

func (r *rowReader) number(col string) float64 {
	s := strings.TrimSpace(r.str(col))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(fmt.Errorf("column %q: %w", col, err))
	}
	return f
}

func (r *rowReader) integer(col string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.str(col)))
	if err != nil {
		r.fail(fmt.Errorf("column %q: %w", col, err))
	}
	return n
}

func (r *rowReader) date(col string) Date {
	s := strings.TrimSpace(r.str(col))
	if s == "" {
		return Date{}
	}
	d, err := ParseDate(s)
	if err != nil {
		r.fail(fmt.Errorf("column %q: %w", col, err))
	}
	return d
}

func (r *rowReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
