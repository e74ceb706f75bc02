package sales

import (
	"errors"
	"fmt"
	"math"
)

// ErrInconsistentDataset is returned when a dataset breaks one of its invariants.
var ErrInconsistentDataset = errors.New("inconsistent dataset")

// TotalTolerance is the allowed gap between a line's total_amount and
// unit_price × quantity × (1 − discount_rate). Each cent rounding of the
// final price can drift by half a cent per unit.
func TotalTolerance(quantity int) float64 {
	return 0.01*float64(quantity) + 0.01
}

// TotalConsistent reports whether the line total matches its price inputs.
func TotalConsistent(unitPrice float64, quantity int, discountRate, total float64) bool {
	expected := unitPrice * float64(quantity) * (1 - discountRate)
	return math.Abs(total-expected) <= TotalTolerance(quantity)
}

// Validate checks every row of ds. It stops at the first violation.
func Validate(ds *Dataset) error {
	if ds == nil || len(ds.Records) == 0 {
		return fmt.Errorf("%w: dataset is empty", ErrInconsistentDataset)
	}

	customers := make(map[string]bool, len(ds.Customers))
	for _, c := range ds.Customers {
		if c.ID == "" {
			return fmt.Errorf("%w: customer without id", ErrInconsistentDataset)
		}
		customers[c.ID] = true
	}
	products := make(map[string]bool, len(ds.Products))
	for _, p := range ds.Products {
		if p.ID == "" || p.Category == "" || p.Price <= 0 {
			return fmt.Errorf("%w: product %q is incomplete", ErrInconsistentDataset, p.ID)
		}
		products[p.ID] = true
	}
	orders := make(map[string]bool, len(ds.Orders))
	for _, o := range ds.Orders {
		if !customers[o.CustomerID] {
			return fmt.Errorf("%w: order %q references unknown customer %q", ErrInconsistentDataset, o.ID, o.CustomerID)
		}
		if o.ShippedDate.Before(o.OrderDate.Time) || o.DeliveredDate.Before(o.ShippedDate.Time) {
			return fmt.Errorf("%w: order %q has out of order dates", ErrInconsistentDataset, o.ID)
		}
		orders[o.ID] = true
	}
	for _, s := range ds.Sales {
		if !orders[s.OrderID] {
			return fmt.Errorf("%w: sale %q references unknown order %q", ErrInconsistentDataset, s.ID, s.OrderID)
		}
		if !products[s.ProductID] {
			return fmt.Errorf("%w: sale %q references unknown product %q", ErrInconsistentDataset, s.ID, s.ProductID)
		}
	}

	for _, r := range ds.Records {
		if err := validateRecord(r); err != nil {
			return err
		}
	}
	return validateRun(ds)
}

// validateRun checks that the tables, the record table and the manifest all
// come from the same run, so files mixed from two runs are rejected.
func validateRun(ds *Dataset) error {
	rebuilt := BuildRecords(ds)
	if len(rebuilt) != len(ds.Records) {
		return fmt.Errorf("%w: %d records for %d sales", ErrInconsistentDataset, len(ds.Records), len(rebuilt))
	}
	for i := range rebuilt {
		if !sameRecord(rebuilt[i], ds.Records[i]) {
			return fmt.Errorf("%w: record %q does not match its sale, order, product and customer",
				ErrInconsistentDataset, ds.Records[i].SaleID)
		}
	}

	m, want := ds.Manifest, NewManifest(ds)
	switch {
	case m.Customers != want.Customers, m.Products != want.Products, m.Orders != want.Orders, m.Sales != want.Sales:
		return fmt.Errorf("%w: manifest counts do not match the tables", ErrInconsistentDataset)
	case math.Abs(m.TotalRevenue-want.TotalRevenue) > 0.005, math.Abs(m.TotalProfit-want.TotalProfit) > 0.005:
		return fmt.Errorf("%w: manifest totals do not match the tables", ErrInconsistentDataset)
	case !m.FirstOrder.Equal(want.FirstOrder.Time), !m.LastOrder.Equal(want.LastOrder.Time):
		return fmt.Errorf("%w: manifest date range does not match the orders", ErrInconsistentDataset)
	case m.RunID != RunID(m.Seed, m.AsOf, m.Customers, m.Products, m.Orders):
		return fmt.Errorf("%w: manifest run id %q does not match its inputs", ErrInconsistentDataset, m.RunID)
	}
	return nil
}

func sameRecord(a, b Record) bool {
	if !a.OrderDate.Equal(b.OrderDate.Time) {
		return false
	}
	a.OrderDate, b.OrderDate = Date{}, Date{}
	return a == b
}

func validateRecord(r Record) error {
	switch {
	case r.OrderID == "", r.CustomerID == "", r.Category == "", r.ProductID == "", r.OrderDate.IsZero():
		return fmt.Errorf("%w: record %q is missing a column", ErrInconsistentDataset, r.SaleID)
	case r.Quantity < 1:
		return fmt.Errorf("%w: record %q has quantity %d", ErrInconsistentDataset, r.SaleID, r.Quantity)
	case r.UnitPrice <= 0:
		return fmt.Errorf("%w: record %q has price %.2f", ErrInconsistentDataset, r.SaleID, r.UnitPrice)
	case r.DiscountRate < 0 || r.DiscountRate >= 1:
		return fmt.Errorf("%w: record %q has discount %.2f", ErrInconsistentDataset, r.SaleID, r.DiscountRate)
	case !TotalConsistent(r.UnitPrice, r.Quantity, r.DiscountRate, r.TotalAmount):
		return fmt.Errorf("%w: record %q total %.2f does not match price, quantity and discount",
			ErrInconsistentDataset, r.SaleID, r.TotalAmount)
	}
	return nil
}
