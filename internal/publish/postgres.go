// Package publish copies generated datasets to external stores.
package publish

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"salesdata/internal/sales"
)

// NewPool connects to Postgres and checks the connection.
func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresPublisher replaces the contents of the four dataset tables.
type PostgresPublisher struct {
	db     Beginner
	logger *zap.Logger
}

// NewPostgresPublisher creates a publisher on db.
func NewPostgresPublisher(db Beginner, logger *zap.Logger) *PostgresPublisher {
	return &PostgresPublisher{db: db, logger: logger}
}

func (p *PostgresPublisher) Name() string { return "postgres" }

// Schema creates the dataset tables.
const Schema = `
CREATE TABLE IF NOT EXISTS customers (
	customer_id       TEXT PRIMARY KEY,
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL,
	email             TEXT NOT NULL,
	phone             TEXT NOT NULL,
	city              TEXT NOT NULL,
	state             TEXT NOT NULL,
	country           TEXT NOT NULL,
	postal_code       TEXT NOT NULL,
	registration_date DATE NOT NULL,
	customer_segment  TEXT NOT NULL,
	age_group         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	product_id   TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	category     TEXT NOT NULL,
	subcategory  TEXT NOT NULL,
	price        NUMERIC(12,2) NOT NULL,
	cost         NUMERIC(12,2) NOT NULL,
	supplier     TEXT NOT NULL,
	launch_date  DATE NOT NULL,
	weight_kg    NUMERIC(8,2) NOT NULL,
	rating       NUMERIC(3,1) NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	order_id        TEXT PRIMARY KEY,
	customer_id     TEXT NOT NULL REFERENCES customers (customer_id),
	order_date      DATE NOT NULL,
	shipped_date    DATE NOT NULL,
	delivered_date  DATE NOT NULL,
	shipping_method TEXT NOT NULL,
	shipping_cost   NUMERIC(8,2) NOT NULL,
	order_status    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sales (
	sale_id         TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL REFERENCES orders (order_id),
	product_id      TEXT NOT NULL REFERENCES products (product_id),
	quantity        INTEGER NOT NULL CHECK (quantity > 0),
	unit_price      NUMERIC(12,2) NOT NULL,
	discount_rate   NUMERIC(4,2) NOT NULL,
	discount_amount NUMERIC(12,2) NOT NULL,
	final_price     NUMERIC(12,2) NOT NULL,
	total_amount    NUMERIC(12,2) NOT NULL,
	cost_per_unit   NUMERIC(12,2) NOT NULL,
	total_cost      NUMERIC(12,2) NOT NULL,
	profit          NUMERIC(12,2) NOT NULL
);`

// copyTable is one COPY FROM batch.
type copyTable struct {
	name    string
	columns []string
	rows    [][]any
}

// Publish loads ds in a single transaction: readers see either the previous
// dataset or the new one.
func (p *PostgresPublisher) Publish(ctx context.Context, ds *sales.Dataset) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once committed.
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.Exec(ctx, `TRUNCATE sales, orders, products, customers`); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	for _, t := range copyTables(ds) {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{t.name}, t.columns, pgx.CopyFromRows(t.rows))
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", t.name, err)
		}
		p.logger.Debug("table copied", zap.String("table", t.name), zap.Int64("rows", n))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// copyTables lists the tables in foreign key order.
func copyTables(ds *sales.Dataset) []copyTable {
	customers := copyTable{
		name: "customers",
		columns: []string{"customer_id", "first_name", "last_name", "email", "phone", "city", "state",
			"country", "postal_code", "registration_date", "customer_segment", "age_group"},
	}
	for _, c := range ds.Customers {
		customers.rows = append(customers.rows, []any{c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.City,
			c.State, c.Country, c.PostalCode, c.RegistrationDate.Time, c.Segment, c.AgeGroup})
	}

	products := copyTable{
		name: "products",
		columns: []string{"product_id", "product_name", "category", "subcategory", "price", "cost",
			"supplier", "launch_date", "weight_kg", "rating"},
	}
	for _, p := range ds.Products {
		products.rows = append(products.rows, []any{p.ID, p.Name, p.Category, p.Subcategory, p.Price, p.Cost,
			p.Supplier, p.LaunchDate.Time, p.WeightKg, p.Rating})
	}

	orders := copyTable{
		name: "orders",
		columns: []string{"order_id", "customer_id", "order_date", "shipped_date", "delivered_date",
			"shipping_method", "shipping_cost", "order_status"},
	}
	for _, o := range ds.Orders {
		orders.rows = append(orders.rows, []any{o.ID, o.CustomerID, o.OrderDate.Time, o.ShippedDate.Time,
			o.DeliveredDate.Time, o.ShippingMethod, o.ShippingCost, o.Status})
	}

	lines := copyTable{
		name: "sales",
		columns: []string{"sale_id", "order_id", "product_id", "quantity", "unit_price", "discount_rate",
			"discount_amount", "final_price", "total_amount", "cost_per_unit", "total_cost", "profit"},
	}
	for _, s := range ds.Sales {
		lines.rows = append(lines.rows, []any{s.ID, s.OrderID, s.ProductID, int32(s.Quantity), s.UnitPrice,
			s.DiscountRate, s.DiscountAmount, s.FinalPrice, s.TotalAmount, s.CostPerUnit, s.TotalCost, s.Profit})
	}

	return []copyTable{customers, products, orders, lines}
}
