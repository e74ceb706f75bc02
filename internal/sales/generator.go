package sales

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// ErrInvalidOptions is returned when generation options are out of range.
var ErrInvalidOptions = errors.New("invalid generator options")

// DefaultSeed matches the seed the sample datasets have always been built with.
const DefaultSeed uint64 = 42

// Options controls the size and reproducibility of a generated dataset.
type Options struct {
	// Seed makes the output reproducible. Zero picks a fresh random seed,
	// which is then recorded in the manifest.
	Seed      uint64 `json:"seed"`
	Customers int    `json:"customers"`
	Products  int    `json:"products"`
	Orders    int    `json:"orders"`
	// AsOf anchors every generated date. Zero means today.
	AsOf Date `json:"as_of"`
}

// DefaultOptions returns the options of the reference dataset.
func DefaultOptions() Options {
	return Options{
		Seed:      DefaultSeed,
		Customers: 1000,
		Products:  500,
		Orders:    5000,
	}
}

// Limits caps the size of a generated dataset.
type Limits struct {
	Customers int `json:"customers"`
	Products  int `json:"products"`
	Orders    int `json:"orders"`
}

// DefaultLimits keeps a generated dataset within a few hundred megabytes.
func DefaultLimits() Limits {
	return Limits{
		Customers: 100_000,
		Products:  50_000,
		Orders:    1_000_000,
	}
}

// Within returns ErrInvalidOptions when o asks for more than l allows.
func (o Options) Within(l Limits) error {
	if o.Customers > l.Customers || o.Products > l.Products || o.Orders > l.Orders {
		return fmt.Errorf("%w: at most %d customers, %d products and %d orders",
			ErrInvalidOptions, l.Customers, l.Products, l.Orders)
	}
	return nil
}

func (o Options) validate() error {
	if o.Customers <= 0 || o.Products <= 0 || o.Orders <= 0 {
		return fmt.Errorf("%w: customers, products and orders must be greater than zero", ErrInvalidOptions)
	}
	return nil
}

var (
	categories = []string{
		"Electronics", "Clothing", "Home & Garden", "Books", "Sports & Outdoors",
		"Health & Beauty", "Toys & Games", "Automotive", "Food & Beverages", "Office Supplies",
	}

	subcategories = map[string][]string{
		"Electronics":       {"Smartphones", "Laptops", "Tablets", "Audio", "Gaming"},
		"Clothing":          {"Men's Clothing", "Women's Clothing", "Shoes", "Accessories"},
		"Home & Garden":     {"Furniture", "Kitchen", "Bedroom", "Garden Tools"},
		"Books":             {"Fiction", "Non-Fiction", "Educational", "Children's Books"},
		"Sports & Outdoors": {"Fitness", "Outdoor Gear", "Team Sports", "Water Sports"},
	}

	segments       = choice[string]{[]string{"Premium", "Standard", "Basic"}, []float64{0.2, 0.5, 0.3}}
	ageGroups      = choice[string]{[]string{"18-25", "26-35", "36-45", "46-55", "55+"}, []float64{0.15, 0.25, 0.25, 0.2, 0.15}}
	shippingDays   = choice[int]{[]int{1, 2, 3, 5, 7}, []float64{0.1, 0.3, 0.3, 0.2, 0.1}}
	shippingMethod = choice[string]{[]string{"Standard", "Express", "Overnight"}, []float64{0.6, 0.3, 0.1}}
	orderStatus    = choice[string]{[]string{StatusCompleted, StatusCancelled, StatusReturned}, []float64{0.85, 0.1, 0.05}}
	itemsPerOrder  = choice[int]{[]int{1, 2, 3, 4, 5}, []float64{0.4, 0.3, 0.15, 0.1, 0.05}}
	quantities     = choice[int]{[]int{1, 2, 3, 4}, []float64{0.7, 0.2, 0.07, 0.03}}
	discountRates  = choice[float64]{[]float64{0.05, 0.10, 0.15, 0.20, 0.25}, []float64{0.4, 0.3, 0.15, 0.1, 0.05}}
)

// Order statuses.
const (
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
	StatusReturned  = "Returned"
)

const discountChance = 0.3

// choice is a discrete distribution over values.
type choice[T any] struct {
	values  []T
	weights []float64
}

func (c choice[T]) pick(r *rand.Rand) T {
	x := r.Float64()
	var acc float64
	for i, w := range c.weights {
		acc += w
		if x < acc {
			return c.values[i]
		}
	}
	return c.values[len(c.values)-1]
}

// Generator fabricates datasets. It is not safe for concurrent use.
type Generator struct {
	opts  Options
	rng   *rand.Rand
	faker *gofakeit.Faker
}

// NewGenerator resolves the seed and anchor date and prepares the random streams.
func NewGenerator(opts Options) (*Generator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	for opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	if opts.AsOf.IsZero() {
		opts.AsOf = NewDate(time.Now())
	}

	return &Generator{
		opts:  opts,
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		faker: gofakeit.New(opts.Seed),
	}, nil
}

// Options returns the resolved options, including the effective seed.
func (g *Generator) Options() Options {
	return g.opts
}

// Generate builds a full dataset.
func Generate(opts Options) (*Dataset, error) {
	g, err := NewGenerator(opts)
	if err != nil {
		return nil, err
	}
	return g.Generate()
}

// Generate builds customers, products, orders with their sale lines and the
// flat record table, in that order so the random streams stay reproducible.
func (g *Generator) Generate() (*Dataset, error) {
	ds := &Dataset{}
	ds.Customers = g.customers()
	ds.Products = g.products()
	ds.Orders, ds.Sales = g.orders(ds.Customers, ds.Products)
	ds.Records = BuildRecords(ds)
	ds.Manifest = g.manifest(ds)
	return ds, nil
}

// runNamespace scopes run ids to this generator.
var runNamespace = uuid.MustParse("6f1c2b7e-4d0a-5e3b-9a41-8c2d7f5e1b90")

// RunID derives the id of the run that generated a dataset from every input
// that shapes it. Equal inputs give equal datasets and equal ids.
func RunID(seed uint64, asOf Date, customers, products, orders int) string {
	key := fmt.Sprintf("seed=%d;as_of=%s;customers=%d;products=%d;orders=%d",
		seed, asOf, customers, products, orders)
	return uuid.NewSHA1(runNamespace, []byte(key)).String()
}

func (g *Generator) customers() []Customer {
	asOf := g.opts.AsOf
	from := NewDate(asOf.AddDate(-3, 0, 0))

	customers := make([]Customer, 0, g.opts.Customers)
	for i := 0; i < g.opts.Customers; i++ {
		customers = append(customers, Customer{
			ID:               fmt.Sprintf("CUST_%05d", i+1),
			FirstName:        g.faker.FirstName(),
			LastName:         g.faker.LastName(),
			Email:            g.faker.Email(),
			Phone:            g.faker.Phone(),
			City:             g.faker.City(),
			State:            g.faker.State(),
			Country:          g.faker.Country(),
			PostalCode:       g.faker.Zip(),
			RegistrationDate: g.dateBetween(from, asOf),
			Segment:          segments.pick(g.rng),
			AgeGroup:         ageGroups.pick(g.rng),
		})
	}
	return customers
}

func (g *Generator) products() []Product {
	asOf := g.opts.AsOf
	from := NewDate(asOf.AddDate(-2, 0, 0))

	products := make([]Product, 0, g.opts.Products)
	for i := 0; i < g.opts.Products; i++ {
		category := categories[g.rng.IntN(len(categories))]
		subcategory := category
		if subs, ok := subcategories[category]; ok {
			subcategory = subs[g.rng.IntN(len(subs))]
		}

		var price float64
		switch category {
		case "Electronics":
			price = g.uniform(50, 2000)
		case "Clothing":
			price = g.uniform(20, 300)
		case "Books":
			price = g.uniform(10, 50)
		default:
			price = g.uniform(15, 500)
		}
		cost := price * g.uniform(0.4, 0.7)

		products = append(products, Product{
			ID:          fmt.Sprintf("PROD_%05d", i+1),
			Name:        g.faker.ProductName(),
			Category:    category,
			Subcategory: subcategory,
			Price:       Round2(price),
			Cost:        Round2(cost),
			Supplier:    g.faker.Company(),
			LaunchDate:  g.dateBetween(from, asOf),
			WeightKg:    Round2(g.uniform(0.1, 10)),
			Rating:      math.Round(g.uniform(3.0, 5.0)*10) / 10,
		})
	}
	return products
}

func (g *Generator) orders(customers []Customer, products []Product) ([]Order, []Sale) {
	asOf := g.opts.AsOf
	from := asOf.AddDays(-730)

	orders := make([]Order, 0, g.opts.Orders)
	sales := make([]Sale, 0, g.opts.Orders*2)
	for i := 0; i < g.opts.Orders; i++ {
		orderDate := g.dateBetween(from, asOf)
		shipped := orderDate.AddDays(shippingDays.pick(g.rng))
		delivered := shipped.AddDays(1 + g.rng.IntN(7))

		order := Order{
			ID:             fmt.Sprintf("ORD_%06d", i+1),
			CustomerID:     customers[g.rng.IntN(len(customers))].ID,
			OrderDate:      orderDate,
			ShippedDate:    shipped,
			DeliveredDate:  delivered,
			ShippingMethod: shippingMethod.pick(g.rng),
			ShippingCost:   Round2(g.uniform(5, 25)),
			Status:         orderStatus.pick(g.rng),
		}
		orders = append(orders, order)

		items := itemsPerOrder.pick(g.rng)
		for j := 0; j < items; j++ {
			product := products[g.rng.IntN(len(products))]
			quantity := quantities.pick(g.rng)

			var rate float64
			if g.rng.Float64() < discountChance {
				rate = discountRates.pick(g.rng)
			}
			sales = append(sales, NewSale(fmt.Sprintf("SALE_%06d_%d", i+1, j+1), order.ID, product, quantity, rate))
		}
	}
	return orders, sales
}

// NewSale prices a line item. Money values are rounded to cents after every
// step so total_amount equals final_price × quantity exactly.
func NewSale(id, orderID string, product Product, quantity int, discountRate float64) Sale {
	discount := product.Price * discountRate
	final := Round2(product.Price - discount)
	return Sale{
		ID:             id,
		OrderID:        orderID,
		ProductID:      product.ID,
		Quantity:       quantity,
		UnitPrice:      product.Price,
		DiscountRate:   discountRate,
		DiscountAmount: Round2(discount),
		FinalPrice:     final,
		TotalAmount:    Round2(final * float64(quantity)),
		CostPerUnit:    product.Cost,
		TotalCost:      Round2(product.Cost * float64(quantity)),
		Profit:         Round2((final - product.Cost) * float64(quantity)),
	}
}

// BuildRecords flattens sale lines into order records. Lines whose order,
// customer or product is unknown keep empty joined fields.
func BuildRecords(ds *Dataset) []Record {
	customers := make(map[string]Customer, len(ds.Customers))
	for _, c := range ds.Customers {
		customers[c.ID] = c
	}
	products := make(map[string]Product, len(ds.Products))
	for _, p := range ds.Products {
		products[p.ID] = p
	}
	orders := make(map[string]Order, len(ds.Orders))
	for _, o := range ds.Orders {
		orders[o.ID] = o
	}

	records := make([]Record, 0, len(ds.Sales))
	for _, s := range ds.Sales {
		order := orders[s.OrderID]
		customer := customers[order.CustomerID]
		product := products[s.ProductID]
		records = append(records, Record{
			OrderID:      s.OrderID,
			SaleID:       s.ID,
			CustomerID:   order.CustomerID,
			CustomerName: customer.FullName(),
			Category:     product.Category,
			ProductID:    s.ProductID,
			ProductName:  product.Name,
			OrderDate:    order.OrderDate,
			Quantity:     s.Quantity,
			UnitPrice:    s.UnitPrice,
			DiscountRate: s.DiscountRate,
			TotalAmount:  s.TotalAmount,
		})
	}
	return records
}

func (g *Generator) manifest(ds *Dataset) Manifest {
	m := NewManifest(ds)
	m.Seed = g.opts.Seed
	m.AsOf = g.opts.AsOf
	m.RunID = RunID(m.Seed, m.AsOf, m.Customers, m.Products, m.Orders)
	return m
}

// NewManifest computes counts, totals and the order date range of ds.
func NewManifest(ds *Dataset) Manifest {
	m := Manifest{
		Customers: len(ds.Customers),
		Products:  len(ds.Products),
		Orders:    len(ds.Orders),
		Sales:     len(ds.Sales),
	}
	var revenue, profit float64
	for _, s := range ds.Sales {
		revenue += s.TotalAmount
		profit += s.Profit
	}
	m.TotalRevenue = Round2(revenue)
	m.TotalProfit = Round2(profit)

	for i, o := range ds.Orders {
		if i == 0 || o.OrderDate.Before(m.FirstOrder.Time) {
			m.FirstOrder = o.OrderDate
		}
		if i == 0 || o.OrderDate.After(m.LastOrder.Time) {
			m.LastOrder = o.OrderDate
		}
	}
	return m
}

func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

// dateBetween returns a uniformly drawn date in [from, to].
func (g *Generator) dateBetween(from, to Date) Date {
	days := from.DaysUntil(to)
	if days <= 0 {
		return from
	}
	return from.AddDays(g.rng.IntN(days + 1))
}

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
