package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNoDataset is returned when no dataset has been generated or loaded yet.
var ErrNoDataset = errors.New("no dataset loaded")

// ErrInvalidStatus is returned for an unknown order status filter.
var ErrInvalidStatus = errors.New("invalid status value")

// ErrPublishFailed is returned when the dataset was saved but at least one
// publisher or notifier failed.
var ErrPublishFailed = errors.New("dataset publication failed")

// EventDatasetGenerated is the type of the event sent after a generation run.
const EventDatasetGenerated = "DatasetGenerated"

// Event announces a freshly stored dataset.
type Event struct {
	Type         string    `json:"event_type"`
	RunID        string    `json:"run_id"`
	Seed         uint64    `json:"seed"`
	Orders       int       `json:"orders"`
	Sales        int       `json:"sales"`
	TotalRevenue float64   `json:"total_revenue"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher copies a stored dataset to an external system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ds *Dataset) error
}

// Notifier announces generation events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Service provides high-level dataset operations on a Storage backend.
type Service struct {
	storage    Storage
	logger     *zap.Logger
	publishers []Publisher
	notifiers  []Notifier
	limits     Limits
	now        func() time.Time

	// genMu serializes Generate so two runs never interleave their writes.
	genMu   sync.Mutex
	mu      sync.RWMutex
	current *Dataset
}

// Option configures a Service.
type Option func(*Service)

// WithPublishers registers publishers run after every generation.
func WithPublishers(p ...Publisher) Option {
	return func(s *Service) { s.publishers = append(s.publishers, p...) }
}

// WithNotifiers registers notifiers run after every generation.
func WithNotifiers(n ...Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, n...) }
}

// WithLimits caps the datasets Generate accepts to build.
func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l }
}

// SalesMetadata summarizes a search result.
type SalesMetadata struct {
	Quantity    int     `json:"quantity"`
	Units       int     `json:"units"`
	Completed   int     `json:"completed"`
	Cancelled   int     `json:"cancelled"`
	Returned    int     `json:"returned"`
	TotalAmount float64 `json:"total_amount"`
}

// SearchQuery filters order records. Empty fields do not filter.
type SearchQuery struct {
	CustomerID string
	Category   string
	Status     string
	From       Date
	To         Date
	Limit      int
}

// NewService creates a new Service.
func NewService(storage Storage, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		storage: storage,
		logger:  logger,
		limits:  DefaultLimits(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate builds a new dataset, validates it, stores it and makes it the
// current one. Publication runs afterwards; its failures are reported as
// ErrPublishFailed alongside the stored dataset.
func (s *Service) Generate(ctx context.Context, opts Options) (*Dataset, error) {
	if err := opts.Within(s.limits); err != nil {
		s.logger.Warn("generation request over the limits", zap.Error(err))
		return nil, err
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()

	gen, err := NewGenerator(opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("generating dataset",
		zap.Uint64("seed", gen.Options().Seed),
		zap.Int("customers", opts.Customers),
		zap.Int("products", opts.Products),
		zap.Int("orders", opts.Orders),
	)

	ds, err := gen.Generate()
	if err != nil {
		return nil, err
	}
	if err := Validate(ds); err != nil {
		s.logger.Error("generated dataset failed validation", zap.Error(err))
		return nil, err
	}

	if err := s.storage.Save(ctx, ds); err != nil {
		s.logger.Error("failed to save dataset", zap.String("run_id", ds.Manifest.RunID), zap.Error(err))
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}
	s.setCurrent(ds)

	s.logger.Info("dataset generated",
		zap.String("run_id", ds.Manifest.RunID),
		zap.Int("orders", ds.Manifest.Orders),
		zap.Int("sales", ds.Manifest.Sales),
		zap.Float64("total_revenue", ds.Manifest.TotalRevenue),
	)

	if err := s.publish(ctx, ds); err != nil {
		return ds, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return ds, nil
}

func (s *Service) publish(ctx context.Context, ds *Dataset) error {
	var errs error
	for _, p := range s.publishers {
		if err := p.Publish(ctx, ds); err != nil {
			s.logger.Error("publisher failed", zap.String("publisher", p.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		s.logger.Info("dataset published", zap.String("publisher", p.Name()), zap.String("run_id", ds.Manifest.RunID))
	}

	event := Event{
		Type:         EventDatasetGenerated,
		RunID:        ds.Manifest.RunID,
		Seed:         ds.Manifest.Seed,
		Orders:       ds.Manifest.Orders,
		Sales:        ds.Manifest.Sales,
		TotalRevenue: ds.Manifest.TotalRevenue,
		Timestamp:    s.now().UTC(),
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			s.logger.Error("notifier failed", zap.String("run_id", event.RunID), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Load reads the stored dataset and makes it the current one.
func (s *Service) Load(ctx context.Context) (*Dataset, error) {
	ds, err := s.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := Validate(ds); err != nil {
		s.logger.Error("stored dataset failed validation", zap.Error(err))
		return nil, err
	}
	s.setCurrent(ds)
	s.logger.Info("dataset loaded", zap.String("run_id", ds.Manifest.RunID), zap.Int("sales", len(ds.Sales)))
	return ds, nil
}

// Current returns the dataset in use.
func (s *Service) Current() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDataset
	}
	return s.current, nil
}

func (s *Service) setCurrent(ds *Dataset) {
	s.mu.Lock()
	s.current = ds
	s.mu.Unlock()
}

// SearchSales filters the order records of the current dataset and computes
// their metadata.
func (s *Service) SearchSales(q SearchQuery) ([]Record, SalesMetadata, error) {
	// 1. Validate the status
	var status string
	if q.Status != "" {
		switch strings.ToLower(q.Status) {
		case "completed":
			status = StatusCompleted
		case "cancelled":
			status = StatusCancelled
		case "returned":
			status = StatusReturned
		default:
			s.logger.Warn("invalid status filter provided", zap.String("status_filter", q.Status))
			return nil, SalesMetadata{}, fmt.Errorf("%w: '%s'", ErrInvalidStatus, q.Status)
		}
	}

	ds, err := s.Current()
	if err != nil {
		return nil, SalesMetadata{}, err
	}

	statuses := make(map[string]string, len(ds.Orders))
	for _, o := range ds.Orders {
		statuses[o.ID] = o.Status
	}

	// 2. Filter and compute metadata
	results := make([]Record, 0)
	metadata := SalesMetadata{}
	for _, r := range ds.Records {
		if q.CustomerID != "" && r.CustomerID != q.CustomerID {
			continue
		}
		if q.Category != "" && !strings.EqualFold(r.Category, q.Category) {
			continue
		}
		orderStatus := statuses[r.OrderID]
		if status != "" && orderStatus != status {
			continue
		}
		if !q.From.IsZero() && r.OrderDate.Before(q.From.Time) {
			continue
		}
		if !q.To.IsZero() && r.OrderDate.After(q.To.Time) {
			continue
		}

		metadata.Quantity++
		metadata.Units += r.Quantity
		metadata.TotalAmount += r.TotalAmount
		switch orderStatus {
		case StatusCompleted:
			metadata.Completed++
		case StatusCancelled:
			metadata.Cancelled++
		case StatusReturned:
			metadata.Returned++
		}

		if q.Limit <= 0 || len(results) < q.Limit {
			results = append(results, r)
		}
	}
	metadata.TotalAmount = Round2(metadata.TotalAmount)

	s.logger.Info("sales search completed",
		zap.String("customer_filter", q.CustomerID),
		zap.String("category_filter", q.Category),
		zap.String("status_filter", q.Status),
		zap.Int("results_count", len(results)),
		zap.Any("metadata", metadata),
	)
	return results, metadata, nil
}
