package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesdata/internal/analysis"
	"salesdata/internal/sales"
)

// errBadQuery marks malformed query parameters.
var errBadQuery = errors.New("invalid query parameter")

// salesHandler holds the sales service and implements HTTP handlers for
// dataset and analysis operations.
type salesHandler struct {
	salesService *sales.Service
	defaults     sales.Options
	logger       *zap.Logger

	mu     sync.Mutex
	source *sales.Dataset
	merged []analysis.Row
}

// NewSalesHandler creates a new sales handler. defaults fill the fields a
// generate request leaves out.
func NewSalesHandler(salesService *sales.Service, defaults sales.Options, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		defaults:     defaults,
		logger:       logger,
	}
}

// rows returns the merged rows of the current dataset, merging once per
// generated or loaded dataset.
func (h *salesHandler) rows() ([]analysis.Row, error) {
	ds, err := h.salesService.Current()
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.source != ds {
		h.merged = analysis.Merge(ds)
		h.source = ds
	}
	return h.merged, nil
}

// filteredRows applies the filters found in the query string.
func (h *salesHandler) filteredRows(ctx *gin.Context) ([]analysis.Row, error) {
	rows, err := h.rows()
	if err != nil {
		return nil, err
	}
	f, err := parseFilters(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Filter(rows, f)
}

// respondError maps service and analysis errors to status codes.
func (h *salesHandler) respondError(ctx *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadQuery),
		errors.Is(err, sales.ErrInvalidOptions),
		errors.Is(err, sales.ErrInvalidStatus),
		errors.Is(err, analysis.ErrUnknownColumn),
		errors.Is(err, analysis.ErrUnknownAggregation),
		errors.Is(err, analysis.ErrInvalidPeriod),
		errors.Is(err, analysis.ErrInvalidSort),
		errors.Is(err, analysis.ErrInvalidBins):
		status = http.StatusBadRequest
	case errors.Is(err, analysis.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, sales.ErrNoDataset):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		ctx.JSON(status, gin.H{"error": "failed to " + op})
		return
	}
	h.logger.Warn("request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	ctx.JSON(status, gin.H{"error": err.Error()})
}

// handleGetDataset handles GET /dataset.
func (h *salesHandler) handleGetDataset(ctx *gin.Context) {
	ds, err := h.salesService.Current()
	if err != nil {
		h.respondError(ctx, "get dataset", err)
		return
	}
	ctx.JSON(http.StatusOK, ds.Manifest)
}

// handleGenerate handles POST /dataset/generate.
func (h *salesHandler) handleGenerate(ctx *gin.Context) {
	var req struct {
		Seed      *uint64 `json:"seed"`
		Customers int     `json:"customers"`
		Products  int     `json:"products"`
		Orders    int     `json:"orders"`
		AsOf      string  `json:"as_of"`
	}
	// An empty body, sized or chunked, keeps every default.
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	opts := h.defaults
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	if req.Customers != 0 {
		opts.Customers = req.Customers
	}
	if req.Products != 0 {
		opts.Products = req.Products
	}
	if req.Orders != 0 {
		opts.Orders = req.Orders
	}
	if req.AsOf != "" {
		asOf, err := sales.ParseDate(req.AsOf)
		if err != nil {
			h.respondError(ctx, "generate dataset", fmt.Errorf("%w: as_of: %v", errBadQuery, err))
			return
		}
		opts.AsOf = asOf
	}

	ds, err := h.salesService.Generate(ctx.Request.Context(), opts)
	if err != nil && !errors.Is(err, sales.ErrPublishFailed) {
		h.respondError(ctx, "generate dataset", err)
		return
	}
	if err != nil {
		// The dataset is stored; only the copies elsewhere failed.
		h.logger.Warn("dataset generated with publication errors", zap.String("run_id", ds.Manifest.RunID), zap.Error(err))
	}

	ctx.JSON(http.StatusCreated, ds.Manifest)
}

// handleSearchSales handles GET /sales.
func (h *salesHandler) handleSearchSales(ctx *gin.Context) {
	q := sales.SearchQuery{
		CustomerID: ctx.Query("customer_id"),
		Category:   ctx.Query("category"),
		Status:     ctx.Query("status"),
	}
	var err error
	if q.From, err = dateParam(ctx, "from"); err != nil {
		h.respondError(ctx, "search sales", err)
		return
	}
	if q.To, err = dateParam(ctx, "to"); err != nil {
		h.respondError(ctx, "search sales", err)
		return
	}
	if q.Limit, err = intParam(ctx, "limit", 0); err != nil {
		h.respondError(ctx, "search sales", err)
		return
	}

	// Calls the service to search and get metadata
	results, metadata, err := h.salesService.SearchSales(q)
	if err != nil {
		h.respondError(ctx, "search sales", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results, "metadata": metadata})
}

// handleMetrics handles GET /metrics.
func (h *salesHandler) handleMetrics(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "compute metrics", err)
		return
	}
	metrics, err := analysis.Metrics(rows)
	if err != nil {
		h.respondError(ctx, "compute metrics", err)
		return
	}
	ctx.JSON(http.StatusOK, metrics)
}

// handleGroups handles GET /groups.
func (h *salesHandler) handleGroups(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "aggregate", err)
		return
	}
	q := analysis.Query{
		GroupBy:     listParam(ctx, "group_by"),
		Measure:     ctx.Query("measure"),
		Aggregation: ctx.DefaultQuery("aggregation", analysis.AggSum),
		SortBy:      ctx.Query("sort_by"),
	}
	if q.Limit, err = intParam(ctx, "limit", 0); err != nil {
		h.respondError(ctx, "aggregate", err)
		return
	}

	groups, err := analysis.GroupAndAggregate(rows, q)
	if err != nil {
		h.respondError(ctx, "aggregate", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"query": q, "groups": groups})
}

// handleTop handles GET /top.
func (h *salesHandler) handleTop(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "rank performers", err)
		return
	}
	n, err := intParam(ctx, "n", 10)
	if err != nil {
		h.respondError(ctx, "rank performers", err)
		return
	}

	top, err := analysis.TopPerformers(rows, ctx.Query("metric"), ctx.Query("group_by"), n)
	if err != nil {
		h.respondError(ctx, "rank performers", err)
		return
	}
	ctx.JSON(http.StatusOK, top)
}

// handleTrends handles GET /trends.
func (h *salesHandler) handleTrends(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "compute trends", err)
		return
	}
	trends, err := analysis.Trends(rows, ctx.DefaultQuery("period", analysis.PeriodMonth))
	if err != nil {
		h.respondError(ctx, "compute trends", err)
		return
	}
	ctx.JSON(http.StatusOK, trends)
}

// handleSummary handles GET /summary.
func (h *salesHandler) handleSummary(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "summarize", err)
		return
	}
	summary, err := analysis.SummaryTable(rows, ctx.DefaultQuery("group_by", "category"), listParam(ctx, "metrics"))
	if err != nil {
		h.respondError(ctx, "summarize", err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// handlePivot handles GET /pivot.
func (h *salesHandler) handlePivot(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "pivot", err)
		return
	}
	table, err := analysis.Pivot(rows,
		ctx.DefaultQuery("x", "category"),
		ctx.DefaultQuery("y", "customer_segment"),
		ctx.DefaultQuery("value", "total_amount"),
	)
	if err != nil {
		h.respondError(ctx, "pivot", err)
		return
	}
	ctx.JSON(http.StatusOK, table)
}

// handleDistribution handles GET /distribution.
func (h *salesHandler) handleDistribution(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "compute distribution", err)
		return
	}
	bins, err := intParam(ctx, "bins", analysis.DefaultBins)
	if err != nil {
		h.respondError(ctx, "compute distribution", err)
		return
	}
	dist, err := analysis.Distribution(rows, ctx.DefaultQuery("column", "total_amount"), bins)
	if err != nil {
		h.respondError(ctx, "compute distribution", err)
		return
	}
	ctx.JSON(http.StatusOK, dist)
}

// handleDashboard handles GET /dashboard.
func (h *salesHandler) handleDashboard(ctx *gin.Context) {
	rows, err := h.filteredRows(ctx)
	if err != nil {
		h.respondError(ctx, "build dashboard", err)
		return
	}
	view, err := analysis.Dashboard(rows)
	if err != nil {
		h.respondError(ctx, "build dashboard", err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// handleColumns handles GET /columns.
func (h *salesHandler) handleColumns(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"dimensions": analysis.Dimensions(),
		"measures":   analysis.Measures(),
	})
}

// parseFilters reads from, to, min_total, max_total and one parameter per
// dimension name. Dimension values may repeat or be comma separated.
func parseFilters(ctx *gin.Context) (analysis.Filters, error) {
	var (
		f   analysis.Filters
		err error
	)
	if f.From, err = dateParam(ctx, "from"); err != nil {
		return f, err
	}
	if f.To, err = dateParam(ctx, "to"); err != nil {
		return f, err
	}
	if f.MinTotal, err = floatParam(ctx, "min_total"); err != nil {
		return f, err
	}
	if f.MaxTotal, err = floatParam(ctx, "max_total"); err != nil {
		return f, err
	}

	for _, dim := range analysis.Dimensions() {
		if vals := listParam(ctx, dim); len(vals) > 0 {
			if f.Dimensions == nil {
				f.Dimensions = make(map[string][]string)
			}
			f.Dimensions[dim] = vals
		}
	}
	return f, nil
}

func listParam(ctx *gin.Context, name string) []string {
	var out []string
	for _, v := range ctx.QueryArray(name) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(ctx *gin.Context, name string, def int) (int, error) {
	v := ctx.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", errBadQuery, name, v)
	}
	return n, nil
}

// floatParam returns nil when name is absent so that zero stays a real bound.
func floatParam(ctx *gin.Context, name string) (*float64, error) {
	v := ctx.Query(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: %s=%q", errBadQuery, name, v)
	}
	return &f, nil
}

func dateParam(ctx *gin.Context, name string) (sales.Date, error) {
	v := ctx.Query(name)
	if v == "" {
		return sales.Date{}, nil
	}
	d, err := sales.ParseDate(v)
	if err != nil {
		return sales.Date{}, fmt.Errorf("%w: %s=%q", errBadQuery, name, v)
	}
	return d, nil
}
