package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"salesdata/internal/analysis"
	"salesdata/internal/sales"
)

func testOptions() sales.Options {
	return sales.Options{
		Seed:      42,
		Customers: 30,
		Products:  20,
		Orders:    120,
		AsOf:      sales.NewDate(time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)),
	}
}

func initRoutesTests(t *testing.T) *gin.Engine {
	t.Helper()
	// 1. Configure Gin
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// 2. Wire the service on in-memory storage
	logger := zaptest.NewLogger(t)
	service := sales.NewService(sales.NewLocalStorage(), logger)

	// 3. Register the routes
	InitRoutes(router, service, testOptions(), logger)
	return router
}

func doRequest(router *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	router := initRoutesTests(t)
	w := doRequest(router, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestNoDatasetYet(t *testing.T) {
	router := initRoutesTests(t)
	for _, path := range []string{"/dataset", "/sales", "/metrics", "/dashboard"} {
		w := doRequest(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

// TestDatasetHappyPath_FullFlow generates a dataset and queries every
// endpoint over it.
func TestDatasetHappyPath_FullFlow(t *testing.T) {
	router := initRoutesTests(t)

	var manifest sales.Manifest

	//1: POST /dataset/generate
	t.Run("POST_Generate", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/dataset/generate", []byte(`{"orders": 80}`))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &manifest))
		assert.NotEmpty(t, manifest.RunID)
		assert.Equal(t, uint64(42), manifest.Seed)
		assert.Equal(t, 80, manifest.Orders)
		assert.Equal(t, 30, manifest.Customers, "missing fields keep the defaults")
		assert.Equal(t, "2025-06-30", manifest.AsOf.String())
	})
	require.NotEmpty(t, manifest.RunID, "dataset was not generated")

	//2: GET /dataset
	t.Run("GET_Dataset", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/dataset", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got sales.Manifest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, manifest, got)
	})

	//3: GET /sales
	t.Run("GET_SearchSales", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/sales?status=completed&limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Results  []sales.Record      `json:"results"`
			Metadata sales.SalesMetadata `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.LessOrEqual(t, len(response.Results), 5)
		assert.Equal(t, response.Metadata.Quantity, response.Metadata.Completed)
		assert.Zero(t, response.Metadata.Cancelled)
		assert.Zero(t, response.Metadata.Returned)
	})

	//4: GET /metrics
	t.Run("GET_Metrics", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var m analysis.BusinessMetrics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
		assert.InDelta(t, manifest.TotalRevenue, m.TotalRevenue, 0.01)
		assert.Equal(t, manifest.Orders, m.TotalOrders)
	})

	//5: GET /groups
	t.Run("GET_Groups", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/groups?group_by=category&measure=total_amount&sort_by=value_desc&limit=3", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var response struct {
			Groups []analysis.Group `json:"groups"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.NotEmpty(t, response.Groups)
		assert.LessOrEqual(t, len(response.Groups), 3)
		for i := 1; i < len(response.Groups); i++ {
			assert.GreaterOrEqual(t, response.Groups[i-1].Value, response.Groups[i].Value)
		}
	})

	//6: filtered analysis endpoints
	t.Run("GET_FilteredEndpoints", func(t *testing.T) {
		paths := []string{
			"/top?n=3&category=Electronics,Books",
			"/trends?period=quarter",
			"/summary?group_by=customer_segment",
			"/pivot?x=category&y=order_status",
			"/distribution?column=total_amount&bins=10",
			"/dashboard?from=2024-07-01",
			"/columns",
		}
		for _, path := range paths {
			w := doRequest(router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusOK, w.Code, path+": "+w.Body.String())
		}
	})
}

func TestBadRequests(t *testing.T) {
	router := initRoutesTests(t)
	w := doRequest(router, http.MethodPost, "/dataset/generate", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tests := map[string]struct {
		method string
		path   string
		body   []byte
		want   int
	}{
		"unknown status":      {http.MethodGet, "/sales?status=approved", nil, http.StatusBadRequest},
		"bad date":            {http.MethodGet, "/sales?from=01/02/2025", nil, http.StatusBadRequest},
		"bad limit":           {http.MethodGet, "/sales?limit=-1", nil, http.StatusBadRequest},
		"unknown period":      {http.MethodGet, "/trends?period=fortnight", nil, http.StatusBadRequest},
		"unknown column":      {http.MethodGet, "/groups?group_by=colour", nil, http.StatusBadRequest},
		"unknown aggregation": {http.MethodGet, "/groups?group_by=category&measure=profit&aggregation=median", nil, http.StatusBadRequest},
		"bad bins":            {http.MethodGet, "/distribution?bins=many", nil, http.StatusBadRequest},
		"too many bins":       {http.MethodGet, "/distribution?bins=1001", nil, http.StatusBadRequest},
		"huge bins":           {http.MethodGet, "/distribution?bins=4611686018427387904", nil, http.StatusBadRequest},
		"bad max_total":       {http.MethodGet, "/metrics?max_total=NaN", nil, http.StatusBadRequest},
		"zero max_total":      {http.MethodGet, "/metrics?max_total=0", nil, http.StatusNotFound},
		"no matching rows":    {http.MethodGet, "/metrics?category=Groceries", nil, http.StatusNotFound},
		"bad payload":         {http.MethodPost, "/dataset/generate", []byte(`{"orders": "lots"}`), http.StatusBadRequest},
		"negative orders":     {http.MethodPost, "/dataset/generate", []byte(`{"orders": -5}`), http.StatusBadRequest},
		"bad as_of":           {http.MethodPost, "/dataset/generate", []byte(`{"as_of": "June"}`), http.StatusBadRequest},
		"orders over limit":   {http.MethodPost, "/dataset/generate", []byte(`{"orders": 1000001}`), http.StatusBadRequest},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w := doRequest(router, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestRowsCachedPerRun(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := sales.NewService(sales.NewLocalStorage(), logger)
	h := NewSalesHandler(service, testOptions(), logger)

	_, err := service.Generate(t.Context(), testOptions())
	require.NoError(t, err)
	first, err := h.rows()
	require.NoError(t, err)
	again, err := h.rows()
	require.NoError(t, err)
	assert.Same(t, &first[0], &again[0])

	opts := testOptions()
	opts.Orders = 5
	_, err = service.Generate(t.Context(), opts)
	require.NoError(t, err)
	fresh, err := h.rows()
	require.NoError(t, err)
	assert.NotSame(t, &first[0], &fresh[0])
	orders := map[string]bool{}
	for _, r := range fresh {
		orders[r.OrderID] = true
	}
	assert.Len(t, orders, 5)
}

func TestRegenerateSameSeedOtherCounts(t *testing.T) {
	router := initRoutesTests(t)

	var runIDs []string
	for _, orders := range []int{120, 5} {
		body := []byte(`{"seed": 42, "orders": ` + strconv.Itoa(orders) + `}`)
		w := doRequest(router, http.MethodPost, "/dataset/generate", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var manifest sales.Manifest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &manifest))
		runIDs = append(runIDs, manifest.RunID)

		w = doRequest(router, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var m analysis.BusinessMetrics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
		assert.Equal(t, orders, m.TotalOrders)
	}
	assert.NotEqual(t, runIDs[0], runIDs[1])
}

func TestGenerateChunkedEmptyBody(t *testing.T) {
	router := initRoutesTests(t)

	// A reader of unknown size leaves ContentLength at -1, as a chunked
	// request without a body does.
	req := httptest.NewRequest(http.MethodPost, "/dataset/generate", io.MultiReader())
	req.Header.Set("Content-Type", "application/json")
	require.EqualValues(t, -1, req.ContentLength)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var manifest sales.Manifest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &manifest))
	assert.Equal(t, testOptions().Orders, manifest.Orders)
}
