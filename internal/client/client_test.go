package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"salesdata/api"
	"salesdata/internal/sales"
)

func newServer(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := zaptest.NewLogger(t)
	service := sales.NewService(sales.NewLocalStorage(), logger)
	api.InitRoutes(router, service, sales.Options{
		Seed: 42, Customers: 25, Products: 15, Orders: 60,
		AsOf: sales.NewDate(time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC)),
	}, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c := New(srv.URL)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_FullFlow(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	_, err := c.Manifest(ctx)
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "503")

	seed := uint64(8)
	generated, err := c.Generate(ctx, GenerateRequest{Seed: &seed, Orders: 50})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), generated.Seed)
	assert.Equal(t, 50, generated.Orders)

	m, err := c.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, generated, m)

	metrics, err := c.Metrics(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, metrics.TotalOrders)
	assert.InDelta(t, generated.TotalRevenue, metrics.TotalRevenue, 0.01)

	top, err := c.Top(ctx, "profit", "", 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(top), 3)
	assert.NotEmpty(t, top[0].Name)

	trends, err := c.Trends(ctx, "quarter")
	require.NoError(t, err)
	assert.NotEmpty(t, trends)

	summary, err := c.Summary(ctx, "customer_segment")
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
}

func TestClient_ErrorBody(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()
	_, err := c.Generate(ctx, GenerateRequest{})
	require.NoError(t, err)

	_, err = c.Trends(ctx, "fortnight")
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "fortnight")
}
