package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesdata/internal/sales"
)

// InitRoutes registers the dataset and analysis endpoints on the given Gin
// engine. defaults are the generator options used by POST /dataset/generate
// for fields the request leaves out.
func InitRoutes(e *gin.Engine, salesService *sales.Service, defaults sales.Options, logger *zap.Logger) {
	salesHandler := NewSalesHandler(salesService, defaults, logger)

	e.GET("/dataset", salesHandler.handleGetDataset)
	e.POST("/dataset/generate", salesHandler.handleGenerate)
	e.GET("/sales", salesHandler.handleSearchSales)

	e.GET("/columns", salesHandler.handleColumns)
	e.GET("/metrics", salesHandler.handleMetrics)
	e.GET("/groups", salesHandler.handleGroups)
	e.GET("/top", salesHandler.handleTop)
	e.GET("/trends", salesHandler.handleTrends)
	e.GET("/summary", salesHandler.handleSummary)
	e.GET("/pivot", salesHandler.handlePivot)
	e.GET("/distribution", salesHandler.handleDistribution)
	e.GET("/dashboard", salesHandler.handleDashboard)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
