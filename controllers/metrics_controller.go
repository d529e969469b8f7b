package controllers

import (
	"net/http"
	"strconv"

	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MetricsController exposes pipeline metrics
type MetricsController struct {
	db *gorm.DB
}

// NewMetricsController creates a new metrics controller
func NewMetricsController(db *gorm.DB) *MetricsController {
	return &MetricsController{db: db}
}

// GetSummary returns the dashboard metrics, honoring the bid list filters
// GET /api/v1/metrics/summary
func (mc *MetricsController) GetSummary(c *gin.Context) {
	if services.GlobalMetrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Metrics service not ready"})
		return
	}

	filter := services.BidFilter{
		Statuses:   parseStatusFilter(c),
		AssignedTo: c.Query("assigned_to"),
	}

	summary, err := services.GlobalMetrics.Summary(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetOverview returns the status breakdown and loss reason counts
// GET /api/v1/metrics/overview
func (mc *MetricsController) GetOverview(c *gin.Context) {
	if services.GlobalMetrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Metrics service not ready"})
		return
	}

	overview, err := services.GlobalMetrics.Overview()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute overview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}

// GetHistory returns recent metrics snapshots
// GET /api/v1/metrics/history
func (mc *MetricsController) GetHistory(c *gin.Context) {
	if services.GlobalAnalytics == nil || !services.GlobalAnalytics.IsOpen() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analytics store not ready"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	snapshots, err := services.GlobalAnalytics.RecentSnapshots(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch snapshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshots})
}
