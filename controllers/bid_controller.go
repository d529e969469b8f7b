package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bid_monitoring_platform/middleware"
	"bid_monitoring_platform/models"
	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BidController handles bid-related requests
type BidController struct {
	db         *gorm.DB
	bidService *services.BidService
}

// NewBidController creates a new bid controller
func NewBidController(db *gorm.DB) *BidController {
	return &BidController{
		db:         db,
		bidService: services.NewBidService(db),
	}
}

// requestActor resolves the acting username from the auth context
func requestActor(c *gin.Context) string {
	if username, err := middleware.GetUsernameFromContext(c); err == nil && username != "" {
		return username
	}
	return "system"
}

// parseBidID parses the :id route parameter
func parseBidID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid ID"})
		return 0, false
	}
	return uint(id), true
}

// parseStatusFilter collects status values from repeated or
// comma-separated query parameters
func parseStatusFilter(c *gin.Context) []string {
	var statuses []string
	for _, raw := range c.QueryArray("status") {
		for _, status := range strings.Split(raw, ",") {
			status = strings.TrimSpace(status)
			if status != "" {
				statuses = append(statuses, status)
			}
		}
	}
	return statuses
}

// GetBids returns list of bids with filters and pagination
// GET /api/v1/bids
func (bc *BidController) GetBids(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	filter := services.BidFilter{
		Statuses:   parseStatusFilter(c),
		AssignedTo: c.Query("assigned_to"),
		Page:       page,
		Limit:      limit,
	}

	bids, total, err := bc.bidService.ListBids(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bids"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": bids,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetBid returns a single bid by ID
// GET /api/v1/bids/:id
func (bc *BidController) GetBid(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	bid, err := bc.bidService.GetBid(id)
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bid})
}

// CreateBid creates a new bid
// POST /api/v1/bids
func (bc *BidController) CreateBid(c *gin.Context) {
	var request struct {
		Title       string  `json:"title" binding:"required"`
		Description string  `json:"description"`
		ClientName  string  `json:"client_name" binding:"required"`
		AssignedTo  string  `json:"assigned_to" binding:"required"`
		DueDate     string  `json:"due_date"`
		BidValue    float64 `json:"bid_value"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dueDate *time.Time
	if request.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", request.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due date format, expected YYYY-MM-DD"})
			return
		}
		dueDate = &parsed
	}

	bid, err := bc.bidService.CreateBid(services.CreateBidInput{
		Title:       request.Title,
		Description: request.Description,
		ClientName:  request.ClientName,
		AssignedTo:  request.AssignedTo,
		DueDate:     dueDate,
		BidValue:    decimal.NewFromFloat(request.BidValue),
		CreatedBy:   requestActor(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bid"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": bid})
}

// UpdateBidStatus changes a bid's status
// PUT /api/v1/bids/:id/status
func (bc *BidController) UpdateBidStatus(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	var request struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidBidStatus(request.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Invalid status",
			"valid_statuses": models.ValidBidStatuses(),
		})
		return
	}
	if request.Status == models.BidStatusLost && !models.IsValidLossReason(request.Reason) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "A loss reason is required when marking a bid as Lost",
			"valid_reasons": models.ValidLossReasons(),
		})
		return
	}

	bid, err := bc.bidService.UpdateStatus(id, request.Status, request.Reason, requestActor(c))
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bid status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bid})
}

// UpdateBidStage moves a bid to a pipeline stage it has not used yet
// PUT /api/v1/bids/:id/stage
func (bc *BidController) UpdateBidStage(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	var request struct {
		Stage string `json:"stage" binding:"required"`
		Notes string `json:"notes"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidBidStage(request.Stage) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        "Invalid stage",
			"valid_stages": models.BidStageNames(),
		})
		return
	}

	stage, err := bc.bidService.TransitionStage(id, request.Stage, request.Notes, requestActor(c))
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		if errors.Is(err, services.ErrStageAlreadyUsed) {
			c.JSON(http.StatusConflict, gin.H{"error": "Stage already completed for this bid"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bid stage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stage})
}

// GetBidStages returns a bid's pipeline records
// GET /api/v1/bids/:id/stages
func (bc *BidController) GetBidStages(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	stages, err := bc.bidService.Stages(id)
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stages})
}

// GetAvailableStages returns stages the bid has not entered yet
// GET /api/v1/bids/:id/stages/available
func (bc *BidController) GetAvailableStages(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	available, err := bc.bidService.AvailableStages(id)
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch available stages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": available})
}

// GetBidHistory returns a bid's audit trail
// GET /api/v1/bids/:id/history
func (bc *BidController) GetBidHistory(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	history, err := bc.bidService.History(id)
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

// GetBidDocuments returns a bid's document records
// GET /api/v1/bids/:id/documents
func (bc *BidController) GetBidDocuments(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	if _, err := bc.bidService.GetBid(id); err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bid"})
		return
	}

	var documents []models.Document
	if err := bc.db.Where("bid_id = ?", id).Order("uploaded_at DESC").Find(&documents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": documents})
}

// GetDeadlines returns open bids due within the reminder window
// GET /api/v1/bids/deadlines
func (bc *BidController) GetDeadlines(c *gin.Context) {
	bids, err := bc.bidService.UpcomingDeadlines()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deadlines"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        bids,
		"window_days": services.DeadlineWindowDays,
	})
}

// DeleteBid removes a bid and its related records
// DELETE /api/v1/bids/:id
func (bc *BidController) DeleteBid(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	if err := bc.bidService.DeleteBid(id); err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete bid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bid deleted successfully"})
}

// GetActivity returns recent audit records across all bids
// GET /api/v1/activity
func (bc *BidController) GetActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := bc.bidService.RecentActivity(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}
