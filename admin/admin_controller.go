package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bid_monitoring_platform/models"
	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminController handles admin UI requests
type AdminController struct {
	db         *gorm.DB
	bidService *services.BidService
}

// NewAdminController creates a new admin controller
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{
		db:         db,
		bidService: services.NewBidService(db),
	}
}

// getAdminUser retrieves the admin user from context
func (ac *AdminController) getAdminUser(c *gin.Context) *models.AdminUser {
	if user, exists := c.Get("admin_user"); exists {
		if adminUser, ok := user.(models.AdminUser); ok {
			return &adminUser
		}
	}
	return nil
}

// adminActor resolves the acting username for audit entries
func (ac *AdminController) adminActor(c *gin.Context) string {
	if admin := ac.getAdminUser(c); admin != nil {
		return admin.Username
	}
	return "admin"
}

// Dashboard shows admin dashboard
func (ac *AdminController) Dashboard(c *gin.Context) {
	adminUser := ac.getAdminUser(c)

	var summary *services.DashboardSummary
	if services.GlobalMetrics != nil {
		summary, _ = services.GlobalMetrics.Summary(services.BidFilter{})
	}
	if summary == nil {
		summary = &services.DashboardSummary{WinRateLabel: "0%", PipelineLabel: "N/A"}
	}

	deadlines, _ := ac.bidService.UpcomingDeadlines()
	activeStages, _ := ac.bidService.ActiveStages()

	var snapshots []services.MetricsSnapshot
	if services.GlobalAnalytics != nil && services.GlobalAnalytics.IsOpen() {
		snapshots, _ = services.GlobalAnalytics.RecentSnapshots(10)
	}

	var userCount int64
	ac.db.Model(&models.User{}).Where("is_active = ?", true).Count(&userCount)

	var documentCount int64
	ac.db.Model(&models.Document{}).Count(&documentCount)

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"summary":       summary,
		"deadlines":     deadlines,
		"windowDays":    services.DeadlineWindowDays,
		"activeStages":  activeStages,
		"snapshots":     snapshots,
		"userCount":     userCount,
		"documentCount": documentCount,
		"adminUser":     adminUser,
		"page":          "dashboard",
		"title":         "Dashboard",
	})
}

// BidsPage shows the bid list with filters and the create form
func (ac *AdminController) BidsPage(c *gin.Context) {
	adminUser := ac.getAdminUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	status := c.Query("status")
	assignedTo := c.Query("assigned_to")

	filter := services.BidFilter{
		AssignedTo: assignedTo,
		Page:       page,
		Limit:      20,
	}
	if status != "" {
		filter.Statuses = []string{status}
	}

	bids, total, err := ac.bidService.ListBids(filter)
	if err != nil {
		bids = nil
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	if totalPages < 1 {
		totalPages = 1
	}

	var users []models.User
	ac.db.Where("is_active = ?", true).Order("username ASC").Find(&users)

	c.HTML(http.StatusOK, "bids.html", gin.H{
		"bids":           bids,
		"total":          total,
		"currentPage":    page,
		"totalPages":     totalPages,
		"limit":          20,
		"filterStatus":   status,
		"filterAssigned": assignedTo,
		"statuses":       models.ValidBidStatuses(),
		"users":          users,
		"adminUser":      adminUser,
		"page":           "bids",
		"title":          "Bids",
	})
}

// BidDetailPage shows one bid with its stages, history and documents
func (ac *AdminController) BidDetailPage(c *gin.Context) {
	adminUser := ac.getAdminUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.Redirect(http.StatusFound, "/admin/bids")
		return
	}

	bid, err := ac.bidService.GetBid(uint(id))
	if err != nil {
		c.Redirect(http.StatusFound, "/admin/bids")
		return
	}

	stages, _ := ac.bidService.Stages(bid.ID)
	history, _ := ac.bidService.History(bid.ID)
	available, _ := ac.bidService.AvailableStages(bid.ID)

	var documents []models.Document
	ac.db.Where("bid_id = ?", bid.ID).Order("uploaded_at DESC").Find(&documents)

	c.HTML(http.StatusOK, "bid_detail.html", gin.H{
		"bid":             bid,
		"stages":          stages,
		"history":         history,
		"availableStages": available,
		"documents":       documents,
		"statuses":        models.ValidBidStatuses(),
		"lossReasons":     models.ValidLossReasons(),
		"stageOwner":      models.StageOwner(bid.Stage),
		"adminUser":       adminUser,
		"page":            "bids",
		"title":           bid.Title,
	})
}

// ActivityPage shows the recent audit trail across all bids
func (ac *AdminController) ActivityPage(c *gin.Context) {
	adminUser := ac.getAdminUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, _ := ac.bidService.RecentActivity(limit)

	c.HTML(http.StatusOK, "activity.html", gin.H{
		"entries":   entries,
		"limit":     limit,
		"adminUser": adminUser,
		"page":      "activity",
		"title":     "Activity",
	})
}

// UsersPage shows the bid team directory and admin accounts
func (ac *AdminController) UsersPage(c *gin.Context) {
	adminUser := ac.getAdminUser(c)

	var users []models.User
	ac.db.Order("username ASC").Find(&users)

	var adminUsers []models.AdminUser
	ac.db.Order("created_at DESC").Find(&adminUsers)

	c.HTML(http.StatusOK, "users.html", gin.H{
		"users":      users,
		"adminUsers": adminUsers,
		"roles":      models.ValidUserRoles(),
		"adminUser":  adminUser,
		"page":       "users",
		"title":      "Users",
	})
}

// CreateBidAction creates a bid from the admin form
func (ac *AdminController) CreateBidAction(c *gin.Context) {
	title := c.PostForm("title")
	clientName := c.PostForm("client_name")
	assignedTo := c.PostForm("assigned_to")

	if title == "" || clientName == "" || assignedTo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title, client and assignee are required"})
		return
	}

	var dueDate *time.Time
	if raw := c.PostForm("due_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due date format"})
			return
		}
		dueDate = &parsed
	}

	bidValue := decimal.Zero
	if raw := c.PostForm("bid_value"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid value"})
			return
		}
		bidValue = parsed
	}

	bid, err := ac.bidService.CreateBid(services.CreateBidInput{
		Title:       title,
		Description: c.PostForm("description"),
		ClientName:  clientName,
		AssignedTo:  assignedTo,
		DueDate:     dueDate,
		BidValue:    bidValue,
		CreatedBy:   ac.adminActor(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bid created", "id": bid.ID})
}

// UpdateStatusAction changes a bid's status from the admin form
func (ac *AdminController) UpdateStatusAction(c *gin.Context) {
	bidID, err := strconv.ParseUint(c.PostForm("bid_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid ID"})
		return
	}

	status := c.PostForm("status")
	reason := c.PostForm("reason")

	if !models.IsValidBidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	if status == models.BidStatusLost && !models.IsValidLossReason(reason) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A loss reason is required when marking a bid as Lost"})
		return
	}

	bid, err := ac.bidService.UpdateStatus(uint(bidID), status, reason, ac.adminActor(c))
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "status": bid.Status})
}

// AdvanceStageAction moves a bid to a new pipeline stage from the admin form
func (ac *AdminController) AdvanceStageAction(c *gin.Context) {
	bidID, err := strconv.ParseUint(c.PostForm("bid_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid ID"})
		return
	}

	stage := c.PostForm("stage")
	if !models.IsValidBidStage(stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stage"})
		return
	}

	record, err := ac.bidService.TransitionStage(uint(bidID), stage, c.PostForm("notes"), ac.adminActor(c))
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		if errors.Is(err, services.ErrStageAlreadyUsed) {
			c.JSON(http.StatusConflict, gin.H{"error": "Stage already completed for this bid"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to advance stage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stage updated",
		"stage":   record.Stage,
		"owner":   record.StageOwner,
	})
}

// UploadDocumentAction attaches an uploaded file to a bid from the admin form
func (ac *AdminController) UploadDocumentAction(c *gin.Context) {
	bidID, err := strconv.ParseUint(c.PostForm("bid_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid ID"})
		return
	}

	bid, err := ac.bidService.GetBid(uint(bidID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file upload is required"})
		return
	}

	if !models.IsAllowedDocumentExt(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed. Use PDF, DOCX or XLSX."})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	result, err := services.GlobalDocumentStorage.Upload(fileHeader.Filename, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store document"})
		return
	}

	document := models.Document{
		BidID:         bid.ID,
		DocumentName:  fileHeader.Filename,
		StorageKey:    result.StorageKey,
		SharePointURL: result.URL,
		ContentType:   fileHeader.Header.Get("Content-Type"),
		SizeBytes:     result.SizeBytes,
		UploadedBy:    ac.adminActor(c),
		UploadedAt:    time.Now(),
	}

	if err := ac.db.Create(&document).Error; err != nil {
		services.GlobalDocumentStorage.Delete(result.StorageKey)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document record"})
		return
	}

	if services.GlobalNotificationService != nil {
		services.GlobalNotificationService.BroadcastEvent(services.EventDocumentUploaded, map[string]interface{}{
			"bid_id":        bid.ID,
			"title":         bid.Title,
			"document_name": document.DocumentName,
			"url":           document.SharePointURL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document uploaded",
		"url":     document.SharePointURL,
	})
}

// CreateUserAction adds a user to the directory from the admin form
func (ac *AdminController) CreateUserAction(c *gin.Context) {
	username := c.PostForm("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}

	role := c.PostForm("role")
	if role == "" {
		role = models.UserRoleSalesperson
	}
	if !models.IsValidUserRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	// Check if username exists
	var existing models.User
	if err := ac.db.Where("username = ?", username).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}

	user := models.User{
		Username: username,
		Role:     role,
		IsActive: true,
	}

	if err := ac.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User created", "id": user.ID})
}

// UpdateUserRoleAction changes a directory user's role
func (ac *AdminController) UpdateUserRoleAction(c *gin.Context) {
	userID := c.PostForm("user_id")
	role := c.PostForm("role")

	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}
	if !models.IsValidUserRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	var user models.User
	if err := ac.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := ac.db.Model(&user).Update("role", role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

// UpdateUserStatusAction toggles a directory user's active flag
func (ac *AdminController) UpdateUserStatusAction(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	if _, err := strconv.ParseUint(userID, 10, 32); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	isActive := c.PostForm("is_active") == "true"

	if err := ac.db.Model(&models.User{}).Where("id = ?", userID).Update("is_active", isActive).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User status updated"})
}

// CreateAdminUserAction creates a new admin account
func (ac *AdminController) CreateAdminUserAction(c *gin.Context) {
	var request struct {
		Username string `form:"username" binding:"required"`
		Password string `form:"password" binding:"required"`
		Email    string `form:"email"`
		FullName string `form:"full_name"`
		Role     string `form:"role"`
	}

	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Check if username exists
	var existing models.AdminUser
	if err := ac.db.Where("username = ?", request.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}

	adminUser := &models.AdminUser{
		Username: request.Username,
		Email:    request.Email,
		FullName: request.FullName,
		Role:     request.Role,
		IsActive: true,
	}

	if request.Role == "" {
		adminUser.Role = "admin"
	}

	if err := adminUser.SetPassword(request.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	if err := ac.db.Create(adminUser).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create admin user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Admin user created successfully", "id": adminUser.ID})
}
