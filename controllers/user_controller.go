package controllers

import (
	"net/http"
	"strconv"

	"bid_monitoring_platform/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserController handles the bid team directory
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a new user controller
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// GetUsers returns list of all users with pagination
// GET /api/v1/users
func (uc *UserController) GetUsers(c *gin.Context) {
	var users []models.User

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset := (page - 1) * limit

	query := uc.db.Model(&models.User{})

	// Filter by role
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	// Filter by active status
	if isActive := c.Query("is_active"); isActive != "" {
		query = query.Where("is_active = ?", isActive == "true")
	}

	// Search by username
	if search := c.Query("search"); search != "" {
		query = query.Where("username LIKE ?", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	if err := query.Order("username ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": users,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetUser returns a single user by ID or username
// GET /api/v1/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id := c.Param("id")

	var user models.User
	if err := uc.db.Where("id = ? OR username = ?", id, id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

// CreateUser adds a user to the directory
// POST /api/v1/users
func (uc *UserController) CreateUser(c *gin.Context) {
	var request struct {
		Username string `json:"username" binding:"required"`
		Role     string `json:"role"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := request.Role
	if role == "" {
		role = models.UserRoleSalesperson
	}
	if !models.IsValidUserRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "Invalid role",
			"valid_roles": models.ValidUserRoles(),
		})
		return
	}

	// Check if username is taken
	var existing models.User
	if err := uc.db.Where("username = ?", request.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}

	user := models.User{
		Username: request.Username,
		Role:     role,
		IsActive: true,
	}

	if err := uc.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// UpdateUserRole changes a user's role
// PUT /api/v1/users/:id/role
func (uc *UserController) UpdateUserRole(c *gin.Context) {
	id := c.Param("id")

	var user models.User
	if err := uc.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var request struct {
		Role string `json:"role" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidUserRole(request.Role) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "Invalid role",
			"valid_roles": models.ValidUserRoles(),
		})
		return
	}

	if err := uc.db.Model(&user).Update("role", request.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

// DeleteUser deactivates a user
// DELETE /api/v1/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id := c.Param("id")

	if err := uc.db.Model(&models.User{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deactivated successfully"})
}
