package admin

import (
	"net/http"
	"time"

	"bid_monitoring_platform/models"
	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsController handles the admin settings page and its actions
type SettingsController struct {
	db *gorm.DB
}

// NewSettingsController creates a new settings controller
func NewSettingsController(db *gorm.DB) *SettingsController {
	return &SettingsController{db: db}
}

// SettingsPage shows scheduler, storage and archive status
func (sc *SettingsController) SettingsPage(c *gin.Context) {
	var adminUser *models.AdminUser
	if user, exists := c.Get("admin_user"); exists {
		if u, ok := user.(models.AdminUser); ok {
			adminUser = &u
		}
	}

	var reminderConfig *services.ReminderSchedulerConfig
	reminderRunning := false
	if services.GlobalReminderScheduler != nil {
		cfg := services.GlobalReminderScheduler.GetConfig()
		reminderConfig = &cfg
		reminderRunning = services.GlobalReminderScheduler.IsRunning()
	}

	var storageStatus map[string]interface{}
	if services.GlobalDocumentStorage != nil {
		storageStatus = services.GlobalDocumentStorage.GetStatus()
	}

	var mongoStatus map[string]interface{}
	var archivedCount int64
	if services.GlobalMongoClient != nil {
		mongoStatus = services.GlobalMongoClient.GetConnectionStatus()
		if services.GlobalMongoClient.IsConfigured() {
			archivedCount, _ = services.GlobalMongoClient.CountArchivedBids()
		}
	}

	var hubStatus map[string]interface{}
	if services.GlobalNotificationService != nil {
		hubStatus = services.GlobalNotificationService.GetStatus()
	}

	var snapshotCount int64
	var latestSnapshot *services.MetricsSnapshot
	lastArchiveRun := ""
	if services.GlobalAnalytics != nil && services.GlobalAnalytics.IsOpen() {
		snapshotCount, _ = services.GlobalAnalytics.SnapshotCount()
		latestSnapshot, _ = services.GlobalAnalytics.LatestSnapshot()
		lastArchiveRun, _ = services.GlobalAnalytics.LoadConfig("last_archive_run")
	}

	c.HTML(http.StatusOK, "settings.html", gin.H{
		"reminderConfig":   reminderConfig,
		"reminderRunning":  reminderRunning,
		"storageStatus":    storageStatus,
		"mongoStatus":      mongoStatus,
		"archivedCount":    archivedCount,
		"archiveAfterDays": services.ArchiveAfterDays,
		"hubStatus":        hubStatus,
		"snapshotCount":    snapshotCount,
		"latestSnapshot":   latestSnapshot,
		"lastArchiveRun":   lastArchiveRun,
		"adminUser":        adminUser,
		"page":             "settings",
		"title":            "Settings",
	})
}

// UpdateReminderConfigAction updates the reminder scheduler settings
func (sc *SettingsController) UpdateReminderConfigAction(c *gin.Context) {
	if services.GlobalReminderScheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reminder scheduler not ready"})
		return
	}

	enabled := c.PostForm("enabled") == "true" || c.PostForm("enabled") == "on"
	scheduleTime := c.PostForm("schedule_time")

	if _, err := time.Parse("15:04", scheduleTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Schedule time must be in HH:MM format"})
		return
	}

	if err := services.GlobalReminderScheduler.UpdateConfig(enabled, scheduleTime); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save reminder config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reminder config updated",
		"config":  services.GlobalReminderScheduler.GetConfig(),
	})
}

// RunReminderNowAction triggers an immediate deadline digest
func (sc *SettingsController) RunReminderNowAction(c *gin.Context) {
	if services.GlobalReminderScheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reminder scheduler not ready"})
		return
	}

	result, err := services.GlobalReminderScheduler.RunDigestNow()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Deadline digest sent",
		"bids_due": result.BidsDue,
	})
}

// ArchiveNowAction archives closed bids to MongoDB immediately
func (sc *SettingsController) ArchiveNowAction(c *gin.Context) {
	if services.GlobalMongoClient == nil || !services.GlobalMongoClient.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "MongoDB archive not configured"})
		return
	}

	cutoff := time.Now().AddDate(0, 0, -services.ArchiveAfterDays)
	count, err := services.GlobalMongoClient.ArchiveClosedBids(sc.db, cutoff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if services.GlobalAnalytics != nil && services.GlobalAnalytics.IsOpen() {
		services.GlobalAnalytics.SaveConfig("last_archive_run", time.Now().Format(time.RFC3339))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Archive run completed",
		"archived": count,
	})
}
