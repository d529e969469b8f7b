package scheduler

import (
	"fmt"
	"log"
	"time"

	"bid_monitoring_platform/models"
	"bid_monitoring_platform/services"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

// HistoryRetentionMonths is how long bid history rows are kept before the
// weekly archive run prunes them
const HistoryRetentionMonths = 12

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron       *gocron.Scheduler
	db         *gorm.DB
	bidService *services.BidService
}

// NewScheduler creates a new scheduler instance
func NewScheduler(db *gorm.DB) *Scheduler {
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		db:         db,
		bidService: services.NewBidService(db),
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Scan for approaching deadlines every 15 minutes
	s.cron.Every(15).Minutes().Do(func() {
		s.scanDeadlines()
	})

	// Capture a metrics snapshot daily at 07:00
	s.cron.Every(1).Day().At("07:00").Do(func() {
		s.captureMetricsSnapshot()
	})

	// Purge expired admin sessions hourly
	s.cron.Every(1).Hour().Do(func() {
		s.purgeExpiredSessions()
	})

	// Archive long-closed bids weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.archiveClosedBids()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// scanDeadlines broadcasts an alert for open bids due within the window
func (s *Scheduler) scanDeadlines() {
	bids, err := s.bidService.UpcomingDeadlines()
	if err != nil {
		log.Printf("Error scanning deadlines: %v", err)
		return
	}

	if len(bids) == 0 {
		return
	}

	items := make([]map[string]interface{}, 0, len(bids))
	for _, bid := range bids {
		item := map[string]interface{}{
			"bid_id":      bid.ID,
			"title":       bid.Title,
			"assigned_to": bid.AssignedTo,
		}
		if bid.DueDate != nil {
			item["due_date"] = bid.DueDate.Format("2006-01-02")
		}
		items = append(items, item)
	}

	if services.GlobalNotificationService != nil {
		services.GlobalNotificationService.BroadcastEvent(services.EventDeadlineAlert, map[string]interface{}{
			"message": fmt.Sprintf("%d bid(s) due within %d days", len(bids), services.DeadlineWindowDays),
			"bids":    items,
		})
	}

	log.Printf("Deadline scan: %d bid(s) due within %d days", len(bids), services.DeadlineWindowDays)
}

// captureMetricsSnapshot persists the daily metrics snapshot
func (s *Scheduler) captureMetricsSnapshot() {
	if services.GlobalMetrics == nil {
		return
	}

	snapshot, err := services.GlobalMetrics.CaptureSnapshot()
	if err != nil {
		log.Printf("Error capturing metrics snapshot: %v", err)
		return
	}

	log.Printf("Captured metrics snapshot: %d bids total, win rate %.1f%%", snapshot.TotalBids, snapshot.WinRate)
}

// purgeExpiredSessions removes admin sessions past their expiry
func (s *Scheduler) purgeExpiredSessions() {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&models.AdminSession{})
	if result.Error != nil {
		log.Printf("Error purging expired sessions: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Purged %d expired admin session(s)", result.RowsAffected)
	}
}

// archiveClosedBids copies long-closed bids to the MongoDB archive and
// prunes history rows past the retention window
func (s *Scheduler) archiveClosedBids() {
	if services.GlobalMongoClient == nil || !services.GlobalMongoClient.IsConfigured() {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -services.ArchiveAfterDays)
	archived, err := services.GlobalMongoClient.ArchiveClosedBids(s.db, cutoff)
	if err != nil {
		log.Printf("Error archiving closed bids: %v", err)
		return
	}

	if services.GlobalAnalytics != nil {
		if err := services.GlobalAnalytics.SaveConfig("last_archive_run", time.Now().UTC().Format(time.RFC3339)); err != nil {
			log.Printf("Error recording archive run: %v", err)
		}
	}

	log.Printf("Archived %d closed bid(s)", archived)

	s.pruneOldHistory()
}

// pruneOldHistory deletes bid history entries older than the retention window
func (s *Scheduler) pruneOldHistory() {
	cutoff := time.Now().AddDate(0, -HistoryRetentionMonths, 0)
	result := s.db.Where("changed_at < ?", cutoff).Delete(&models.BidHistory{})
	if result.Error != nil {
		log.Printf("Error pruning old history: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Pruned %d old history entries", result.RowsAffected)
	}
}
