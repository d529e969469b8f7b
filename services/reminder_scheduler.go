package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ReminderSchedulerConfig holds the reminder scheduler configuration
type ReminderSchedulerConfig struct {
	Enabled      bool   `json:"enabled"`
	ScheduleTime string `json:"schedule_time"` // Format: "HH:MM" (e.g., "08:00")
	LastRun      string `json:"last_run"`
	NextRun      string `json:"next_run"`
}

// DeadlineDigestResult summarizes a digest run
type DeadlineDigestResult struct {
	BidsDue     int    `json:"bids_due"`
	GeneratedAt string `json:"generated_at"`
}

// ReminderScheduler sends the daily deadline digest
type ReminderScheduler struct {
	db         *gorm.DB
	config     ReminderSchedulerConfig
	configFile string
	stopChan   chan struct{}
	mu         sync.RWMutex
	running    bool
}

// Global reminder scheduler instance
var GlobalReminderScheduler *ReminderScheduler

const ReminderSchedulerConfigFile = "data/reminder_scheduler.json"

// InitReminderScheduler initializes the reminder scheduler
func InitReminderScheduler(db *gorm.DB) error {
	GlobalReminderScheduler = &ReminderScheduler{
		db:         db,
		configFile: ReminderSchedulerConfigFile,
		stopChan:   make(chan struct{}),
	}

	// Load config from file
	if err := GlobalReminderScheduler.LoadConfig(); err != nil {
		log.Printf("No reminder config found, using defaults: %v", err)
		// Set default config
		GlobalReminderScheduler.config = ReminderSchedulerConfig{
			Enabled:      true,
			ScheduleTime: "08:00",
		}
	}

	// Start the scheduler if enabled
	if GlobalReminderScheduler.config.Enabled {
		GlobalReminderScheduler.Start()
	}

	return nil
}

// LoadConfig loads scheduler config from file
func (s *ReminderScheduler) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.configFile)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &s.config)
}

// SaveConfig saves scheduler config to file
func (s *ReminderScheduler) SaveConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile, data, 0644)
}

// GetConfig returns the current scheduler configuration
func (s *ReminderScheduler) GetConfig() ReminderSchedulerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig updates the scheduler configuration
func (s *ReminderScheduler) UpdateConfig(enabled bool, scheduleTime string) error {
	s.mu.Lock()
	s.config.Enabled = enabled
	s.config.ScheduleTime = scheduleTime
	s.mu.Unlock()

	// Save to file
	if err := s.SaveConfig(); err != nil {
		return err
	}

	// Restart scheduler if needed
	if enabled {
		s.Stop()
		s.Start()
	} else {
		s.Stop()
	}

	return nil
}

// Start starts the scheduler
func (s *ReminderScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.run()
	log.Printf("Reminder scheduler started, digest time: %s", s.config.ScheduleTime)
}

// Stop stops the scheduler
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
	log.Println("Reminder scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *ReminderScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// run is the main scheduler loop
func (s *ReminderScheduler) run() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Calculate next run time
	s.updateNextRunTime()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.mu.RLock()
			scheduleTime := s.config.ScheduleTime
			enabled := s.config.Enabled
			s.mu.RUnlock()

			if !enabled {
				continue
			}

			// Parse schedule time
			hour, min := parseScheduleTime(scheduleTime)
			currentHour := now.Hour()
			currentMin := now.Minute()

			// Check if it's time to send the digest
			if currentHour == hour && currentMin == min {
				log.Println("Deadline digest triggered by scheduler")
				s.runDigest()
			}
		}
	}
}

// runDigest performs the actual digest run
func (s *ReminderScheduler) runDigest() {
	result, err := s.sendDigest()
	if err != nil {
		log.Printf("Scheduled deadline digest failed: %v", err)
	} else {
		log.Printf("Scheduled deadline digest completed: bids_due=%d", result.BidsDue)
	}

	// Update last run time
	s.mu.Lock()
	s.config.LastRun = time.Now().Format(time.RFC3339)
	s.mu.Unlock()

	s.updateNextRunTime()
	s.SaveConfig()
}

// sendDigest collects open bids due within the deadline window and
// broadcasts a deadline alert listing them
func (s *ReminderScheduler) sendDigest() (*DeadlineDigestResult, error) {
	bidService := NewBidService(s.db)
	bids, err := bidService.UpcomingDeadlines()
	if err != nil {
		return nil, err
	}

	result := &DeadlineDigestResult{
		BidsDue:     len(bids),
		GeneratedAt: time.Now().Format(time.RFC3339),
	}

	if len(bids) == 0 {
		return result, nil
	}

	if GlobalNotificationService != nil {
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
		GlobalNotificationService.BroadcastEvent(EventDeadlineAlert, map[string]interface{}{
			"message": fmt.Sprintf("%d bid(s) due within %d days", len(bids), DeadlineWindowDays),
			"bids":    items,
		})
	}

	return result, nil
}

// updateNextRunTime calculates and updates the next run time
func (s *ReminderScheduler) updateNextRunTime() {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour, min := parseScheduleTime(s.config.ScheduleTime)
	now := time.Now()

	nextRun := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())

	// If the time has passed today, schedule for tomorrow
	if now.After(nextRun) {
		nextRun = nextRun.Add(24 * time.Hour)
	}

	s.config.NextRun = nextRun.Format(time.RFC3339)
}

// parseScheduleTime parses "HH:MM" format into hour and minute
func parseScheduleTime(timeStr string) (int, int) {
	hour := 8
	min := 0

	if len(timeStr) >= 5 {
		var h, m int
		if _, err := parseTimeFormat(timeStr, &h, &m); err == nil {
			hour = h
			min = m
		}
	}

	return hour, min
}

// parseTimeFormat parses time in HH:MM format
func parseTimeFormat(timeStr string, hour, min *int) (bool, error) {
	if len(timeStr) < 5 {
		return false, nil
	}

	// Parse hour
	*hour = int(timeStr[0]-'0')*10 + int(timeStr[1]-'0')
	// Parse minute
	*min = int(timeStr[3]-'0')*10 + int(timeStr[4]-'0')

	return true, nil
}

// RunDigestNow triggers an immediate digest (for manual trigger)
func (s *ReminderScheduler) RunDigestNow() (*DeadlineDigestResult, error) {
	result, err := s.sendDigest()
	if err != nil {
		return nil, err
	}

	// Update last run time
	s.mu.Lock()
	s.config.LastRun = time.Now().Format(time.RFC3339)
	s.mu.Unlock()

	s.SaveConfig()
	return result, nil
}
