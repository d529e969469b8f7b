package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"bid_monitoring_platform/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeadlineWindowDays is how far ahead the upcoming-deadline scan looks
const DeadlineWindowDays = 3

// ErrBidNotFound is returned when a bid ID does not exist
var ErrBidNotFound = errors.New("bid not found")

// ErrStageAlreadyUsed is returned when a bid has already passed through the requested stage
var ErrStageAlreadyUsed = errors.New("stage already used for this bid")

// BidService handles the bid lifecycle: creation, status changes,
// stage transitions and the audit trail
type BidService struct {
	db *gorm.DB
}

// NewBidService creates a new bid service
func NewBidService(db *gorm.DB) *BidService {
	return &BidService{db: db}
}

// CreateBidInput carries the fields for a new bid
type CreateBidInput struct {
	Title       string
	Description string
	ClientName  string
	AssignedTo  string
	DueDate     *time.Time
	BidValue    decimal.Decimal
	CreatedBy   string
}

// BidFilter narrows bid listings
type BidFilter struct {
	Statuses   []string
	AssignedTo string
	Page       int
	Limit      int
}

// ActiveStageEntry is an open pipeline stage joined with its bid title
type ActiveStageEntry struct {
	BidID      uint      `json:"bid_id"`
	BidTitle   string    `json:"bid_title"`
	Stage      string    `json:"stage"`
	StageOwner string    `json:"stage_owner"`
	StartedAt  time.Time `json:"started_at"`
}

// ActivityEntry is an audit record joined with its bid title
type ActivityEntry struct {
	ID           uint      `json:"id"`
	BidID        uint      `json:"bid_id"`
	BidTitle     string    `json:"bid_title"`
	ChangedAt    time.Time `json:"changed_at"`
	ChangedBy    string    `json:"changed_by"`
	FieldChanged string    `json:"field_changed"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
}

// CreateBid inserts a new bid and opens its first pipeline stage
func (s *BidService) CreateBid(input CreateBidInput) (*models.Bid, error) {
	if input.Title == "" || input.ClientName == "" || input.AssignedTo == "" {
		return nil, errors.New("title, client name and assigned user are required")
	}

	bid := models.Bid{
		Title:       input.Title,
		Description: input.Description,
		Status:      models.BidStatusOpen,
		Stage:       models.StageProposalDrafting,
		DueDate:     input.DueDate,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   input.CreatedBy,
		ClientName:  input.ClientName,
		BidValue:    input.BidValue,
	}
	if err := s.db.Create(&bid).Error; err != nil {
		return nil, fmt.Errorf("failed to create bid: %w", err)
	}

	if _, err := s.AdvanceStage(bid.ID, models.StageProposalDrafting, "Bid created", input.CreatedBy); err != nil {
		log.Printf("Failed to open initial stage for bid %d: %v", bid.ID, err)
	}

	if GlobalNotificationService != nil {
		GlobalNotificationService.BroadcastEvent(EventBidCreated, map[string]interface{}{
			"bid_id":      bid.ID,
			"title":       bid.Title,
			"client_name": bid.ClientName,
			"assigned_to": bid.AssignedTo,
		})
	}

	return &bid, nil
}

// GetBid fetches a single bid by ID
func (s *BidService) GetBid(id uint) (*models.Bid, error) {
	var bid models.Bid
	if err := s.db.First(&bid, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBidNotFound
		}
		return nil, err
	}
	return &bid, nil
}

// ListBids returns bids matching the filter plus the total count
func (s *BidService) ListBids(filter BidFilter) ([]models.Bid, int64, error) {
	query := s.db.Model(&models.Bid{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to LIKE ?", "%"+filter.AssignedTo+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var bids []models.Bid
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&bids).Error; err != nil {
		return nil, 0, err
	}
	return bids, total, nil
}

// UpdateStatus changes a bid's status, records the audit entry and
// moves Won/Lost bids to their terminal pipeline stage. A history row
// is written even when the status is unchanged.
func (s *BidService) UpdateStatus(bidID uint, newStatus, reason, actor string) (*models.Bid, error) {
	if !models.IsValidBidStatus(newStatus) {
		return nil, fmt.Errorf("invalid status: %s", newStatus)
	}
	if newStatus == models.BidStatusLost {
		if !models.IsValidLossReason(reason) {
			return nil, fmt.Errorf("invalid loss reason: %s", reason)
		}
	} else {
		reason = ""
	}

	bid, err := s.GetBid(bidID)
	if err != nil {
		return nil, err
	}
	oldStatus := bid.Status

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(bid).Updates(map[string]interface{}{
			"status": newStatus,
			"reason": reason,
		}).Error; err != nil {
			return err
		}
		return s.logHistory(tx, bidID, "status", oldStatus, newStatus, actor)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update bid status: %w", err)
	}
	bid.Status = newStatus
	bid.Reason = reason

	switch newStatus {
	case models.BidStatusWon:
		if _, err := s.AdvanceStage(bidID, models.StageAwarded, "Bid won!", actor); err != nil {
			log.Printf("Failed to move bid %d to Awarded stage: %v", bidID, err)
		}
	case models.BidStatusLost:
		if _, err := s.AdvanceStage(bidID, models.StageLost, fmt.Sprintf("Bid lost: %s", reason), actor); err != nil {
			log.Printf("Failed to move bid %d to Lost stage: %v", bidID, err)
		}
	}

	if GlobalNotificationService != nil {
		GlobalNotificationService.BroadcastEvent(EventStatusChanged, map[string]interface{}{
			"bid_id":     bid.ID,
			"title":      bid.Title,
			"old_status": oldStatus,
			"new_status": newStatus,
			"reason":     reason,
		})
	}

	return bid, nil
}

// AdvanceStage completes the bid's open stage rows, opens the new
// stage with its owning team and syncs the bid's current stage.
func (s *BidService) AdvanceStage(bidID uint, newStage, notes, actor string) (*models.BidStage, error) {
	if !models.IsValidBidStage(newStage) {
		return nil, fmt.Errorf("invalid stage: %s", newStage)
	}

	bid, err := s.GetBid(bidID)
	if err != nil {
		return nil, err
	}

	owner := models.StageOwner(newStage)
	now := time.Now()
	stage := models.BidStage{
		BidID:      bidID,
		Stage:      newStage,
		StageOwner: owner,
		StartedAt:  now,
		Notes:      notes,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BidStage{}).
			Where("bid_id = ? AND completed_at IS NULL", bidID).
			Update("completed_at", now).Error; err != nil {
			return err
		}
		if err := tx.Create(&stage).Error; err != nil {
			return err
		}
		return tx.Model(bid).Update("stage", newStage).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advance bid stage: %w", err)
	}
	bid.Stage = newStage

	if GlobalNotificationService != nil {
		GlobalNotificationService.BroadcastEvent(EventStageChanged, map[string]interface{}{
			"bid_id":  bid.ID,
			"title":   bid.Title,
			"stage":   newStage,
			"owner":   owner,
			"message": fmt.Sprintf("Bid moved to %s stage. Owner: %s", newStage, owner),
		})
	}

	return &stage, nil
}

// TransitionStage is AdvanceStage restricted to stages the bid has not
// yet passed through, for the stage-management flow.
func (s *BidService) TransitionStage(bidID uint, newStage, notes, actor string) (*models.BidStage, error) {
	available, err := s.AvailableStages(bidID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, stage := range available {
		if stage == newStage {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrStageAlreadyUsed
	}
	return s.AdvanceStage(bidID, newStage, notes, actor)
}

// Stages returns a bid's pipeline records in the order they started
func (s *BidService) Stages(bidID uint) ([]models.BidStage, error) {
	if _, err := s.GetBid(bidID); err != nil {
		return nil, err
	}
	var stages []models.BidStage
	if err := s.db.Where("bid_id = ?", bidID).Order("started_at ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// AvailableStages returns pipeline stages the bid has not entered yet.
// An empty result means all stages are completed for the bid.
func (s *BidService) AvailableStages(bidID uint) ([]string, error) {
	if _, err := s.GetBid(bidID); err != nil {
		return nil, err
	}

	var used []string
	if err := s.db.Model(&models.BidStage{}).
		Where("bid_id = ?", bidID).
		Distinct().
		Pluck("stage", &used).Error; err != nil {
		return nil, err
	}

	usedSet := make(map[string]bool, len(used))
	for _, stage := range used {
		usedSet[stage] = true
	}

	available := []string{}
	for _, stage := range models.BidStageNames() {
		if !usedSet[stage] {
			available = append(available, stage)
		}
	}
	return available, nil
}

// ActiveStages returns every open stage row across all bids
func (s *BidService) ActiveStages() ([]ActiveStageEntry, error) {
	var entries []ActiveStageEntry
	err := s.db.Model(&models.BidStage{}).
		Select("bid_stages.bid_id, bids.title as bid_title, bid_stages.stage, bid_stages.stage_owner, bid_stages.started_at").
		Joins("JOIN bids ON bids.id = bid_stages.bid_id").
		Where("bid_stages.completed_at IS NULL").
		Order("bid_stages.started_at ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// UpcomingDeadlines returns open bids due within the reminder window,
// overdue bids included.
func (s *BidService) UpcomingDeadlines() ([]models.Bid, error) {
	cutoff := time.Now().AddDate(0, 0, DeadlineWindowDays)
	var bids []models.Bid
	err := s.db.Where("due_date IS NOT NULL AND due_date <= ? AND status = ?", cutoff, models.BidStatusOpen).
		Order("due_date ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// History returns a bid's audit trail, newest first
func (s *BidService) History(bidID uint) ([]models.BidHistory, error) {
	if _, err := s.GetBid(bidID); err != nil {
		return nil, err
	}
	var history []models.BidHistory
	if err := s.db.Where("bid_id = ?", bidID).Order("changed_at DESC").Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

// RecentActivity returns the latest audit records across all bids
func (s *BidService) RecentActivity(limit int) ([]ActivityEntry, error) {
	if limit < 1 {
		limit = 50
	}
	var entries []ActivityEntry
	err := s.db.Model(&models.BidHistory{}).
		Select("bid_histories.id, bid_histories.bid_id, bids.title as bid_title, bid_histories.changed_at, bid_histories.changed_by, bid_histories.field_changed, bid_histories.old_value, bid_histories.new_value").
		Joins("JOIN bids ON bids.id = bid_histories.bid_id").
		Order("bid_histories.changed_at DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteBid removes a bid with its stages, history and document rows
func (s *BidService) DeleteBid(id uint) error {
	if _, err := s.GetBid(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bid_id = ?", id).Delete(&models.BidStage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bid_id = ?", id).Delete(&models.BidHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bid_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Bid{}, id).Error
	})
}

// logHistory appends an audit record for a field change
func (s *BidService) logHistory(tx *gorm.DB, bidID uint, field, oldValue, newValue, actor string) error {
	entry := models.BidHistory{
		BidID:        bidID,
		ChangedAt:    time.Now(),
		ChangedBy:    actor,
		FieldChanged: field,
		OldValue:     oldValue,
		NewValue:     newValue,
	}
	return tx.Create(&entry).Error
}
