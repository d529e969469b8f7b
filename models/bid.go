package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bid represents a tracked bid moving through the pipeline
type Bid struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Status      string    `gorm:"default:'Open';index" json:"status"` // Open, Submitted, Won, Lost
	Stage       string    `gorm:"default:'Proposal Drafting'" json:"stage"`
	DueDate     *time.Time `gorm:"index" json:"due_date"`
	AssignedTo  string    `gorm:"index" json:"assigned_to"`
	CreatedBy   string    `json:"created_by"`
	ClientName  string    `json:"client_name"`
	BidValue    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"bid_value"`
	Reason      string    `json:"reason"` // loss reason, set when Lost
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BidStage records one step of a bid's journey through the pipeline.
// CompletedAt is NULL while the stage is active.
type BidStage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BidID       uint      `gorm:"index:idx_bid_stage" json:"bid_id"`
	Bid         Bid       `gorm:"foreignKey:BidID" json:"bid,omitempty"`
	Stage       string    `gorm:"index:idx_bid_stage" json:"stage"`
	StageOwner  string    `json:"stage_owner"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       string    `json:"notes"`
}

// BidHistory is the audit record of a field change on a bid
type BidHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BidID        uint      `gorm:"index" json:"bid_id"`
	Bid          Bid       `gorm:"foreignKey:BidID" json:"bid,omitempty"`
	ChangedAt    time.Time `gorm:"index" json:"changed_at"`
	ChangedBy    string    `json:"changed_by"`
	FieldChanged string    `json:"field_changed"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
}

// Bid status constants
const (
	BidStatusOpen      = "Open"
	BidStatusSubmitted = "Submitted"
	BidStatusWon       = "Won"
	BidStatusLost      = "Lost"
)

// Pipeline stage constants
const (
	StageProposalDrafting = "Proposal Drafting"
	StageLegalReview      = "Legal Review"
	StagePricingReview    = "Pricing Review"
	StageSubmission       = "Submission"
	StageEvaluation       = "Evaluation"
	StageAwarded          = "Awarded"
	StageLost             = "Lost"
)

// Loss reason constants
const (
	LossReasonPricing   = "Pricing too high"
	LossReasonDeadline  = "Missed deadline"
	LossReasonTechnical = "Technical requirements"
	LossReasonOther     = "Other"
)

// stageOwners maps each pipeline stage to the team that owns it
var stageOwners = map[string]string{
	StageProposalDrafting: "Proposal Manager",
	StageLegalReview:      "Legal Team",
	StagePricingReview:    "Finance Team",
	StageSubmission:       "Sales Lead",
	StageEvaluation:       "Client",
	StageAwarded:          "Account Manager",
	StageLost:             "Sales Lead",
}

// ValidBidStatuses returns valid bid statuses
func ValidBidStatuses() []string {
	return []string{BidStatusOpen, BidStatusSubmitted, BidStatusWon, BidStatusLost}
}

// IsValidBidStatus checks if the status is valid
func IsValidBidStatus(status string) bool {
	for _, valid := range ValidBidStatuses() {
		if status == valid {
			return true
		}
	}
	return false
}

// BidStageNames returns the pipeline stages in order
func BidStageNames() []string {
	return []string{
		StageProposalDrafting,
		StageLegalReview,
		StagePricingReview,
		StageSubmission,
		StageEvaluation,
		StageAwarded,
		StageLost,
	}
}

// IsValidBidStage checks if the stage is part of the pipeline
func IsValidBidStage(stage string) bool {
	for _, valid := range BidStageNames() {
		if stage == valid {
			return true
		}
	}
	return false
}

// StageOwner returns the owning team for a stage, or "Unassigned"
// for stages outside the pipeline.
func StageOwner(stage string) string {
	if owner, ok := stageOwners[stage]; ok {
		return owner
	}
	return "Unassigned"
}

// ValidLossReasons returns valid loss reasons
func ValidLossReasons() []string {
	return []string{LossReasonPricing, LossReasonDeadline, LossReasonTechnical, LossReasonOther}
}

// IsValidLossReason checks if the loss reason is valid
func IsValidLossReason(reason string) bool {
	for _, valid := range ValidLossReasons() {
		if reason == valid {
			return true
		}
	}
	return false
}

// MigrateBidModels runs database migrations for bid-related models
func MigrateBidModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Bid{},
		&BidStage{},
		&BidHistory{},
	)
}
