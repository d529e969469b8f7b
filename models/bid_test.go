package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidBidStatus(t *testing.T) {
	for _, status := range ValidBidStatuses() {
		assert.True(t, IsValidBidStatus(status), "expected %q to be valid", status)
	}

	assert.False(t, IsValidBidStatus("open"), "statuses are case sensitive")
	assert.False(t, IsValidBidStatus("Pending"))
	assert.False(t, IsValidBidStatus(""))
}

func TestBidStageNamesOrder(t *testing.T) {
	expected := []string{
		StageProposalDrafting,
		StageLegalReview,
		StagePricingReview,
		StageSubmission,
		StageEvaluation,
		StageAwarded,
		StageLost,
	}
	assert.Equal(t, expected, BidStageNames())
}

func TestIsValidBidStage(t *testing.T) {
	for _, stage := range BidStageNames() {
		assert.True(t, IsValidBidStage(stage), "expected %q to be valid", stage)
	}

	assert.False(t, IsValidBidStage("Negotiation"))
	assert.False(t, IsValidBidStage(""))
}

func TestStageOwner(t *testing.T) {
	assert.Equal(t, "Proposal Manager", StageOwner(StageProposalDrafting))
	assert.Equal(t, "Legal Team", StageOwner(StageLegalReview))
	assert.Equal(t, "Finance Team", StageOwner(StagePricingReview))
	assert.Equal(t, "Sales Lead", StageOwner(StageSubmission))
	assert.Equal(t, "Client", StageOwner(StageEvaluation))
	assert.Equal(t, "Account Manager", StageOwner(StageAwarded))
	assert.Equal(t, "Sales Lead", StageOwner(StageLost))
}

func TestStageOwnerUnknownStage(t *testing.T) {
	assert.Equal(t, "Unassigned", StageOwner("Negotiation"))
	assert.Equal(t, "Unassigned", StageOwner(""))
}

func TestIsValidLossReason(t *testing.T) {
	for _, reason := range ValidLossReasons() {
		assert.True(t, IsValidLossReason(reason), "expected %q to be valid", reason)
	}

	assert.False(t, IsValidLossReason("Budget cut"))
	assert.False(t, IsValidLossReason(""))
}
