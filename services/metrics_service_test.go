package services

import (
	"testing"
	"time"

	"bid_monitoring_platform/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsService(t *testing.T) (*MetricsService, *BidService) {
	t.Helper()

	db := setupTestDB(t)
	svc, err := NewMetricsService(db)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, NewBidService(db)
}

func TestSummaryEmptyDatabase(t *testing.T) {
	svc, _ := newMetricsService(t)

	summary, err := svc.Summary(BidFilter{})
	require.NoError(t, err)

	assert.Zero(t, summary.TotalBids)
	assert.Zero(t, summary.ActiveBids)
	assert.Equal(t, "0%", summary.WinRateLabel)
	assert.Equal(t, "N/A", summary.PipelineLabel)
	assert.True(t, summary.PipelineValue.IsZero())
}

func TestSummaryWinRate(t *testing.T) {
	svc, bids := newMetricsService(t)

	won := createTestBid(t, bids, "Won bid")
	lost := createTestBid(t, bids, "Lost bid")
	createTestBid(t, bids, "Open bid")

	_, err := bids.UpdateStatus(won.ID, models.BidStatusWon, "", "manager")
	require.NoError(t, err)
	_, err = bids.UpdateStatus(lost.ID, models.BidStatusLost, models.LossReasonPricing, "manager")
	require.NoError(t, err)

	summary, err := svc.Summary(BidFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalBids)
	assert.Equal(t, int64(1), summary.ActiveBids)
	assert.Equal(t, int64(1), summary.WonBids)
	assert.Equal(t, int64(1), summary.LostBids)
	assert.InDelta(t, 50.0, summary.WinRate, 0.001)
	assert.Equal(t, "50.0%", summary.WinRateLabel)
}

func TestSummaryPipelineLabel(t *testing.T) {
	svc, bids := newMetricsService(t)

	for _, value := range []int64{1500000, 250000} {
		_, err := bids.CreateBid(CreateBidInput{
			Title:      "Valued bid",
			ClientName: "Acme Corp",
			AssignedTo: "alice",
			BidValue:   decimal.NewFromInt(value),
			CreatedBy:  "alice",
		})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(BidFilter{})
	require.NoError(t, err)

	assert.True(t, summary.PipelineValue.Equal(decimal.NewFromInt(1750000)))
	assert.Equal(t, "$1.75M", summary.PipelineLabel)
}

func TestSummaryUpcomingDeadlines(t *testing.T) {
	svc, bids := newMetricsService(t)

	future := time.Now().AddDate(0, 0, 2)
	past := time.Now().AddDate(0, 0, -2)

	for _, due := range []*time.Time{&future, &past, nil} {
		_, err := bids.CreateBid(CreateBidInput{
			Title:      "Deadline bid",
			ClientName: "Acme Corp",
			AssignedTo: "alice",
			DueDate:    due,
			CreatedBy:  "alice",
		})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(BidFilter{})
	require.NoError(t, err)

	// Only future deadlines count on the dashboard card
	assert.Equal(t, int64(1), summary.UpcomingDeadlines)
}

func TestSummaryFilterByAssignee(t *testing.T) {
	svc, bids := newMetricsService(t)

	createTestBid(t, bids, "Alice bid")
	_, err := bids.CreateBid(CreateBidInput{
		Title:      "Bob bid",
		ClientName: "Globex",
		AssignedTo: "bob",
		BidValue:   decimal.NewFromInt(100),
		CreatedBy:  "bob",
	})
	require.NoError(t, err)

	summary, err := svc.Summary(BidFilter{AssignedTo: "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalBids)

	summary, err = svc.Summary(BidFilter{Statuses: []string{models.BidStatusOpen}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalBids)
}

func TestOverview(t *testing.T) {
	svc, bids := newMetricsService(t)

	createTestBid(t, bids, "Open bid")
	lostPricing := createTestBid(t, bids, "Lost on price")
	lostDeadline := createTestBid(t, bids, "Lost on deadline")

	_, err := bids.UpdateStatus(lostPricing.ID, models.BidStatusLost, models.LossReasonPricing, "manager")
	require.NoError(t, err)
	_, err = bids.UpdateStatus(lostDeadline.ID, models.BidStatusLost, models.LossReasonDeadline, "manager")
	require.NoError(t, err)

	overview, err := svc.Overview()
	require.NoError(t, err)

	assert.Equal(t, int64(3), overview.TotalBids)
	assert.Equal(t, int64(1), overview.ActiveBids)
	assert.Equal(t, int64(1), overview.StatusCounts[models.BidStatusOpen])
	assert.Equal(t, int64(2), overview.StatusCounts[models.BidStatusLost])
	assert.Equal(t, int64(1), overview.LossReasons[models.LossReasonPricing])
	assert.Equal(t, int64(1), overview.LossReasons[models.LossReasonDeadline])
	assert.GreaterOrEqual(t, overview.AvgBidAgeDays, 0.0)
}

func TestCaptureSnapshot(t *testing.T) {
	svc, bids := newMetricsService(t)
	client := setupAnalyticsClient(t)

	prev := GlobalAnalytics
	GlobalAnalytics = client
	t.Cleanup(func() { GlobalAnalytics = prev })

	won := createTestBid(t, bids, "Won bid")
	_, err := bids.UpdateStatus(won.ID, models.BidStatusWon, "", "manager")
	require.NoError(t, err)
	submitted := createTestBid(t, bids, "Submitted bid")
	_, err = bids.UpdateStatus(submitted.ID, models.BidStatusSubmitted, "", "alice")
	require.NoError(t, err)

	snapshot, err := svc.CaptureSnapshot()
	require.NoError(t, err)

	assert.Equal(t, int64(2), snapshot.TotalBids)
	assert.Equal(t, int64(1), snapshot.WonBids)
	assert.Equal(t, int64(1), snapshot.SubmittedBids)
	assert.InDelta(t, 100.0, snapshot.WinRate, 0.001)

	count, err := client.SnapshotCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCaptureSnapshotWithoutAnalytics(t *testing.T) {
	svc, _ := newMetricsService(t)

	prev := GlobalAnalytics
	GlobalAnalytics = nil
	t.Cleanup(func() { GlobalAnalytics = prev })

	_, err := svc.CaptureSnapshot()
	assert.Error(t, err)
}
