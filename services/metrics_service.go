package services

import (
	"fmt"
	"strings"
	"time"

	"bid_monitoring_platform/models"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MetricsCacheTTL is how long computed metrics stay cached
const MetricsCacheTTL = 30 * time.Second

// DashboardSummary holds the headline metrics for a (possibly
// filtered) set of bids
type DashboardSummary struct {
	TotalBids         int64   `json:"total_bids"`
	ActiveBids        int64   `json:"active_bids"`
	WonBids           int64   `json:"won_bids"`
	LostBids          int64   `json:"lost_bids"`
	WinRate           float64 `json:"win_rate"`
	WinRateLabel      string  `json:"win_rate_label"`
	PipelineValue     decimal.Decimal `json:"pipeline_value"`
	PipelineLabel     string  `json:"pipeline_label"`
	UpcomingDeadlines int64   `json:"upcoming_deadlines"`
}

// StatusOverview holds the status-summary breakdown
type StatusOverview struct {
	TotalBids     int64            `json:"total_bids"`
	ActiveBids    int64            `json:"active_bids"`
	AvgBidAgeDays float64          `json:"avg_bid_age_days"`
	StatusCounts  map[string]int64 `json:"status_counts"`
	LossReasons   map[string]int64 `json:"loss_reasons"`
}

// MetricsService computes pipeline metrics with a short-lived cache
type MetricsService struct {
	db    *gorm.DB
	cache *ristretto.Cache[string, any]
}

// Global metrics service instance
var GlobalMetrics *MetricsService

// InitMetricsService initializes the global metrics service
func InitMetricsService(db *gorm.DB) error {
	service, err := NewMetricsService(db)
	if err != nil {
		return err
	}
	GlobalMetrics = service
	return nil
}

// NewMetricsService creates a new metrics service
func NewMetricsService(db *gorm.DB) (*MetricsService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics cache: %w", err)
	}
	return &MetricsService{db: db, cache: cache}, nil
}

// Close releases the cache
func (s *MetricsService) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// filteredQuery applies the bid filter the same way the bid listing does
func (s *MetricsService) filteredQuery(filter BidFilter) *gorm.DB {
	query := s.db.Model(&models.Bid{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to LIKE ?", "%"+filter.AssignedTo+"%")
	}
	return query
}

// Summary computes the dashboard metrics for the filtered bid set
func (s *MetricsService) Summary(filter BidFilter) (*DashboardSummary, error) {
	cacheKey := fmt.Sprintf("summary|%s|%s", strings.Join(filter.Statuses, ","), filter.AssignedTo)
	if cached, found := s.cache.Get(cacheKey); found {
		if summary, ok := cached.(*DashboardSummary); ok {
			return summary, nil
		}
	}

	summary := &DashboardSummary{}

	if err := s.filteredQuery(filter).Count(&summary.TotalBids).Error; err != nil {
		return nil, err
	}
	if err := s.filteredQuery(filter).Where("status = ?", models.BidStatusOpen).Count(&summary.ActiveBids).Error; err != nil {
		return nil, err
	}
	if err := s.filteredQuery(filter).Where("status = ?", models.BidStatusWon).Count(&summary.WonBids).Error; err != nil {
		return nil, err
	}
	if err := s.filteredQuery(filter).Where("status = ?", models.BidStatusLost).Count(&summary.LostBids).Error; err != nil {
		return nil, err
	}

	closed := summary.WonBids + summary.LostBids
	if closed > 0 {
		summary.WinRate = float64(summary.WonBids) / float64(closed) * 100
		summary.WinRateLabel = fmt.Sprintf("%.1f%%", summary.WinRate)
	} else {
		summary.WinRateLabel = "0%"
	}

	var pipelineValue decimal.Decimal
	err := s.filteredQuery(filter).
		Select("COALESCE(SUM(bid_value), 0)").
		Scan(&pipelineValue).Error
	if err != nil {
		return nil, err
	}
	summary.PipelineValue = pipelineValue
	if pipelineValue.IsPositive() {
		millions := pipelineValue.Div(decimal.NewFromInt(1e6))
		summary.PipelineLabel = fmt.Sprintf("$%sM", millions.StringFixed(2))
	} else {
		summary.PipelineLabel = "N/A"
	}

	if err := s.filteredQuery(filter).
		Where("due_date IS NOT NULL AND due_date >= ?", time.Now()).
		Count(&summary.UpcomingDeadlines).Error; err != nil {
		return nil, err
	}

	s.cache.SetWithTTL(cacheKey, summary, 1, MetricsCacheTTL)
	return summary, nil
}

// Overview computes the status-summary breakdown across all bids
func (s *MetricsService) Overview() (*StatusOverview, error) {
	const cacheKey = "overview"
	if cached, found := s.cache.Get(cacheKey); found {
		if overview, ok := cached.(*StatusOverview); ok {
			return overview, nil
		}
	}

	overview := &StatusOverview{
		StatusCounts: make(map[string]int64),
		LossReasons:  make(map[string]int64),
	}

	if err := s.db.Model(&models.Bid{}).Count(&overview.TotalBids).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Bid{}).Where("status = ?", models.BidStatusOpen).Count(&overview.ActiveBids).Error; err != nil {
		return nil, err
	}

	var createdTimes []time.Time
	if err := s.db.Model(&models.Bid{}).Pluck("created_at", &createdTimes).Error; err != nil {
		return nil, err
	}
	if len(createdTimes) > 0 {
		now := time.Now()
		var totalDays float64
		for _, created := range createdTimes {
			totalDays += now.Sub(created).Hours() / 24
		}
		overview.AvgBidAgeDays = totalDays / float64(len(createdTimes))
	}

	var statusRows []struct {
		Status string
		Count  int64
	}
	if err := s.db.Model(&models.Bid{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		overview.StatusCounts[row.Status] = row.Count
	}

	var reasonRows []struct {
		Reason string
		Count  int64
	}
	if err := s.db.Model(&models.Bid{}).
		Where("status = ? AND reason != ''", models.BidStatusLost).
		Select("reason, COUNT(*) as count").
		Group("reason").
		Scan(&reasonRows).Error; err != nil {
		return nil, err
	}
	for _, row := range reasonRows {
		overview.LossReasons[row.Reason] = row.Count
	}

	s.cache.SetWithTTL(cacheKey, overview, 1, MetricsCacheTTL)
	return overview, nil
}

// CaptureSnapshot computes global metrics and stores them in the
// analytics database
func (s *MetricsService) CaptureSnapshot() (*MetricsSnapshot, error) {
	summary, err := s.Summary(BidFilter{})
	if err != nil {
		return nil, err
	}

	var submitted int64
	if err := s.db.Model(&models.Bid{}).Where("status = ?", models.BidStatusSubmitted).Count(&submitted).Error; err != nil {
		return nil, err
	}

	pipelineValue, _ := summary.PipelineValue.Float64()
	snapshot := &MetricsSnapshot{
		CapturedAt:    time.Now(),
		TotalBids:     summary.TotalBids,
		OpenBids:      summary.ActiveBids,
		SubmittedBids: submitted,
		WonBids:       summary.WonBids,
		LostBids:      summary.LostBids,
		WinRate:       summary.WinRate,
		PipelineValue: pipelineValue,
	}

	if GlobalAnalytics == nil {
		return nil, fmt.Errorf("analytics database not initialized")
	}
	if err := GlobalAnalytics.InsertSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	return snapshot, nil
}
