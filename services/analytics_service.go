package services

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// AnalyticsDBPath is the local SQLite file for metric snapshots
const AnalyticsDBPath = "data/analytics.db"

// AnalyticsClient handles the local analytics database
type AnalyticsClient struct {
	db *sql.DB
	mu sync.RWMutex
}

// Global analytics client
var GlobalAnalytics *AnalyticsClient

// MetricsSnapshot is one point-in-time capture of pipeline metrics
type MetricsSnapshot struct {
	ID            int64     `json:"id"`
	CapturedAt    time.Time `json:"captured_at"`
	TotalBids     int64     `json:"total_bids"`
	OpenBids      int64     `json:"open_bids"`
	SubmittedBids int64     `json:"submitted_bids"`
	WonBids       int64     `json:"won_bids"`
	LostBids      int64     `json:"lost_bids"`
	WinRate       float64   `json:"win_rate"`
	PipelineValue float64   `json:"pipeline_value"`
}

// InitAnalytics initializes the analytics database
func InitAnalytics() error {
	// Create data directory if not exists
	dir := filepath.Dir(AnalyticsDBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", AnalyticsDBPath)
	if err != nil {
		return fmt.Errorf("failed to open analytics database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping analytics database: %w", err)
	}

	GlobalAnalytics = &AnalyticsClient{db: db}

	// Create tables
	if err := GlobalAnalytics.CreateTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("Analytics database initialized at %s", AnalyticsDBPath)
	return nil
}

// Close closes the analytics database connection
func (c *AnalyticsClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// IsOpen reports whether the analytics database is available
func (c *AnalyticsClient) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db != nil
}

// CreateTables creates the required tables
func (c *AnalyticsClient) CreateTables() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshotsTable := `
		CREATE TABLE IF NOT EXISTS bid_metrics_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			captured_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			total_bids INTEGER,
			open_bids INTEGER,
			submitted_bids INTEGER,
			won_bids INTEGER,
			lost_bids INTEGER,
			win_rate DOUBLE,
			pipeline_value DOUBLE
		)
	`
	if _, err := c.db.Exec(snapshotsTable); err != nil {
		return fmt.Errorf("failed to create bid_metrics_snapshots table: %w", err)
	}
	c.db.Exec("CREATE INDEX IF NOT EXISTS idx_snapshots_captured_at ON bid_metrics_snapshots(captured_at DESC)")

	configTable := `
		CREATE TABLE IF NOT EXISTS system_config (
			key VARCHAR PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := c.db.Exec(configTable); err != nil {
		return fmt.Errorf("failed to create system_config table: %w", err)
	}

	log.Println("Analytics tables created/verified")
	return nil
}

// InsertSnapshot records a metrics snapshot
func (c *AnalyticsClient) InsertSnapshot(s *MetricsSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := `
		INSERT INTO bid_metrics_snapshots (
			captured_at, total_bids, open_bids, submitted_bids,
			won_bids, lost_bids, win_rate, pipeline_value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	capturedAt := s.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	_, err := c.db.Exec(query,
		capturedAt, s.TotalBids, s.OpenBids, s.SubmittedBids,
		s.WonBids, s.LostBids, s.WinRate, s.PipelineValue,
	)
	return err
}

// RecentSnapshots returns the latest snapshots, newest first
func (c *AnalyticsClient) RecentSnapshots(limit int) ([]MetricsSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := `SELECT id, captured_at, total_bids, open_bids, submitted_bids,
		won_bids, lost_bids, win_rate, pipeline_value
		FROM bid_metrics_snapshots ORDER BY captured_at DESC LIMIT ?`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []MetricsSnapshot
	for rows.Next() {
		var s MetricsSnapshot
		var capturedAt sql.NullTime

		err := rows.Scan(
			&s.ID, &capturedAt, &s.TotalBids, &s.OpenBids, &s.SubmittedBids,
			&s.WonBids, &s.LostBids, &s.WinRate, &s.PipelineValue,
		)
		if err != nil {
			return nil, err
		}
		if capturedAt.Valid {
			s.CapturedAt = capturedAt.Time
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, nil
}

// LatestSnapshot returns the most recent snapshot, or nil when none exist
func (c *AnalyticsClient) LatestSnapshot() (*MetricsSnapshot, error) {
	snapshots, err := c.RecentSnapshots(1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// SnapshotCount returns the total number of stored snapshots
func (c *AnalyticsClient) SnapshotCount() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int64
	err := c.db.QueryRow("SELECT COUNT(*) FROM bid_metrics_snapshots").Scan(&count)
	return count, err
}

// PruneSnapshots deletes snapshots older than the retention period
func (c *AnalyticsClient) PruneSnapshots(keepDays int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -keepDays)
	result, err := c.db.Exec("DELETE FROM bid_metrics_snapshots WHERE captured_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SaveConfig saves a config value
func (c *AnalyticsClient) SaveConfig(key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := `INSERT OR REPLACE INTO system_config (key, value, updated_at) VALUES (?, ?, ?)`
	_, err := c.db.Exec(query, key, value, time.Now())
	return err
}

// LoadConfig loads a config value
func (c *AnalyticsClient) LoadConfig(key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var value string
	err := c.db.QueryRow("SELECT value FROM system_config WHERE key = ?", key).Scan(&value)
	return value, err
}
