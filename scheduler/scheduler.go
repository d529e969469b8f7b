package scheduler

// Package scheduler provides scheduled job management for the bid platform.
// It handles:
// - Periodic deadline scans with WebSocket alerts
// - Daily metrics snapshots into the analytics store
// - Expired admin session cleanup
// - Weekly archival of closed bids and history pruning
//
// The main scheduler is implemented in jobs.go
