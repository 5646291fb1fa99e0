package models

import "time"

// RosterPendingStats summarises outstanding review work across the roster.
type RosterPendingStats struct {
	Events    int           `json:"events"`
	Trainings int           `json:"trainings"`
	Awards    int           `json:"awards"`
	Logs      int           `json:"logs"`
	Combined  CombinedStats `json:"combined"`
}

// CombinedStats aggregates review outcomes across all record kinds.
type CombinedStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// AuditEntry is one row of the admin audit-trail view. Timestamp keeps the
// raw upstream value; When carries the display rendering with time of day,
// which deliberately differs from the date-only submission formatting.
type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
	When      string    `json:"when"`
}
