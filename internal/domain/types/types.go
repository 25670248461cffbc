// Package types contains common types used across the application
package types

// Entry represents a standings entry
type Entry struct {
	Rank      int    `json:"rank"`
	ManagerID string `json:"manager_id"`
	Points    int    `json:"points"`
}

// Stats is a point-in-time snapshot of the finalization pipeline.
type Stats struct {
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Workers       int   `json:"workers"`
	InFlight      int64 `json:"in_flight"`
	Managers      int   `json:"managers"`
	Finalized     int64 `json:"finalized"`
	Failed        int64 `json:"failed"`
}

// FinalizeSummary reports what happened to each manager of a finalized game.
type FinalizeSummary struct {
	GameID    string `json:"game_id"`
	Accepted  int    `json:"accepted"`
	Duplicate int    `json:"duplicate"`
	Rejected  int    `json:"rejected"`
}
