// Package runstate keeps cross-run export state in Redis: a run lock that
// prevents two exports from writing the same file at once, and a summary of
// the most recent run for monitoring.
package runstate

import (
	"time"
)

// Redis keys for run state storage.
const (
	RedisKeyLock    = "client-export:lock"
	RedisKeyLastRun = "client-export:last_run"
)

// DefaultLockTTL bounds how long a crashed run can block the next one.
const DefaultLockTTL = 30 * time.Minute

// Status is the outcome of an export run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Summary describes one export run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Written    int       `json:"written"`
	OutputPath string    `json:"output_path"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
