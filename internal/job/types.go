package job

import (
	"errors"
	"time"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// Status is the lifecycle state of a whole job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

var (
	ErrNotFound        = errors.New("job not found")
	ErrAlreadyFinished = errors.New("job already finished")
	ErrInvalidClaim    = errors.New("block is not claimed by this job")
)

// Snapshot is the polling view of a job.
type Snapshot struct {
	ID         string                    `json:"id"`
	Kind       domain.Kind               `json:"kind"`
	Source     string                    `json:"source"`
	Output     string                    `json:"output,omitempty"`
	Status     Status                    `json:"status"`
	Counts     map[domain.UnitStatus]int `json:"counts"`
	Total      int                       `json:"total"`
	Progress   float64                   `json:"progress"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	StartedAt  *time.Time                `json:"started_at,omitempty"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
	Duration   time.Duration             `json:"duration"`
}
