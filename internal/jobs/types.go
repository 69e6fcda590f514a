package jobs

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an extraction job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions happen from s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

var (
	ErrNotFound  = errors.New("job not found")
	ErrForbidden = errors.New("job belongs to another user")
)

// Result references the exam created by a successful job.
type Result struct {
	ExamID   string `json:"examId"`
	ExamName string `json:"examName"`
}

// Record is the persisted job status. Result is set only when Status is
// done, Error only when Status is error.
type Record struct {
	JobID     string    `json:"job_id"`
	Status    Status    `json:"status"`
	UserID    string    `json:"user_id"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
