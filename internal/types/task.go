package types

import "time"

// ExtractionTask is the unit of background work: one uploaded PDF waiting
// for content extraction. Content is carried in-process only; tasks sent
// over the queue reference the archived object instead.
type ExtractionTask struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	FileHash    string    `json:"file_hash"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"size"`
	ObjectName  string    `json:"object_name,omitempty"`
	Content     []byte    `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
}
