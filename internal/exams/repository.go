package exams

import "context"

// Repository stores exams per user and answers fingerprint lookups for
// de-duplication.
type Repository interface {
	CountByOwner(ctx context.Context, userID string) (int, error)
	ExistsForOwner(ctx context.Context, fileHash, userID string) (bool, error)
	// FindElsewhere returns an exam with the fingerprint owned by a different
	// user, or nil when there is none.
	FindElsewhere(ctx context.Context, fileHash, userID string) (*Exam, error)
	Create(ctx context.Context, exam NewExam) (string, error)
	CopyTo(ctx context.Context, owner Owner, src *Exam) (string, error)
	ListByOwner(ctx context.Context, userID string) ([]Exam, error)
	Get(ctx context.Context, examID string) (*Exam, error)
	Delete(ctx context.Context, userID, examID string) error
}
