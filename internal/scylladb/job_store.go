package scylladb

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/idan157001/TestShuffleFinal/internal/jobs"
)

// JobStore implements jobs.Store on the jobs table. Every write replaces the
// whole row, which gives last-writer-wins per job id.
type JobStore struct {
	db *ScyllaDB
}

func NewJobStore(db *ScyllaDB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Set(ctx context.Context, rec jobs.Record) error {
	examID, examName := "", ""
	if rec.Result != nil {
		examID, examName = rec.Result.ExamID, rec.Result.ExamName
	}

	query := `
		INSERT INTO jobs (job_id, status, user_id, exam_id, exam_name, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err := s.db.Session.Query(query,
		rec.JobID,
		string(rec.Status),
		rec.UserID,
		examID,
		examName,
		rec.Error,
		rec.UpdatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to write job %s: %w", rec.JobID, err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*jobs.Record, error) {
	var (
		rec              jobs.Record
		status           string
		examID, examName string
	)

	query := `SELECT job_id, status, user_id, exam_id, exam_name, error, updated_at FROM jobs WHERE job_id = ?`
	err := s.db.Session.Query(query, jobID).WithContext(ctx).
		Scan(&rec.JobID, &status, &rec.UserID, &examID, &examName, &rec.Error, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}

	applyRow(&rec, status, examID, examName)
	return &rec, nil
}

// applyRow restores the typed status and drops result columns that only
// carry meaning for finished jobs.
func applyRow(rec *jobs.Record, status, examID, examName string) {
	rec.Status = jobs.Status(status)
	if rec.Status == jobs.StatusDone {
		rec.Result = &jobs.Result{ExamID: examID, ExamName: examName}
	}
	if rec.Status != jobs.StatusError {
		rec.Error = ""
	}
}

func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	err := s.db.Session.Query(`DELETE FROM jobs WHERE job_id = ?`, jobID).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}
